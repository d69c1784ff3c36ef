package redact

import (
	"errors"
	"slices"
	"testing"
)

func TestNewTargets(t *testing.T) {
	tg, err := NewTargets("X", "POP", "", "X", "Ñú")
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	if got := tg.Items(); !slices.Equal(got, []string{"POP", "X", "Ñú"}) {
		t.Fatalf("unexpected items %q", got)
	}
	if tg.MaxLen() != 3 {
		t.Fatalf("expected max len 3, got %d", tg.MaxLen())
	}
	if _, err := NewTargets(); !errors.Is(err, ErrNoTargets) {
		t.Fatalf("expected ErrNoTargets, got %v", err)
	}
	if _, err := NewTargets("", ""); !errors.Is(err, ErrNoTargets) {
		t.Fatalf("expected ErrNoTargets for only empty strings, got %v", err)
	}
}

func TestTargetsMatchCountsCharacters(t *testing.T) {
	tg, _ := NewTargets("ÑÑ")
	if !tg.Match("ÑÑ") {
		t.Fatalf("two-character run should match a two-character target")
	}
	if tg.Match("ÑÑÑ") {
		t.Fatalf("three-character run exceeds the bound")
	}
	if tg.Match("N") {
		t.Fatalf("unexpected match")
	}
}

func TestApply(t *testing.T) {
	data := []byte("0123456789")
	out, err := Apply(data, []Edit{
		{Offset: 6, Length: 2, Replacement: []byte("xyz")},
		{Offset: 1, Length: 3, Replacement: nil},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if string(out) != "045xyz89" {
		t.Fatalf("got %q", out)
	}
	if string(data) != "0123456789" {
		t.Fatalf("input modified")
	}
	if _, err := Apply(data, []Edit{{Offset: 1, Length: 3}, {Offset: 2, Length: 1}}); err == nil {
		t.Fatalf("expected overlap error")
	}
	if _, err := Apply(data, []Edit{{Offset: 8, Length: 5}}); err == nil {
		t.Fatalf("expected bounds error")
	}
	same, _ := Apply(data, nil)
	if string(same) != string(data) {
		t.Fatalf("empty edit list changed data")
	}
}
