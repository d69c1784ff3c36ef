package contentstream

import (
	"errors"
	"testing"
)

func TestDecodeRun(t *testing.T) {
	d, err := NewDecoder("")
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	tests := []struct {
		run  string
		want string
	}{
		{" /F1 12 Tf 72 700 Td (X) Tj ", "X"},
		{" [(E)-20(X)30(AMEN)] TJ ", "EXAMEN"},
		{` [(\101)] TJ `, "A"},
		{` [(\361)] TJ `, "ñ"},
		{` [(\\)(V)] TJ `, "V"},
		{` [(\F\)] TJ `, "F"},
		{" [()] TJ ", ""},
		{" 0 0 Td ", ""},
		{" (Ñandú) Tj ", "Ñandú"},
	}
	for _, tt := range tests {
		got, err := d.DecodeRun([]byte(tt.run))
		if err != nil {
			t.Fatalf("%q: %v", tt.run, err)
		}
		if got != tt.want {
			t.Fatalf("%q: got %q want %q", tt.run, got, tt.want)
		}
	}
}

func TestDecodeRunInvalidUTF8(t *testing.T) {
	d, _ := NewDecoder("utf-8")
	_, err := d.DecodeRun([]byte(" (\xff\xfe) Tj "))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.Offset != 2 {
		t.Fatalf("expected offset 2, got %d", de.Offset)
	}
}

func TestDecodeRunBadOctal(t *testing.T) {
	d, _ := NewDecoder("utf-8")
	_, err := d.DecodeRun([]byte(` [(\19a)] TJ `))
	var de *DecodeError
	if !errors.As(err, &de) || !errors.Is(err, errNotOctal) {
		t.Fatalf("expected octal DecodeError, got %v", err)
	}
}

func TestDecodeRunWindows1252(t *testing.T) {
	d, err := NewDecoder("windows-1252")
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	got, err := d.DecodeRun([]byte(" (\xd1) Tj "))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != "Ñ" {
		t.Fatalf("got %q", got)
	}
}

func TestNewDecoderUnknownLabel(t *testing.T) {
	if _, err := NewDecoder("klingon"); err == nil {
		t.Fatalf("expected error for unknown label")
	}
}
