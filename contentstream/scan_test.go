package contentstream

import (
	"slices"
	"testing"
)

func collect(data, start, end string) []string {
	var out []string
	for seg := range Segments([]byte(data), []byte(start), []byte(end)) {
		out = append(out, string(seg))
	}
	return out
}

func TestRanges(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		start, end string
		want       []string
	}{
		{"empty input", "", "BT", "ET", nil},
		{"single run", "q BT (X) Tj ET Q", "BT", "ET", []string{" (X) Tj "}},
		{"two runs", "BT a ET BT b ET", "BT", "ET", []string{" a ", " b "}},
		{"unmatched start discards fragment", "BT a ET BT b", "BT", "ET", []string{" a "}},
		{"end before start ignored", "ET BT a ET", "BT", "ET", []string{" a "}},
		{"no rescan inside pair", "(a(b)c)", "(", ")", []string{"a(b"}},
		{"degenerate same delimiter", "xxxx", "x", "x", []string{"", ""}},
		{"adjacent delimiters", "()()", "(", ")", []string{"", ""}},
		{"empty delimiter", "abc", "", ")", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(tt.data, tt.start, tt.end)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestRangesNonOverlapping(t *testing.T) {
	data := []byte("BT 1 ET garbage BT BT 2 ET ET BT 3 ETBT 4 ET BT")
	prev := -1
	for r := range Runs(data) {
		if r.Start < 0 || r.End > len(data) || r.Start > r.End {
			t.Fatalf("range out of bounds: %+v", r)
		}
		if r.Start-len(BeginText) < prev {
			t.Fatalf("range %+v overlaps previous end %d", r, prev)
		}
		prev = r.End + len(EndText)
	}
}

func TestRangesEarlyStop(t *testing.T) {
	n := 0
	for range Ranges([]byte("BT a ET BT b ET BT c ET"), BeginText, EndText) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("expected iteration to stop at 2, got %d", n)
	}
}
