package contentstream

import (
	"errors"
	"testing"
)

func FuzzRanges(f *testing.F) {
	f.Add([]byte("BT (X) Tj ET BT (V) Tj ET"), "BT", "ET")
	f.Add([]byte("BT (a) ET ET BT"), "BT", "ET")
	f.Add([]byte("((nested)) (x"), "(", ")")
	f.Add([]byte("||||"), "|", "|")

	f.Fuzz(func(t *testing.T, data []byte, start, end string) {
		prevEnd := -1
		for r := range Ranges(data, []byte(start), []byte(end)) {
			if r.Start < 0 || r.End > len(data) || r.Start > r.End {
				t.Fatalf("range %+v outside %d bytes", r, len(data))
			}
			if r.Start < prevEnd {
				t.Fatalf("range %+v overlaps previous end %d", r, prevEnd)
			}
			prevEnd = r.End + len(end)
		}
	})
}

func FuzzDecodeRun(f *testing.F) {
	f.Add([]byte("[(X)] TJ"))
	f.Add([]byte(`(\101\102)`))
	f.Add([]byte(`(\(x\))`))
	f.Add([]byte{'(', 0xff, 0xfe, ')'})

	dec, err := NewDecoder("")
	if err != nil {
		f.Fatal(err)
	}
	f.Fuzz(func(t *testing.T, run []byte) {
		_, err := dec.DecodeRun(run)
		var de *DecodeError
		if err != nil && !errors.As(err, &de) {
			t.Fatalf("unexpected error type %T: %v", err, err)
		}
	})
}
