// Package contentstream extracts and decodes the pieces of a page content
// stream that carry text: runs between BT and ET, and the parenthesized
// literals inside them.
package contentstream

import (
	"bytes"
	"iter"
)

// Range is a half-open byte range [Start, End) of a buffer.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int { return r.End - r.Start }

var (
	BeginText = []byte("BT")
	EndText   = []byte("ET")
	OpenStr   = []byte("(")
	CloseStr  = []byte(")")
)

// Ranges yields the ranges strictly between successive start/end delimiter
// pairs, left to right. After a pair the next start is searched only after
// the end delimiter. A start without a matching end stops the scan and the
// trailing fragment is discarded. Empty delimiters yield nothing.
func Ranges(data, start, end []byte) iter.Seq[Range] {
	return func(yield func(Range) bool) {
		if len(start) == 0 || len(end) == 0 {
			return
		}
		pos := 0
		for pos < len(data) {
			i := bytes.Index(data[pos:], start)
			if i < 0 {
				return
			}
			from := pos + i + len(start)
			j := bytes.Index(data[from:], end)
			if j < 0 {
				return
			}
			to := from + j
			if !yield(Range{Start: from, End: to}) {
				return
			}
			pos = to + len(end)
		}
	}
}

// Segments yields the bytes of each range produced by Ranges. The slices
// alias data.
func Segments(data, start, end []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for r := range Ranges(data, start, end) {
			if !yield(data[r.Start:r.End]) {
				return
			}
		}
	}
}

// Runs yields the text runs of a content stream.
func Runs(data []byte) iter.Seq[Range] { return Ranges(data, BeginText, EndText) }
