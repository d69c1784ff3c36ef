package redact

import (
	"bytes"
	"fmt"
	"sort"
)

// Edit replaces Length bytes at Offset with Replacement.
type Edit struct {
	Offset      int
	Length      int
	Replacement []byte
}

// Apply returns a copy of data with every edit applied in one left-to-right
// pass. Edits must not overlap; they need not be sorted. data is not
// modified, and with no edits the result equals data byte for byte.
func Apply(data []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return bytes.Clone(data), nil
	}
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	size := len(data)
	for _, e := range sorted {
		size += len(e.Replacement) - e.Length
	}
	out := make([]byte, 0, size)
	pos := 0
	for _, e := range sorted {
		if e.Offset < pos || e.Length < 0 || e.Offset+e.Length > len(data) {
			return nil, fmt.Errorf("edit at %d (+%d) overlaps or exceeds %d bytes", e.Offset, e.Length, len(data))
		}
		out = append(out, data[pos:e.Offset]...)
		out = append(out, e.Replacement...)
		pos = e.Offset + e.Length
	}
	return append(out, data[pos:]...), nil
}
