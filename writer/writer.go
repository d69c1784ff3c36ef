package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/highwayhash"

	"github.com/wudi/pdfscrub/ir/raw"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF17 PDFVersion = "1.7"
)

type Config struct {
	// Version overrides the document's header version when set.
	Version PDFVersion
	// Deterministic derives /ID from the written bytes instead of keeping
	// the input's identifier, so identical documents serialize identically.
	Deterministic bool
}

// Writer serializes a raw.Document with a classic cross-reference table.
// Object streams and xref streams are not written; their members are
// emitted as ordinary objects.
type Writer struct {
	cfg Config
}

func New(cfg Config) *Writer { return &Writer{cfg: cfg} }

// idKey seeds the HighwayHash used for file identifiers.
var idKey = []byte("pdfscrub file identifier key 32b")

// Write serializes doc to w and returns the number of bytes written.
func (wr *Writer) Write(ctx context.Context, doc *raw.Document, w io.Writer) (int64, error) {
	root, ok := doc.Trailer.Get("Root")
	if !ok {
		return 0, fmt.Errorf("document has no /Root")
	}
	version := string(wr.cfg.Version)
	if version == "" {
		version = doc.Version
	}
	if version == "" {
		version = string(PDF17)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version)

	offsets := make(map[int]int64)
	gens := make(map[int]int)
	maxNum := 0
	for i, ref := range doc.Refs() {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		obj := doc.Objects[ref]
		if obj == nil || skipObject(obj) {
			continue
		}
		offsets[ref.Num] = int64(buf.Len())
		gens[ref.Num] = ref.Gen
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
		fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
		buf.Write(serializeObject(obj))
		buf.WriteString("\nendobj\n")
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= maxNum; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(&buf, "%010d %05d n \n", off, gens[num])
		} else {
			buf.WriteString("0000000000 00000 f \n")
		}
	}

	trailer := raw.Dict()
	trailer.Set("Size", raw.Int(int64(maxNum+1)))
	trailer.Set("Root", root)
	if info, ok := doc.Trailer.Get("Info"); ok {
		if ref, isRef := info.(raw.RefObj); !isRef || offsets[ref.R.Num] > 0 {
			trailer.Set("Info", info)
		}
	}
	trailer.Set("ID", wr.fileID(doc, buf.Bytes()))
	buf.WriteString("trailer\n")
	buf.Write(serializeObject(trailer))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// skipObject drops cross-reference and object streams, which describe the
// layout of the input file rather than its content.
func skipObject(obj raw.Object) bool {
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return false
	}
	typ, _ := stm.Dict.Name("Type")
	return typ == "XRef" || typ == "ObjStm"
}

func (wr *Writer) fileID(doc *raw.Document, body []byte) *raw.ArrayObj {
	sum := highwayhash.Sum128(body, idKey)
	current := raw.StringObj{Bytes: sum[:], Hex: true}
	if !wr.cfg.Deterministic {
		if existing, ok := doc.Trailer.Get("ID"); ok {
			if arr, ok := existing.(*raw.ArrayObj); ok && arr.Len() == 2 {
				if first, ok := arr.Items[0].(raw.StringObj); ok {
					return raw.NewArray(first, current)
				}
			}
		}
	}
	return raw.NewArray(current, current)
}
