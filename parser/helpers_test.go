package parser

import (
	"bytes"
	"fmt"
	"sort"
)

// pdfBuilder writes small PDF files by hand so tests control every offset.
type pdfBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int64
}

func newPDF(version string) *pdfBuilder {
	b := &pdfBuilder{offsets: make(map[int]int64)}
	fmt.Fprintf(&b.buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version)
	return b
}

func (b *pdfBuilder) obj(num int, body string) {
	b.offsets[num] = int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (b *pdfBuilder) stream(num int, dict string, data []byte) {
	b.offsets[num] = int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", num, dict, len(data))
	b.buf.Write(data)
	b.buf.WriteString("\nendstream\nendobj\n")
}

// xref writes a classic table for nums, then the trailer and startxref.
func (b *pdfBuilder) xref(nums []int, trailer string) int64 {
	sort.Ints(nums)
	off := int64(b.buf.Len())
	b.buf.WriteString("xref\n0 1\n0000000000 65535 f \n")
	for _, n := range nums {
		fmt.Fprintf(&b.buf, "%d 1\n%010d 00000 n \n", n, b.offsets[n])
	}
	fmt.Fprintf(&b.buf, "trailer\n<< %s >>\nstartxref\n%d\n%%%%EOF\n", trailer, off)
	return off
}

func (b *pdfBuilder) bytes() []byte { return b.buf.Bytes() }

func buildClassicPDF() []byte {
	b := newPDF("1.7")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>")
	b.stream(4, "", []byte("BT /F1 12 Tf (X) Tj ET"))
	b.xref([]int{1, 2, 3, 4}, "/Size 5 /Root 1 0 R")
	return b.bytes()
}

func buildIncrementalPDF() []byte {
	b := newPDF("1.7")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	first := b.xref([]int{1, 2}, "/Size 3 /Root 1 0 R")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 2 >>")
	b.obj(3, "<< /Producer (update) >>")
	b.xref([]int{2, 3}, fmt.Sprintf("/Size 4 /Root 1 0 R /Prev %d", first))
	return b.bytes()
}

// buildXRefStreamPDF stores the page in an object stream and indexes the
// file with an uncompressed cross-reference stream.
func buildXRefStreamPDF() []byte {
	b := newPDF("1.7")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	header := "3 0 "
	b.stream(4, fmt.Sprintf("/Type /ObjStm /N 1 /First %d", len(header)), []byte(header+"<< /Type /Page /Parent 2 0 R >>"))

	xrefOff := int64(b.buf.Len())
	b.offsets[5] = xrefOff
	row := func(typ byte, f2 int64, f3 byte) []byte { return []byte{typ, byte(f2 >> 8), byte(f2), f3} }
	var rows []byte
	rows = append(rows, row(0, 0, 255)...)
	rows = append(rows, row(1, b.offsets[1], 0)...)
	rows = append(rows, row(1, b.offsets[2], 0)...)
	rows = append(rows, row(2, 4, 0)...)
	rows = append(rows, row(1, b.offsets[4], 0)...)
	rows = append(rows, row(1, xrefOff, 0)...)
	b.stream(5, "/Type /XRef /Size 6 /W [1 2 1] /Root 1 0 R", rows)
	fmt.Fprintf(&b.buf, "startxref\n%d\n%%%%EOF\n", xrefOff)
	return b.bytes()
}
