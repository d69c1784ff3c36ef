package raster

import (
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzEngine renders with MuPDF through go-fitz.
type FitzEngine struct{}

func (FitzEngine) Open(data []byte) (Pages, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return fitzPages{doc: doc}, nil
}

type fitzPages struct{ doc *fitz.Document }

func (p fitzPages) NumPage() int { return p.doc.NumPage() }
func (p fitzPages) Close() error { return p.doc.Close() }

func (p fitzPages) Render(i int, dpi float64) (image.Image, error) {
	return p.doc.ImageDPI(i, dpi)
}
