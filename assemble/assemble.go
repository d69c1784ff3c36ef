// Package assemble builds an image-only PDF with one page per raster.
package assemble

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/wudi/pdfscrub/document"
	"github.com/wudi/pdfscrub/filters"
	"github.com/wudi/pdfscrub/ir/raw"
	"github.com/wudi/pdfscrub/raster"
	"github.com/wudi/pdfscrub/writer"
)

var ErrNoImages = errors.New("no page images to assemble")

// Codec selects how page images are compressed.
type Codec string

const (
	CodecJPEG  Codec = "jpeg"
	CodecFlate Codec = "flate"
)

// ParseCodec accepts "jpeg" (or "jpg", "dct") and "flate" (or "png", "zip").
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg", "dct", "":
		return CodecJPEG, nil
	case "flate", "png", "zip":
		return CodecFlate, nil
	}
	return "", fmt.Errorf("unknown image codec %q", s)
}

const DefaultJPEGQuality = 75

type Config struct {
	Codec       Codec
	JPEGQuality int
	// Version is the header version of assembled documents.
	Version writer.PDFVersion
}

func DefaultConfig() Config {
	return Config{Codec: CodecJPEG, JPEGQuality: DefaultJPEGQuality, Version: writer.PDF14}
}

func (c Config) Validate() error {
	codec, err := ParseCodec(string(c.Codec))
	if err != nil {
		return err
	}
	if codec == CodecJPEG && (c.JPEGQuality < 1 || c.JPEGQuality > 100) {
		return fmt.Errorf("jpeg quality %d out of range 1-100", c.JPEGQuality)
	}
	return nil
}

type Assembler struct {
	cfg Config
}

func New(cfg Config) (*Assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Codec, _ = ParseCodec(string(cfg.Codec))
	if cfg.Version == "" {
		cfg.Version = writer.PDF14
	}
	return &Assembler{cfg: cfg}, nil
}

// Assemble returns a new document whose page i shows images[i] at one unit
// per pixel and nothing else.
func (a *Assembler) Assemble(images []*raster.Image) (*document.PDF, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	doc := raw.NewDocument(string(a.cfg.Version))
	pagesRef := raw.ObjectRef{Num: 2}
	kids := raw.NewArray()

	for i, img := range images {
		if img == nil || img.Width <= 0 || img.Height <= 0 {
			return nil, fmt.Errorf("page %d: empty image", i+1)
		}
		xobj, err := a.imageXObject(img)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		// Object numbers: 1 catalog, 2 page tree, then image, content, page.
		base := 3 + 3*i
		imgRef := raw.ObjectRef{Num: base}
		contentRef := raw.ObjectRef{Num: base + 1}
		pageRef := raw.ObjectRef{Num: base + 2}

		content, err := pageContent(img.Width, img.Height)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}

		xobjects := raw.Dict()
		xobjects.Set("Im0", raw.RefObj{R: imgRef})
		resources := raw.Dict()
		resources.Set("XObject", xobjects)

		page := raw.Dict()
		page.Set("Type", raw.Name("Page"))
		page.Set("Parent", raw.RefObj{R: pagesRef})
		page.Set("MediaBox", raw.NewArray(raw.Int(0), raw.Int(0), raw.Int(int64(img.Width)), raw.Int(int64(img.Height))))
		page.Set("Resources", resources)
		page.Set("Contents", raw.RefObj{R: contentRef})

		doc.Objects[imgRef] = xobj
		doc.Objects[contentRef] = content
		doc.Objects[pageRef] = page
		kids.Append(raw.RefObj{R: pageRef})
	}

	pages := raw.Dict()
	pages.Set("Type", raw.Name("Pages"))
	pages.Set("Kids", kids)
	pages.Set("Count", raw.Int(int64(len(images))))
	doc.Objects[pagesRef] = pages

	catalog := raw.Dict()
	catalog.Set("Type", raw.Name("Catalog"))
	catalog.Set("Pages", raw.RefObj{R: pagesRef})
	catalogRef := raw.ObjectRef{Num: 1}
	doc.Objects[catalogRef] = catalog
	doc.Trailer.Set("Root", raw.RefObj{R: catalogRef})

	opts := document.DefaultOptions()
	opts.Writer = writer.Config{Version: a.cfg.Version, Deterministic: true}
	return document.FromRaw(doc, opts)
}

func pageContent(w, h int) (*raw.StreamObj, error) {
	ops := fmt.Sprintf("q %d 0 0 %d 0 0 cm /Im0 Do Q\n", w, h)
	enc, err := filters.EncodeFlate([]byte(ops))
	if err != nil {
		return nil, err
	}
	dict := raw.Dict()
	dict.Set("Filter", raw.Name("FlateDecode"))
	return raw.NewStream(dict, enc), nil
}

func (a *Assembler) imageXObject(img *raster.Image) (*raw.StreamObj, error) {
	dict := raw.Dict()
	dict.Set("Type", raw.Name("XObject"))
	dict.Set("Subtype", raw.Name("Image"))
	dict.Set("Width", raw.Int(int64(img.Width)))
	dict.Set("Height", raw.Int(int64(img.Height)))
	dict.Set("ColorSpace", raw.Name("DeviceRGB"))
	dict.Set("BitsPerComponent", raw.Int(8))

	var data []byte
	switch a.cfg.Codec {
	case CodecFlate:
		enc, err := filters.EncodeFlate(img.Pix)
		if err != nil {
			return nil, fmt.Errorf("flate encode image: %w", err)
		}
		dict.Set("Filter", raw.Name("FlateDecode"))
		data = enc
	default:
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img.ToRGBA(), &jpeg.Options{Quality: a.cfg.JPEGQuality}); err != nil {
			return nil, fmt.Errorf("jpeg encode image: %w", err)
		}
		dict.Set("Filter", raw.Name("DCTDecode"))
		data = buf.Bytes()
	}
	return raw.NewStream(dict, data), nil
}
