// Package raster renders document pages to RGB images.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"golang.org/x/image/draw"

	"github.com/wudi/pdfscrub/document"
	"github.com/wudi/pdfscrub/observability"
	"github.com/wudi/pdfscrub/security"
)

const (
	// ServiceScale is the zoom used by the HTTP service.
	ServiceScale = 1.8
	// BatchScale is the zoom used by the batch tool.
	BatchScale = 2.0
	// PointsPerInch relates scale to DPI: scale 1 renders one pixel per point.
	PointsPerInch = 72.0
)

// RenderError reports a page that could not be rendered. Page is 0-based;
// -1 means the document as a whole could not be opened by the renderer.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	if e.Page < 0 {
		return fmt.Sprintf("render document: %v", e.Err)
	}
	return fmt.Sprintf("render page %d: %v", e.Page+1, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

type Config struct {
	ScaleX float64
	ScaleY float64
	Limits security.Limits
}

func DefaultConfig() Config {
	return Config{ScaleX: ServiceScale, ScaleY: ServiceScale, Limits: security.DefaultLimits()}
}

func (c Config) Validate() error {
	if !(c.ScaleX > 0) || !(c.ScaleY > 0) || math.IsInf(c.ScaleX, 0) || math.IsInf(c.ScaleY, 0) {
		return fmt.Errorf("scale must be positive, got %gx%g", c.ScaleX, c.ScaleY)
	}
	return nil
}

// Engine opens serialized PDF bytes for rendering.
type Engine interface {
	Open(data []byte) (Pages, error)
}

// Pages is an opened document inside an Engine.
type Pages interface {
	NumPage() int
	// Render draws page i at dpi dots per inch on an opaque white background.
	Render(i int, dpi float64) (image.Image, error)
	Close() error
}

type Rasterizer struct {
	cfg    Config
	engine Engine
	logger observability.Logger
}

// New returns a Rasterizer. A nil engine selects MuPDF.
func New(cfg Config, engine Engine, logger observability.Logger) (*Rasterizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Limits = cfg.Limits.WithDefaults()
	if engine == nil {
		engine = FitzEngine{}
	}
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Rasterizer{cfg: cfg, engine: engine, logger: logger}, nil
}

func (r *Rasterizer) Config() Config { return r.cfg }

// Render returns one image per page in page order. The document is
// serialized first, so the images reflect every stream already rewritten.
func (r *Rasterizer) Render(ctx context.Context, doc document.Document) ([]*Image, error) {
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize for rendering: %w", err)
	}
	pages, err := r.engine.Open(buf.Bytes())
	if err != nil {
		return nil, &RenderError{Page: -1, Err: err}
	}
	defer pages.Close()

	n := pages.NumPage()
	if int64(n) > int64(r.cfg.Limits.MaxPages) {
		return nil, security.Exceeded("pages", int64(n), int64(r.cfg.Limits.MaxPages))
	}
	maxScale := math.Max(r.cfg.ScaleX, r.cfg.ScaleY)
	dpi := PointsPerInch * maxScale

	out := make([]*Image, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		img, err := pages.Render(i, dpi)
		if err != nil {
			return nil, &RenderError{Page: i, Err: err}
		}
		b := img.Bounds()
		if px := int64(b.Dx()) * int64(b.Dy()); px > r.cfg.Limits.MaxPagePixels {
			return nil, &RenderError{Page: i, Err: security.Exceeded("page pixels", px, r.cfg.Limits.MaxPagePixels)}
		}
		if r.cfg.ScaleX != r.cfg.ScaleY {
			img = resample(img, r.cfg.ScaleX/maxScale, r.cfg.ScaleY/maxScale)
		}
		page := FromImage(img)
		if page.Width == 0 || page.Height == 0 {
			return nil, &RenderError{Page: i, Err: errors.New("empty page bounds")}
		}
		out = append(out, page)
		r.logger.Debug("rendered page",
			observability.Int("page", i),
			observability.Int("width", page.Width),
			observability.Int("height", page.Height),
			observability.Duration("took", time.Since(start)),
		)
	}
	return out, nil
}

// resample shrinks one axis of img. fx and fy are in (0, 1]; the longer
// scale was already applied by the renderer.
func resample(img image.Image, fx, fy float64) image.Image {
	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * fx))
	h := int(math.Round(float64(b.Dy()) * fy))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
