package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wudi/pdfscrub/document"
	"github.com/wudi/pdfscrub/ir/raw"
	"github.com/wudi/pdfscrub/observability"
	"github.com/wudi/pdfscrub/raster"
)

// examPDF builds a document with one page per content string, each page
// using Helvetica as /F1.
func examPDF(t *testing.T, contents ...string) []byte {
	t.Helper()
	doc := raw.NewDocument("1.4")
	font := raw.Dict()
	font.Set("Type", raw.Name("Font"))
	font.Set("Subtype", raw.Name("Type1"))
	font.Set("BaseFont", raw.Name("Helvetica"))
	doc.Objects[raw.ObjectRef{Num: 3}] = font

	kids := raw.NewArray()
	for i, c := range contents {
		stmRef := raw.ObjectRef{Num: 4 + 2*i}
		pageRef := raw.ObjectRef{Num: 5 + 2*i}
		doc.Objects[stmRef] = raw.NewStream(nil, []byte(c))

		fonts := raw.Dict()
		fonts.Set("F1", raw.RefObj{R: raw.ObjectRef{Num: 3}})
		res := raw.Dict()
		res.Set("Font", fonts)
		page := raw.Dict()
		page.Set("Type", raw.Name("Page"))
		page.Set("Parent", raw.Ref(2, 0))
		page.Set("MediaBox", raw.NewArray(raw.Int(0), raw.Int(0), raw.Int(200), raw.Int(100)))
		page.Set("Resources", res)
		page.Set("Contents", raw.RefObj{R: stmRef})
		doc.Objects[pageRef] = page
		kids.Append(raw.RefObj{R: pageRef})
	}
	pages := raw.Dict()
	pages.Set("Type", raw.Name("Pages"))
	pages.Set("Kids", kids)
	pages.Set("Count", raw.Int(int64(len(contents))))
	doc.Objects[raw.ObjectRef{Num: 2}] = pages
	cat := raw.Dict()
	cat.Set("Type", raw.Name("Catalog"))
	cat.Set("Pages", raw.Ref(2, 0))
	doc.Objects[raw.ObjectRef{Num: 1}] = cat
	doc.Trailer.Set("Root", raw.Ref(1, 0))

	pdf, err := document.FromRaw(doc, document.DefaultOptions())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	return buf.Bytes()
}

// stubEngine renders every page as a 20x10 black image with one yellow pixel
// at the origin, and remembers the bytes it was given.
type stubEngine struct {
	rendered []byte
}

func (e *stubEngine) Open(data []byte) (raster.Pages, error) {
	e.rendered = append([]byte(nil), data...)
	doc, err := document.Open(context.Background(), data, document.DefaultOptions())
	if err != nil {
		return nil, err
	}
	return stubPages{n: doc.NumPages()}, nil
}

type stubPages struct{ n int }

func (p stubPages) NumPage() int { return p.n }
func (p stubPages) Close() error { return nil }

func (p stubPages) Render(int, float64) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+3] = 0xff
	}
	img.SetRGBA(0, 0, color.RGBA{255, 255, 100, 255})
	return img, nil
}

func TestEmptyTargetsRejectedBeforeParsing(t *testing.T) {
	p, err := New(DefaultConfig(), WithEngine(&stubEngine{}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, targets := range [][]string{nil, {}, {"", ""}} {
		_, err := p.Run(context.Background(), []byte("definitely not a pdf"), targets)
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("targets %q: expected ConfigError, got %v", targets, err)
		}
	}
}

func TestUnreadableInput(t *testing.T) {
	p, _ := New(DefaultConfig(), WithEngine(&stubEngine{}))
	_, err := p.Run(context.Background(), []byte("garbage"), []string{"X"})
	var ie *InputError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if Outcome(err) != "input_error" {
		t.Fatalf("outcome = %q", Outcome(err))
	}
}

func TestRunScenario(t *testing.T) {
	input := examPDF(t,
		"BT /F1 12 Tf 10 50 Td (X) Tj ET\nBT /F1 12 Tf 10 20 Td (Xylophone) Tj ET",
		"BT /F1 12 Tf 10 50 Td (V) Tj ET\nBT /F1 12 Tf 10 20 Td (Q) Tj ET",
	)
	eng := &stubEngine{}
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	cfg := DefaultConfig()
	cfg.VerifyOutput = true
	p, err := New(cfg, WithEngine(eng), WithMetrics(metrics))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, rep, err := p.RunWithReport(context.Background(), input, []string{"X", "V", "F"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Pages != 2 || rep.Runs != 4 || rep.RunsBlanked != 2 || rep.StreamsChanged != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.PixelsBleached != 2 {
		t.Fatalf("bleached = %d", rep.PixelsBleached)
	}
	if rep.OutputBytes != int64(len(out)) {
		t.Fatalf("output bytes = %d, len = %d", rep.OutputBytes, len(out))
	}

	// The renderer saw the redacted document.
	seen, err := document.Open(context.Background(), eng.rendered, document.DefaultOptions())
	if err != nil {
		t.Fatalf("reparse rendered input: %v", err)
	}
	var text strings.Builder
	for i := 0; i < seen.NumPages(); i++ {
		ids, _ := seen.PageContents(i)
		for _, id := range ids {
			data, err := seen.ReadStream(id)
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			text.Write(data)
		}
	}
	s := text.String()
	if strings.Contains(s, "(X)") || strings.Contains(s, "(V)") {
		t.Fatalf("targets survived: %q", s)
	}
	if !strings.Contains(s, "(Xylophone)") || !strings.Contains(s, "(Q)") {
		t.Fatalf("non-matching runs lost: %q", s)
	}

	result, err := document.Open(context.Background(), out, document.DefaultOptions())
	if err != nil {
		t.Fatalf("reparse output: %v", err)
	}
	if result.NumPages() != 2 {
		t.Fatalf("output pages = %d", result.NumPages())
	}
	if got := testutil.ToFloat64(metrics.Documents.WithLabelValues("ok")); got != 1 {
		t.Fatalf("documents ok = %v", got)
	}
	if got := testutil.ToFloat64(metrics.RunsBlanked); got != 2 {
		t.Fatalf("runs blanked metric = %v", got)
	}
	if got := testutil.ToFloat64(metrics.PixelsBleached); got != 2 {
		t.Fatalf("pixels bleached metric = %v", got)
	}
	if got := testutil.CollectAndCount(metrics.StageDuration); got != 6 {
		t.Fatalf("stages observed = %d", got)
	}
}

func TestRunCanceled(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	p, _ := New(DefaultConfig(), WithEngine(&stubEngine{}), WithMetrics(metrics))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, examPDF(t, "BT (X) Tj ET"), []string{"X"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	var ie *InputError
	if errors.As(err, &ie) {
		t.Fatalf("cancellation reported as unreadable input: %v", err)
	}
	if Outcome(err) != "canceled" {
		t.Fatalf("outcome = %q", Outcome(err))
	}
	if got := testutil.ToFloat64(metrics.Documents.WithLabelValues("canceled")); got != 1 {
		t.Fatalf("documents canceled = %v", got)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&ConfigError{Reason: "no search strings"}, "config_error"},
		{&InputError{Err: errors.New("broken xref")}, "input_error"},
		{context.Canceled, "canceled"},
		{&InputError{Err: fmt.Errorf("resolve xref: %w", context.DeadlineExceeded)}, "canceled"},
		{errors.New("boom"), "failed"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Fatalf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestNewRejectsBadRanges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ranges[0].Low.R = 255
	cfg.Ranges[0].High.R = 1
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestBatchConfigScale(t *testing.T) {
	cfg := BatchConfig()
	if cfg.Raster.ScaleX != 2 || cfg.Raster.ScaleY != 2 {
		t.Fatalf("batch scale = %v,%v", cfg.Raster.ScaleX, cfg.Raster.ScaleY)
	}
	if DefaultConfig().Raster.ScaleX != 1.8 {
		t.Fatalf("service scale changed")
	}
}

func TestVerifyNoTextDetectsText(t *testing.T) {
	input := examPDF(t, "BT /F1 12 Tf 10 50 Td (Hello) Tj ET")
	if err := VerifyNoText(input); !errors.Is(err, ErrTextRemains) {
		t.Fatalf("expected ErrTextRemains, got %v", err)
	}
}

func TestRunEndToEndWithMuPDF(t *testing.T) {
	input := examPDF(t, "BT /F1 24 Tf 20 40 Td (X) Tj ET\n0 0 1 rg 100 40 50 20 re f")
	cfg := DefaultConfig()
	cfg.VerifyOutput = true
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, rep, err := p.RunWithReport(context.Background(), input, []string{"X"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.RunsBlanked != 1 {
		t.Fatalf("runs blanked = %d", rep.RunsBlanked)
	}
	if err := VerifyNoText(out); err != nil {
		t.Fatalf("verify: %v", err)
	}
}
