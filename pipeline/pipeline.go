// Package pipeline turns an exam PDF into an image-only PDF with the given
// answer tokens blanked and highlighter marks bleached.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wudi/pdfscrub/assemble"
	"github.com/wudi/pdfscrub/bleach"
	"github.com/wudi/pdfscrub/document"
	"github.com/wudi/pdfscrub/observability"
	"github.com/wudi/pdfscrub/raster"
	"github.com/wudi/pdfscrub/redact"
)

type Config struct {
	Document document.Options
	Redact   redact.Config
	Raster   raster.Config
	Ranges   []bleach.ColorRange
	Assemble assemble.Config
	// VerifyOutput re-reads the finished document and fails if any page
	// still yields text.
	VerifyOutput bool
}

// DefaultConfig matches the HTTP service: scale 1.8, JPEG quality 75.
func DefaultConfig() Config {
	return Config{
		Document: document.DefaultOptions(),
		Redact:   redact.DefaultConfig(),
		Raster:   raster.DefaultConfig(),
		Ranges:   bleach.DefaultRanges(),
		Assemble: assemble.DefaultConfig(),
	}
}

// BatchConfig matches the batch tool: scale 2.0.
func BatchConfig() Config {
	cfg := DefaultConfig()
	cfg.Raster.ScaleX = raster.BatchScale
	cfg.Raster.ScaleY = raster.BatchScale
	return cfg
}

// Report summarizes one run.
type Report struct {
	Pages          int
	Streams        int
	StreamsSkipped int
	StreamsChanged int
	Runs           int
	RunsBlanked    int
	RunsSkipped    int
	PixelsBleached int
	OutputBytes    int64
	Duration       time.Duration
}

type Option func(*Pipeline)

func WithLogger(l observability.Logger) Option { return func(p *Pipeline) { p.logger = l } }
func WithTracer(t observability.Tracer) Option { return func(p *Pipeline) { p.tracer = t } }
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithEngine replaces the MuPDF renderer.
func WithEngine(e raster.Engine) Option { return func(p *Pipeline) { p.engine = e } }

// Pipeline is safe for concurrent use; each Run works on its own document.
type Pipeline struct {
	cfg       Config
	redactor  *redact.Redactor
	rasterize *raster.Rasterizer
	assembler *assemble.Assembler
	engine    raster.Engine
	logger    observability.Logger
	tracer    observability.Tracer
	metrics   *observability.Metrics
}

func New(cfg Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:    cfg,
		logger: observability.NopLogger{},
		tracer: observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := bleach.ValidateRanges(cfg.Ranges); err != nil {
		return nil, err
	}
	var err error
	if p.redactor, err = redact.New(cfg.Redact, p.logger); err != nil {
		return nil, fmt.Errorf("redactor: %w", err)
	}
	if p.rasterize, err = raster.New(cfg.Raster, p.engine, p.logger); err != nil {
		return nil, fmt.Errorf("rasterizer: %w", err)
	}
	if p.assembler, err = assemble.New(cfg.Assemble); err != nil {
		return nil, fmt.Errorf("assembler: %w", err)
	}
	return p, nil
}

func (p *Pipeline) Config() Config { return p.cfg }

// Run returns the scrubbed document for input.
func (p *Pipeline) Run(ctx context.Context, input []byte, targets []string) ([]byte, error) {
	out, _, err := p.RunWithReport(ctx, input, targets)
	return out, err
}

// RunWithReport is Run plus per-stage counters. The target set is checked
// before input is parsed.
func (p *Pipeline) RunWithReport(ctx context.Context, input []byte, targets []string) (out []byte, rep Report, err error) {
	start := time.Now()
	defer func() {
		rep.Duration = time.Since(start)
		p.metrics.DocumentDone(Outcome(err))
	}()

	set, err := redact.NewTargets(targets...)
	if err != nil {
		return nil, rep, &ConfigError{Reason: "no search strings", Err: err}
	}

	var doc *document.PDF
	err = p.stage(ctx, observability.StageLoad, func(ctx context.Context) error {
		var err error
		doc, err = document.Open(ctx, input, p.cfg.Document)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if err != nil {
			return &InputError{Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, rep, err
	}

	err = p.stage(ctx, observability.StageRedact, func(ctx context.Context) error {
		st, err := p.redactor.Redact(ctx, doc, set)
		rep.Pages = st.Pages
		rep.Streams = st.Streams
		rep.StreamsSkipped = st.StreamsSkipped
		rep.StreamsChanged = st.StreamsChanged
		rep.Runs = st.Runs
		rep.RunsBlanked = st.RunsBlanked
		rep.RunsSkipped = st.RunsSkipped
		p.metrics.AddRedaction(st.RunsBlanked, st.RunsSkipped, st.StreamsSkipped)
		return err
	})
	if err != nil {
		return nil, rep, err
	}

	var images []*raster.Image
	err = p.stage(ctx, observability.StageRender, func(ctx context.Context) error {
		var err error
		images, err = p.rasterize.Render(ctx, doc)
		return err
	})
	if err != nil {
		return nil, rep, err
	}
	if len(images) == 0 {
		return nil, rep, &ConfigError{Reason: "document has no pages", Err: assemble.ErrNoImages}
	}

	err = p.stage(ctx, observability.StageBleach, func(context.Context) error {
		for _, img := range images {
			rep.PixelsBleached += bleach.Bleach(img, p.cfg.Ranges)
		}
		p.metrics.AddBleached(rep.PixelsBleached)
		return nil
	})
	if err != nil {
		return nil, rep, err
	}

	err = p.stage(ctx, observability.StageAssemble, func(context.Context) error {
		result, err := p.assembler.Assemble(images)
		if err != nil {
			if errors.Is(err, assemble.ErrNoImages) {
				return &ConfigError{Reason: "document has no pages", Err: err}
			}
			return err
		}
		var buf bytes.Buffer
		if _, err := result.WriteTo(&buf); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		out = buf.Bytes()
		return nil
	})
	if err != nil {
		return nil, rep, err
	}
	rep.OutputBytes = int64(len(out))

	if p.cfg.VerifyOutput {
		err = p.stage(ctx, observability.StageVerify, func(context.Context) error {
			return VerifyNoText(out)
		})
		if err != nil {
			return nil, rep, err
		}
	}

	p.logger.Info("document scrubbed",
		observability.Int("pages", rep.Pages),
		observability.Int("runs_blanked", rep.RunsBlanked),
		observability.Int("runs_skipped", rep.RunsSkipped),
		observability.Int("pixels_bleached", rep.PixelsBleached),
		observability.Int64("output_bytes", rep.OutputBytes),
		observability.Duration("took", time.Since(start)),
	)
	return out, rep, nil
}

// stage runs fn inside a span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.StartSpan(ctx, name)
	defer span.Finish()
	start := time.Now()
	err := fn(ctx)
	p.metrics.ObserveStage(name, time.Since(start))
	if err != nil {
		span.SetError(err)
		p.logger.Debug("stage failed", observability.String("stage", name), observability.Error("error", err))
	}
	return err
}
