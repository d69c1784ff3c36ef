// Package server exposes the scrubbing pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wudi/pdfscrub/observability"
)

// Processor scrubs one document.
type Processor interface {
	Run(ctx context.Context, input []byte, targets []string) ([]byte, error)
}

type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	AllowedOrigins  []string
	// RateLimit is requests per second per client; zero disables it.
	RateLimit float64
	RateBurst int
}

func DefaultConfig() Config {
	return Config{
		Addr:            ":8000",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    2 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		MaxUploadBytes:  50 << 20,
		RateLimit:       2,
		RateBurst:       5,
	}
}

type Server struct {
	cfg      Config
	proc     Processor
	logger   observability.Logger
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	limiter  *rateLimiter
	landing  []byte
}

type Option func(*Server)

func WithLogger(l observability.Logger) Option    { return func(s *Server) { s.logger = l } }
func WithMetrics(m *observability.Metrics) Option { return func(s *Server) { s.metrics = m } }
func WithGatherer(g prometheus.Gatherer) Option   { return func(s *Server) { s.gatherer = g } }

func New(cfg Config, proc Processor, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		proc:     proc,
		logger:   observability.NopLogger{},
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit, cfg.RateBurst, 10*time.Minute)
	}
	page, err := renderLanding()
	if err != nil {
		return nil, err
	}
	s.landing = page
	return s, nil
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors(s.cfg.AllowedOrigins))

	r.Get("/", s.index)
	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}
		r.Post("/eraseAnswers", s.eraseAnswers)
	})
	return r
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", observability.String("addr", s.cfg.Addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
