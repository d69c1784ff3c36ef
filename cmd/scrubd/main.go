// Command scrubd serves the answer-erasing pipeline over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wudi/pdfscrub/cache"
	"github.com/wudi/pdfscrub/config"
	"github.com/wudi/pdfscrub/observability"
	"github.com/wudi/pdfscrub/pipeline"
	"github.com/wudi/pdfscrub/server"
)

func main() {
	configPath := flag.String("config", "", "Path to pdfscrub.yaml (default: ./pdfscrub.yaml or /etc/pdfscrub/pdfscrub.yaml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "scrubd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath, ".env")
	if err != nil {
		return err
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  os.Stdout,
		Service: "scrubd",
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	pc, err := cfg.Pipeline.Build(pipeline.DefaultConfig())
	if err != nil {
		return err
	}
	p, err := pipeline.New(pc, pipeline.WithLogger(logger), pipeline.WithMetrics(metrics))
	if err != nil {
		return err
	}

	var proc server.Processor = p
	store, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		proc = cache.NewCached(p, store, cfg.Cache.TTL, variant(pc), logger, metrics)
		logger.Info("result cache enabled", observability.String("backend", cfg.Cache.Backend))
	}

	srv, err := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RateLimit:       cfg.Server.RateLimit,
		RateBurst:       cfg.Server.RateBurst,
	}, proc,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithGatherer(reg),
	)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case "memory":
		return cache.NewMemory(cfg.MaxBytes), nil
	case "redis":
		r, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, nil
}

// variant summarizes the settings that change the output bytes, so cached
// results from a differently configured process are never served.
func variant(c pipeline.Config) string {
	return fmt.Sprintf("scale=%gx%g codec=%s q=%d enc=%s ranges=%v",
		c.Raster.ScaleX, c.Raster.ScaleY, c.Assemble.Codec, c.Assemble.JPEGQuality, c.Redact.Encoding, c.Ranges)
}
