// Package config loads service and batch settings from defaults, an optional
// .env file, an optional YAML file and SCRUB_* environment variables, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/wudi/pdfscrub/assemble"
	"github.com/wudi/pdfscrub/bleach"
	"github.com/wudi/pdfscrub/contentstream"
	"github.com/wudi/pdfscrub/pipeline"
	"github.com/wudi/pdfscrub/raster"
)

// EnvPrefix prefixes every environment override, e.g. SCRUB_SERVER_ADDR.
const EnvPrefix = "SCRUB"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	// RateLimit is the sustained requests per second allowed per client;
	// zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type PipelineConfig struct {
	Scale       float64       `mapstructure:"scale"`
	Codec       string        `mapstructure:"codec"`
	JPEGQuality int           `mapstructure:"jpeg_quality"`
	Encoding    string        `mapstructure:"encoding"`
	Verify      bool          `mapstructure:"verify"`
	MaxPages    int           `mapstructure:"max_pages"`
	Ranges      []RangeConfig `mapstructure:"ranges"`
}

// RangeConfig is a highlighter color band; Low and High are [R, G, B].
type RangeConfig struct {
	Name string `mapstructure:"name"`
	Low  []int  `mapstructure:"low"`
	High []int  `mapstructure:"high"`
}

type CacheConfig struct {
	// Backend is none, memory or redis.
	Backend  string        `mapstructure:"backend"`
	TTL      time.Duration `mapstructure:"ttl"`
	MaxBytes int64         `mapstructure:"max_bytes"`
	Redis    RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the service defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  50 << 20,
			AllowedOrigins:  []string{"http://borrar.lucasgrasso.com.ar", "https://borraryestudi.ar"},
			RateLimit:       2,
			RateBurst:       5,
		},
		Pipeline: PipelineConfig{
			Scale:       raster.ServiceScale,
			Codec:       string(assemble.CodecJPEG),
			JPEGQuality: assemble.DefaultJPEGQuality,
			Encoding:    "utf-8",
			MaxPages:    200,
		},
		Cache: CacheConfig{
			Backend:  "memory",
			TTL:      time.Hour,
			MaxBytes: 256 << 20,
			Redis:    RedisConfig{Addr: "localhost:6379", Prefix: "pdfscrub:"},
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration. path may be empty, in which case pdfscrub.yaml
// is looked up in the working directory and /etc/pdfscrub. envFiles are
// loaded into the environment first; missing ones are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pdfscrub")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pdfscrub/")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.rate_burst", d.Server.RateBurst)
	v.SetDefault("pipeline.scale", d.Pipeline.Scale)
	v.SetDefault("pipeline.codec", d.Pipeline.Codec)
	v.SetDefault("pipeline.jpeg_quality", d.Pipeline.JPEGQuality)
	v.SetDefault("pipeline.encoding", d.Pipeline.Encoding)
	v.SetDefault("pipeline.verify", d.Pipeline.Verify)
	v.SetDefault("pipeline.max_pages", d.Pipeline.MaxPages)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.max_bytes", d.Cache.MaxBytes)
	v.SetDefault("cache.redis.addr", d.Cache.Redis.Addr)
	v.SetDefault("cache.redis.password", d.Cache.Redis.Password)
	v.SetDefault("cache.redis.db", d.Cache.Redis.DB)
	v.SetDefault("cache.redis.prefix", d.Cache.Redis.Prefix)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid server.max_upload_bytes: %d", c.Server.MaxUploadBytes)
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return errors.New("rate limit and burst must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst == 0 {
		return errors.New("server.rate_burst must be positive when rate limiting")
	}
	if _, err := c.Pipeline.Build(pipeline.DefaultConfig()); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("invalid cache backend: %s (must be none, memory or redis)", c.Cache.Backend)
	}
	if c.Cache.Backend == "memory" && c.Cache.MaxBytes <= 0 {
		return fmt.Errorf("invalid cache.max_bytes: %d", c.Cache.MaxBytes)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return errors.New("cache.redis.addr is required for the redis backend")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Log.Format)
	}
	return nil
}

// Build applies the pipeline section on top of base.
func (p PipelineConfig) Build(base pipeline.Config) (pipeline.Config, error) {
	if p.Scale <= 0 {
		return base, fmt.Errorf("invalid pipeline.scale: %g", p.Scale)
	}
	base.Raster.ScaleX = p.Scale
	base.Raster.ScaleY = p.Scale
	if p.MaxPages > 0 {
		base.Raster.Limits.MaxPages = p.MaxPages
		base.Document.Limits.MaxPages = p.MaxPages
	}

	codec, err := assemble.ParseCodec(p.Codec)
	if err != nil {
		return base, err
	}
	base.Assemble.Codec = codec
	base.Assemble.JPEGQuality = p.JPEGQuality
	if err := base.Assemble.Validate(); err != nil {
		return base, err
	}
	if p.Encoding != "" {
		if _, err := contentstream.NewDecoder(p.Encoding); err != nil {
			return base, err
		}
		base.Redact.Encoding = p.Encoding
	}
	base.VerifyOutput = p.Verify

	if len(p.Ranges) > 0 {
		ranges := make([]bleach.ColorRange, 0, len(p.Ranges))
		for i, r := range p.Ranges {
			cr, err := r.colorRange()
			if err != nil {
				return base, fmt.Errorf("pipeline.ranges[%d]: %w", i, err)
			}
			ranges = append(ranges, cr)
		}
		base.Ranges = ranges
	}
	if err := bleach.ValidateRanges(base.Ranges); err != nil {
		return base, err
	}
	return base, nil
}

func (r RangeConfig) colorRange() (bleach.ColorRange, error) {
	low, err := toRGB(r.Low)
	if err != nil {
		return bleach.ColorRange{}, fmt.Errorf("low: %w", err)
	}
	high, err := toRGB(r.High)
	if err != nil {
		return bleach.ColorRange{}, fmt.Errorf("high: %w", err)
	}
	return bleach.ColorRange{Name: r.Name, Low: low, High: high}, nil
}

func toRGB(c []int) (bleach.RGB, error) {
	if len(c) != 3 {
		return bleach.RGB{}, fmt.Errorf("want 3 components, got %d", len(c))
	}
	for _, v := range c {
		if v < 0 || v > 255 {
			return bleach.RGB{}, fmt.Errorf("component %d out of range 0-255", v)
		}
	}
	return bleach.RGB{R: uint8(c[0]), G: uint8(c[1]), B: uint8(c[2])}, nil
}
