package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogConfig selects the zerolog backend's level, encoding and sink.
type LogConfig struct {
	Level   string // debug, info, warn, error
	Format  string // json or console
	Output  io.Writer
	Service string
}

// NewLogger builds a zerolog-backed Logger from cfg.
func NewLogger(cfg LogConfig) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zc := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.Service != "" {
		zc = zc.Str("service", cfg.Service)
	}
	return NewZerolog(zc.Logger())
}

// NewZerolog adapts an existing zerolog.Logger.
func NewZerolog(zl zerolog.Logger) Logger { return zerologLogger{zl: zl} }

type zerologLogger struct{ zl zerolog.Logger }

func (l zerologLogger) Debug(msg string, fields ...Field) { emit(l.zl.Debug(), msg, fields) }
func (l zerologLogger) Info(msg string, fields ...Field)  { emit(l.zl.Info(), msg, fields) }
func (l zerologLogger) Warn(msg string, fields ...Field)  { emit(l.zl.Warn(), msg, fields) }
func (l zerologLogger) Error(msg string, fields ...Field) { emit(l.zl.Error(), msg, fields) }

func (l zerologLogger) With(fields ...Field) Logger {
	zc := l.zl.With()
	for _, f := range fields {
		switch v := f.Value().(type) {
		case string:
			zc = zc.Str(f.Key(), v)
		case int:
			zc = zc.Int(f.Key(), v)
		case int64:
			zc = zc.Int64(f.Key(), v)
		case error:
			zc = zc.AnErr(f.Key(), v)
		default:
			zc = zc.Interface(f.Key(), v)
		}
	}
	return zerologLogger{zl: zc.Logger()}
}

func emit(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value().(type) {
		case string:
			e = e.Str(f.Key(), v)
		case []string:
			e = e.Strs(f.Key(), v)
		case int:
			e = e.Int(f.Key(), v)
		case int64:
			e = e.Int64(f.Key(), v)
		case float64:
			e = e.Float64(f.Key(), v)
		case bool:
			e = e.Bool(f.Key(), v)
		case time.Duration:
			e = e.Dur(f.Key(), v)
		case error:
			e = e.AnErr(f.Key(), v)
		default:
			e = e.Interface(f.Key(), v)
		}
	}
	e.Msg(msg)
}
