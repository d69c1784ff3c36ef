package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// ConfigError rejects a request before any document work starts: an empty
// target set, or a document that yields no pages to assemble.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid request: %s: %v", e.Reason, e.Err)
	}
	return "invalid request: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// InputError reports a document that could not be loaded: not a PDF,
// encrypted, or damaged beyond repair.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return fmt.Sprintf("unreadable document: %v", e.Err) }
func (e *InputError) Unwrap() error { return e.Err }

// ErrTextRemains is returned by VerifyNoText when the output still carries
// extractable text.
var ErrTextRemains = errors.New("output still contains text")

// Outcome classifies err for metrics and logs.
func Outcome(err error) string {
	var (
		ce *ConfigError
		ie *InputError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &ce):
		return "config_error"
	case errors.As(err, &ie):
		return "input_error"
	default:
		return "failed"
	}
}
