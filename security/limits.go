package security

import (
	"errors"
	"fmt"
)

// ErrLimitExceeded is wrapped by every limit violation so callers can
// distinguish hostile or oversized input from malformed input.
var ErrLimitExceeded = errors.New("resource limit exceeded")

// Limits defines resource boundaries for loading, decoding and rendering
// uploaded documents. Every document is held in memory, so these are the only
// backpressure the pipeline has.
type Limits struct {
	// Maximum decompressed stream size (prevent zip bombs). Default: 100 MB.
	MaxDecompressedSize int64

	// Maximum reference chain followed while resolving an object. Default: 32.
	MaxIndirectDepth int

	// Maximum xref sections followed through /Prev. Default: 50.
	MaxXRefDepth int

	// Maximum nesting of arrays and dictionaries. Default: 64.
	MaxNestingDepth int

	// Maximum literal/hex string length (bytes). Default: 10 MB.
	MaxStringLength int64

	// Maximum raw stream length (bytes). Default: 50 MB.
	MaxStreamLength int64

	// Maximum number of pages accepted for rasterization. Default: 200.
	MaxPages int

	// Maximum pixels per rendered page (width*height). Default: 40 MP.
	MaxPagePixels int64
}

// DefaultLimits returns a Limits struct with safe default values.
func DefaultLimits() Limits {
	return Limits{
		MaxDecompressedSize: 100 * 1024 * 1024,
		MaxIndirectDepth:    32,
		MaxXRefDepth:        50,
		MaxNestingDepth:     64,
		MaxStringLength:     10 * 1024 * 1024,
		MaxStreamLength:     50 * 1024 * 1024,
		MaxPages:            200,
		MaxPagePixels:       40_000_000,
	}
}

// WithDefaults fills zero fields from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.MaxDecompressedSize <= 0 {
		l.MaxDecompressedSize = d.MaxDecompressedSize
	}
	if l.MaxIndirectDepth <= 0 {
		l.MaxIndirectDepth = d.MaxIndirectDepth
	}
	if l.MaxXRefDepth <= 0 {
		l.MaxXRefDepth = d.MaxXRefDepth
	}
	if l.MaxNestingDepth <= 0 {
		l.MaxNestingDepth = d.MaxNestingDepth
	}
	if l.MaxStringLength <= 0 {
		l.MaxStringLength = d.MaxStringLength
	}
	if l.MaxStreamLength <= 0 {
		l.MaxStreamLength = d.MaxStreamLength
	}
	if l.MaxPages <= 0 {
		l.MaxPages = d.MaxPages
	}
	if l.MaxPagePixels <= 0 {
		l.MaxPagePixels = d.MaxPagePixels
	}
	return l
}

// Exceeded builds an error wrapping ErrLimitExceeded.
func Exceeded(what string, got, max int64) error {
	return fmt.Errorf("%s: %d > %d: %w", what, got, max, ErrLimitExceeded)
}
