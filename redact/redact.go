// Package redact blanks short text runs that show one of a set of answer
// tokens, rewriting the page content streams in place.
package redact

import (
	"context"
	"fmt"

	"github.com/wudi/pdfscrub/contentstream"
	"github.com/wudi/pdfscrub/document"
	"github.com/wudi/pdfscrub/ir/raw"
	"github.com/wudi/pdfscrub/observability"
)

// BlankOperator shows an empty string. The newlines keep it apart from the
// BT and ET operators around it. It replaces the whole run, Tf included, so
// renderers may warn that no font is set; nothing is drawn either way.
var BlankOperator = []byte("\n[()] TJ\n")

type Config struct {
	// Encoding is the WHATWG label used to decode runs; empty means UTF-8.
	Encoding string
}

func DefaultConfig() Config { return Config{Encoding: contentstream.DefaultEncoding} }

// Stats counts what one Redact call did.
type Stats struct {
	Pages          int
	Streams        int
	StreamsSkipped int
	StreamsChanged int
	Runs           int
	RunsBlanked    int
	RunsSkipped    int
}

type Redactor struct {
	decoder *contentstream.Decoder
	logger  observability.Logger
}

func New(cfg Config, logger observability.Logger) (*Redactor, error) {
	dec, err := contentstream.NewDecoder(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Redactor{decoder: dec, logger: logger}, nil
}

// Redact blanks every matching run of every content stream of doc. Each
// distinct stream is visited once even when pages share it. ctx is checked
// between streams; a stream is either fully rewritten or left untouched.
func (r *Redactor) Redact(ctx context.Context, doc document.Document, targets Targets) (Stats, error) {
	var st Stats
	if targets.Len() == 0 {
		return st, ErrNoTargets
	}
	seen := make(map[raw.ObjectRef]bool)
	for page := 0; page < doc.NumPages(); page++ {
		st.Pages++
		ids, err := doc.PageContents(page)
		if err != nil {
			return st, fmt.Errorf("page %d contents: %w", page, err)
		}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if err := ctx.Err(); err != nil {
				return st, err
			}
			st.Streams++
			data, err := doc.ReadStream(id)
			if err != nil {
				st.StreamsSkipped++
				r.logger.Warn("skipping undecodable content stream",
					observability.Int("page", page),
					observability.String("stream", id.String()),
					observability.Error("error", err),
				)
				continue
			}
			edits := r.plan(data, targets, &st)
			if len(edits) == 0 {
				continue
			}
			out, err := Apply(data, edits)
			if err != nil {
				return st, fmt.Errorf("stream %s: %w", id, err)
			}
			if err := doc.WriteStream(id, out); err != nil {
				return st, fmt.Errorf("stream %s: %w", id, err)
			}
			st.StreamsChanged++
			r.logger.Debug("blanked text runs",
				observability.Int("page", page),
				observability.String("stream", id.String()),
				observability.Int("runs", len(edits)),
			)
		}
	}
	return st, nil
}

// plan returns one edit per run of data that should be blanked.
func (r *Redactor) plan(data []byte, targets Targets, st *Stats) []Edit {
	var edits []Edit
	for run := range contentstream.Runs(data) {
		st.Runs++
		text, err := r.decoder.DecodeRun(data[run.Start:run.End])
		if err != nil {
			// Undecodable runs are left alone.
			st.RunsSkipped++
			continue
		}
		if !targets.Match(text) {
			continue
		}
		edits = append(edits, Edit{Offset: run.Start, Length: run.Len(), Replacement: BlankOperator})
		st.RunsBlanked++
	}
	return edits
}
