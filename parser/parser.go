package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/wudi/pdfscrub/filters"
	"github.com/wudi/pdfscrub/ir/raw"
	"github.com/wudi/pdfscrub/observability"
	"github.com/wudi/pdfscrub/recovery"
	"github.com/wudi/pdfscrub/security"
	"github.com/wudi/pdfscrub/xref"
)

var (
	// ErrNotPDF is returned when the %PDF- header is missing.
	ErrNotPDF = errors.New("not a PDF file")
	// ErrEncrypted is returned for documents with an /Encrypt dictionary.
	ErrEncrypted = errors.New("encrypted PDF documents are not supported")
)

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	Recovery recovery.Strategy
	Limits   security.Limits
	Logger   observability.Logger
}

// DefaultConfig parses leniently, repairing broken cross-reference data.
func DefaultConfig() Config {
	return Config{
		Recovery: recovery.NewLenientStrategy(nil),
		Limits:   security.DefaultLimits(),
		Logger:   observability.NopLogger{},
	}
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	cfg.Limits = cfg.Limits.WithDefaults()
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &DocumentParser{cfg: cfg}
}

// Parse loads every object of data, including members of object streams.
func (p *DocumentParser) Parse(ctx context.Context, data []byte) (*raw.Document, error) {
	version, err := headerVersion(data)
	if err != nil {
		return nil, err
	}
	pipe := filters.NewDefaultPipeline(p.cfg.Limits)
	op := newObjectParser(data, p.cfg.Limits, p.cfg.Recovery)
	resolver := xref.NewResolver(xref.ResolverConfig{
		Limits:   p.cfg.Limits,
		Recovery: p.cfg.Recovery,
		Parser:   op,
		Filters:  pipe,
	})
	table, err := resolver.Resolve(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	if _, ok := table.Trailer().Get("Encrypt"); ok {
		return nil, ErrEncrypted
	}

	doc, misses, err := p.load(ctx, op, pipe, table, version)
	if err != nil {
		return nil, err
	}
	// Offsets that do not land on their object usually mean the xref was
	// written for a different revision of the file. Rebuild it once.
	if misses > 0 && !table.Repaired() && p.cfg.Recovery != nil &&
		p.cfg.Recovery.OnError(fmt.Errorf("%d xref entries point at the wrong object", misses), recovery.Location{Component: "xref"}) == recovery.ActionFix {
		repaired, rerr := resolver.Repair(ctx, data)
		if rerr == nil {
			if fixed, _, lerr := p.load(ctx, op, pipe, repaired, version); lerr == nil {
				doc = fixed
			}
		}
	}
	if _, ok := doc.Catalog(); !ok {
		return nil, errors.New("document catalog missing")
	}
	p.cfg.Logger.Debug("parsed document",
		observability.String("version", doc.Version),
		observability.Int("objects", len(doc.Objects)),
		observability.Bool("repaired", doc.Repaired),
	)
	return doc, nil
}

func (p *DocumentParser) load(ctx context.Context, op *objectParser, pipe *filters.Pipeline, table *xref.Table, version string) (*raw.Document, int, error) {
	op.table = table
	doc := raw.NewDocument(version)
	doc.Trailer = table.Trailer()
	doc.Repaired = table.Repaired()

	misses := 0
	compressed := make(map[int][]int) // stream number -> member indexes
	for _, num := range table.Objects() {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		e, _ := table.Lookup(num)
		if e.Kind == xref.EntryCompressed {
			compressed[e.Stream] = append(compressed[e.Stream], e.Index)
			continue
		}
		ref, obj, err := op.ParseIndirect(e.Offset)
		if err == nil && ref.Num != num {
			err = fmt.Errorf("xref entry %d points at object %d", num, ref.Num)
		}
		if err != nil {
			misses++
			if p.skip(err, num, e.Gen, e.Offset) {
				continue
			}
			return nil, 0, fmt.Errorf("load object %d: %w", num, err)
		}
		doc.Objects[ref] = obj
	}

	// Repaired tables do not know about compressed objects; pull every member
	// of every object stream that was found.
	if table.Repaired() {
		for ref, obj := range doc.Objects {
			if stm, ok := obj.(*raw.StreamObj); ok {
				if typ, _ := stm.Dict.Name("Type"); typ == "ObjStm" {
					if _, seen := compressed[ref.Num]; !seen {
						compressed[ref.Num] = nil
					}
				}
			}
		}
	}

	streams := make([]int, 0, len(compressed))
	for num := range compressed {
		streams = append(streams, num)
	}
	sort.Ints(streams)
	for _, stmNum := range streams {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		if err := p.loadCompressed(ctx, doc, pipe, stmNum, compressed[stmNum]); err != nil {
			if p.skip(err, stmNum, 0, -1) {
				continue
			}
			return nil, 0, err
		}
	}
	return doc, misses, nil
}

func (p *DocumentParser) loadCompressed(ctx context.Context, doc *raw.Document, pipe *filters.Pipeline, stmNum int, indexes []int) error {
	obj, ok := doc.Get(raw.ObjectRef{Num: stmNum})
	stm, isStream := obj.(*raw.StreamObj)
	if !ok || !isStream {
		return fmt.Errorf("object stream %d missing", stmNum)
	}
	ostm, err := loadObjectStream(ctx, stm, pipe, p.cfg.Limits)
	if err != nil {
		return fmt.Errorf("object stream %d: %w", stmNum, err)
	}
	if indexes == nil {
		for i := range ostm.nums {
			indexes = append(indexes, i)
		}
	}
	for _, idx := range indexes {
		num, member, err := ostm.member(idx)
		if err != nil {
			if p.skip(err, stmNum, 0, -1) {
				continue
			}
			return fmt.Errorf("object stream %d member %d: %w", stmNum, idx, err)
		}
		ref := raw.ObjectRef{Num: num}
		// Objects stored directly in the file take precedence in repaired
		// tables, where they come from later incremental updates.
		if _, exists := doc.Objects[ref]; !exists {
			doc.Objects[ref] = member
		}
	}
	return nil
}

// skip reports whether the recovery strategy lets loading continue past err.
func (p *DocumentParser) skip(err error, num, gen int, offset int64) bool {
	if p.cfg.Recovery == nil {
		return false
	}
	action := p.cfg.Recovery.OnError(err, recovery.Location{ByteOffset: offset, ObjectNum: num, ObjectGen: gen, Component: "object"})
	return action == recovery.ActionSkip || action == recovery.ActionFix || action == recovery.ActionWarn
}

// headerVersion finds "%PDF-x.y" within the first KiB, where readers accept it.
func headerVersion(data []byte) (string, error) {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	idx := bytes.Index(head, []byte("%PDF-"))
	if idx < 0 {
		return "", ErrNotPDF
	}
	v := data[idx+5:]
	end := 0
	for end < len(v) && end < 8 && (v[end] == '.' || (v[end] >= '0' && v[end] <= '9')) {
		end++
	}
	if end == 0 {
		return "1.4", nil
	}
	return string(v[:end]), nil
}

// IsPDF reports whether data carries a PDF header.
func IsPDF(data []byte) bool {
	_, err := headerVersion(data)
	return err == nil
}
