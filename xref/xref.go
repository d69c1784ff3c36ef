package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/wudi/pdfscrub/filters"
	"github.com/wudi/pdfscrub/ir/raw"
	"github.com/wudi/pdfscrub/recovery"
	"github.com/wudi/pdfscrub/scanner"
	"github.com/wudi/pdfscrub/security"
)

var (
	ErrNoStartXRef = errors.New("startxref not found")
	ErrXRefLoop    = errors.New("xref /Prev chain loops")
	ErrNoParser    = errors.New("xref resolver has no object parser")
)

type EntryKind int

const (
	EntryFree EntryKind = iota
	EntryInUse
	EntryCompressed
)

// Entry locates one object. In-use entries carry a byte offset; compressed
// entries name the object stream and the member index inside it.
type Entry struct {
	Kind   EntryKind
	Offset int64
	Gen    int
	Stream int
	Index  int
}

// Table is the merged view of every xref section of a file, newest first.
type Table struct {
	entries  map[int]Entry
	trailer  *raw.DictObj
	repaired bool
	sections int
}

func (t *Table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	return e, ok
}

// Objects returns the object numbers of every non-free entry.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.Kind != EntryFree {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

func (t *Table) Trailer() *raw.DictObj { return t.trailer }
func (t *Table) Repaired() bool        { return t.repaired }
func (t *Table) Sections() int         { return t.sections }

// merge adds entries that are not yet defined; callers merge newer sections
// first so older sections never shadow an update.
func (t *Table) merge(entries map[int]Entry) {
	for num, e := range entries {
		if _, ok := t.entries[num]; !ok {
			t.entries[num] = e
		}
	}
}

// ObjectParser parses objects out of the file for the resolver. The parser
// package supplies it, which keeps object grammar out of this package.
type ObjectParser interface {
	// ParseIndirect parses "n g obj ... endobj" starting at offset.
	ParseIndirect(offset int64) (raw.ObjectRef, raw.Object, error)
	// ParseDirect parses one direct object starting at offset.
	ParseDirect(offset int64) (raw.Object, error)
}

type ResolverConfig struct {
	Limits   security.Limits
	Recovery recovery.Strategy
	Parser   ObjectParser
	Filters  *filters.Pipeline
}

type Resolver struct {
	cfg ResolverConfig
}

func NewResolver(cfg ResolverConfig) *Resolver {
	cfg.Limits = cfg.Limits.WithDefaults()
	if cfg.Filters == nil {
		cfg.Filters = filters.NewDefaultPipeline(cfg.Limits)
	}
	return &Resolver{cfg: cfg}
}

// Resolve reads the xref chain starting at the last startxref. When the chain
// is unusable and the recovery strategy answers ActionFix, the table is
// rebuilt by scanning the whole file.
func (r *Resolver) Resolve(ctx context.Context, data []byte) (*Table, error) {
	if r.cfg.Parser == nil {
		return nil, ErrNoParser
	}
	t, err := r.resolveChain(ctx, data)
	if err == nil {
		return t, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if r.cfg.Recovery == nil || r.cfg.Recovery.OnError(err, recovery.Location{Component: "xref"}) != recovery.ActionFix {
		return nil, err
	}
	return r.Repair(ctx, data)
}

func (r *Resolver) resolveChain(ctx context.Context, data []byte) (*Table, error) {
	offset, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}
	t := &Table{entries: make(map[int]Entry)}
	visited := make(map[int64]bool)
	for depth := 0; offset >= 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if int64(depth) >= int64(r.cfg.Limits.MaxXRefDepth) {
			return nil, security.Exceeded("xref sections", int64(depth+1), int64(r.cfg.Limits.MaxXRefDepth))
		}
		if visited[offset] {
			return nil, fmt.Errorf("offset %d: %w", offset, ErrXRefLoop)
		}
		visited[offset] = true

		entries, trailer, err := r.readSection(ctx, data, offset)
		if err != nil {
			return nil, fmt.Errorf("xref section at %d: %w", offset, err)
		}
		t.merge(entries)
		t.sections++
		if t.trailer == nil {
			t.trailer = trailer
		} else {
			inheritTrailer(t.trailer, trailer)
		}

		offset = -1
		if prev, ok := trailer.Int("Prev"); ok {
			offset = prev
		}
	}
	if _, ok := t.trailer.Get("Root"); !ok {
		return nil, errors.New("trailer has no /Root")
	}
	return t, nil
}

// inheritTrailer copies document-level keys that a newer trailer omitted.
func inheritTrailer(dst, older *raw.DictObj) {
	for _, k := range []string{"Root", "Info", "ID", "Encrypt"} {
		if _, ok := dst.Get(k); ok {
			continue
		}
		if v, ok := older.Get(k); ok {
			dst.Set(k, v)
		}
	}
}

func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, ErrNoStartXRef
	}
	s := scanner.New(data, scanner.Config{})
	if err := s.SeekTo(int64(idx + len("startxref"))); err != nil {
		return 0, err
	}
	tok, err := s.Next()
	if err != nil || tok.Type != scanner.TokenNumber || !tok.IsInt {
		return 0, fmt.Errorf("startxref value: %w", ErrNoStartXRef)
	}
	if tok.Int <= 0 || tok.Int >= int64(len(data)) {
		return 0, fmt.Errorf("xref offset out of range: %d", tok.Int)
	}
	return tok.Int, nil
}

func (r *Resolver) readSection(ctx context.Context, data []byte, offset int64) (map[int]Entry, *raw.DictObj, error) {
	if offset < 0 || offset >= int64(len(data)) {
		return nil, nil, fmt.Errorf("offset %d out of range", offset)
	}
	start := offset
	for start < int64(len(data)) && scanner.IsWhitespace(data[start]) {
		start++
	}
	if bytes.HasPrefix(data[start:], []byte("xref")) {
		entries, trailer, err := r.readTable(data, start)
		if err != nil {
			return nil, nil, err
		}
		// Hybrid files keep objects from object streams in a side stream.
		if stm, ok := trailer.Int("XRefStm"); ok {
			side, _, err := r.readStream(ctx, stm)
			if err != nil {
				return nil, nil, fmt.Errorf("XRefStm: %w", err)
			}
			for num, e := range side {
				if _, ok := entries[num]; !ok {
					entries[num] = e
				}
			}
		}
		return entries, trailer, nil
	}
	return r.readStream(ctx, start)
}

func (r *Resolver) readTable(data []byte, offset int64) (map[int]Entry, *raw.DictObj, error) {
	s := scanner.New(data, scanner.Config{Limits: r.cfg.Limits})
	if err := s.SeekTo(offset); err != nil {
		return nil, nil, err
	}
	if tok, err := s.Next(); err != nil || tok.Str != "xref" {
		return nil, nil, errors.New("xref keyword not found at offset")
	}
	entries := make(map[int]Entry)
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, nil, fmt.Errorf("unexpected end of xref section: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			break
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, nil, fmt.Errorf("invalid xref subsection header at %d", tok.Pos)
		}
		first := tok.Int
		countTok, err := s.Next()
		if err != nil || countTok.Type != scanner.TokenNumber || !countTok.IsInt || countTok.Int < 0 {
			return nil, nil, fmt.Errorf("invalid xref subsection count at %d", tok.Pos)
		}
		for i := int64(0); i < countTok.Int; i++ {
			off, err1 := s.Next()
			gen, err2 := s.Next()
			kind, err3 := s.Next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, nil, fmt.Errorf("truncated xref entry: %w", err)
			}
			if off.Type != scanner.TokenNumber || gen.Type != scanner.TokenNumber || kind.Type != scanner.TokenKeyword {
				return nil, nil, fmt.Errorf("invalid xref entry at %d", off.Pos)
			}
			num := int(first + i)
			switch kind.Str {
			case "n":
				entries[num] = Entry{Kind: EntryInUse, Offset: off.Int, Gen: int(gen.Int)}
			case "f":
				entries[num] = Entry{Kind: EntryFree, Gen: int(gen.Int)}
			default:
				return nil, nil, fmt.Errorf("invalid xref entry type %q", kind.Str)
			}
		}
	}
	trailer, err := r.cfg.Parser.ParseDirect(s.Pos())
	if err != nil {
		return nil, nil, fmt.Errorf("trailer: %w", err)
	}
	dict, ok := trailer.(*raw.DictObj)
	if !ok {
		return nil, nil, errors.New("trailer is not a dictionary")
	}
	return entries, dict, nil
}

// readStream decodes a cross-reference stream (PDF 1.5+).
func (r *Resolver) readStream(ctx context.Context, offset int64) (map[int]Entry, *raw.DictObj, error) {
	_, obj, err := r.cfg.Parser.ParseIndirect(offset)
	if err != nil {
		return nil, nil, err
	}
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, nil, errors.New("xref offset does not point at a stream")
	}
	if typ, _ := stm.Dict.Name("Type"); typ != "XRef" {
		return nil, nil, fmt.Errorf("stream at %d is not /Type /XRef", offset)
	}
	body, err := r.cfg.Filters.DecodeStream(ctx, stm)
	if err != nil {
		return nil, nil, err
	}
	widths, err := intArray(stm.Dict, "W")
	if err != nil || len(widths) != 3 {
		return nil, nil, errors.New("xref stream /W must hold three integers")
	}
	rowLen := 0
	for _, w := range widths {
		if w < 0 || w > 8 {
			return nil, nil, fmt.Errorf("xref stream field width %d", w)
		}
		rowLen += w
	}
	if rowLen == 0 {
		return nil, nil, errors.New("xref stream has zero-width rows")
	}
	size, _ := stm.Dict.Int("Size")
	index, err := intArray(stm.Dict, "Index")
	if err != nil || len(index) == 0 {
		index = []int{0, int(size)}
	}
	if len(index)%2 != 0 {
		return nil, nil, errors.New("xref stream /Index has odd length")
	}

	entries := make(map[int]Entry)
	pos := 0
	for i := 0; i < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(body) {
				return entries, stm.Dict, nil
			}
			row := body[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if widths[0] > 0 {
				typ = field(row[:widths[0]])
			}
			f2 := field(row[widths[0] : widths[0]+widths[1]])
			f3 := field(row[widths[0]+widths[1]:])
			num := first + j
			switch typ {
			case 0:
				entries[num] = Entry{Kind: EntryFree, Gen: int(f3)}
			case 1:
				entries[num] = Entry{Kind: EntryInUse, Offset: f2, Gen: int(f3)}
			case 2:
				entries[num] = Entry{Kind: EntryCompressed, Stream: int(f2), Index: int(f3)}
			}
			// Other types are reserved and read as null references.
		}
	}
	return entries, stm.Dict, nil
}

func field(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func intArray(d *raw.DictObj, key string) ([]int, error) {
	v, ok := d.Get(key)
	if !ok {
		return nil, fmt.Errorf("/%s missing", key)
	}
	arr, ok := v.(*raw.ArrayObj)
	if !ok {
		return nil, fmt.Errorf("/%s is not an array", key)
	}
	out := make([]int, 0, arr.Len())
	for _, it := range arr.Items {
		n, ok := it.(raw.NumberObj)
		if !ok {
			return nil, fmt.Errorf("/%s holds a non-number", key)
		}
		out = append(out, int(n.Int()))
	}
	return out, nil
}
