package xref

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/pdfscrub/ir/raw"
	"github.com/wudi/pdfscrub/recovery"
	"github.com/wudi/pdfscrub/scanner"
)

// ErrRepairFailed is returned when a full-file scan finds no objects.
var ErrRepairFailed = errors.New("repair failed: no objects found")

// Repair scans the entire file to reconstruct the xref table.
// It looks for "<num> <gen> obj" patterns and "trailer" dictionaries; later
// definitions of the same object win, as with incremental updates.
func (r *Resolver) Repair(ctx context.Context, data []byte) (*Table, error) {
	if r.cfg.Parser == nil {
		return nil, ErrNoParser
	}
	s := scanner.New(data, scanner.Config{Limits: r.cfg.Limits, Recovery: recovery.NewLenientStrategy(nil)})
	entries := make(map[int]Entry)
	var lastTrailer *raw.DictObj

	for i := 0; ; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tok, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Skip invalid tokens during repair scan
			continue
		}

		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt:
			tokGen, err := s.Next()
			if err != nil {
				continue
			}
			if tokGen.Type != scanner.TokenNumber || !tokGen.IsInt {
				continue
			}
			tokObj, err := s.Next()
			if err == nil && tokObj.Type == scanner.TokenKeyword && tokObj.Str == "obj" {
				entries[int(tok.Int)] = Entry{Kind: EntryInUse, Offset: tok.Pos, Gen: int(tokGen.Int)}
				continue
			}
			// "999 1 0 obj": the generation token may start the real header.
			if err := s.SeekTo(tokGen.Pos); err != nil {
				return nil, err
			}
		case tok.Type == scanner.TokenKeyword && tok.Str == "stream":
			// Binary payloads would otherwise be tokenized.
			_, _ = s.ReadStream(-1)
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			if obj, err := r.cfg.Parser.ParseDirect(s.Pos()); err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					lastTrailer = dict
				}
			}
		}
	}

	if len(entries) == 0 {
		return nil, ErrRepairFailed
	}
	t := &Table{entries: entries, repaired: true, sections: 1}
	t.trailer = r.rebuildTrailer(entries, lastTrailer)
	if _, ok := t.trailer.Get("Root"); !ok {
		return nil, errors.New("repair failed: no document catalog")
	}
	return t, nil
}

// rebuildTrailer fills in /Root and /Size when the trailer dictionary is
// missing or damaged. Files that only had xref streams carry the trailer keys
// in the stream dictionary, so those are tried before hunting for a catalog.
func (r *Resolver) rebuildTrailer(entries map[int]Entry, found *raw.DictObj) *raw.DictObj {
	trailer := found
	if trailer == nil {
		trailer = raw.Dict()
	}
	maxNum := 0
	for num := range entries {
		if num > maxNum {
			maxNum = num
		}
	}
	trailer.Set("Size", raw.Int(int64(maxNum+1)))
	if _, ok := trailer.Get("Root"); ok {
		return trailer
	}
	var catalog raw.ObjectRef
	for num, e := range entries {
		ref, obj, err := r.cfg.Parser.ParseIndirect(e.Offset)
		if err != nil || ref.Num != num {
			continue
		}
		var dict *raw.DictObj
		switch o := obj.(type) {
		case *raw.DictObj:
			dict = o
		case *raw.StreamObj:
			dict = o.Dict
		}
		if typ, _ := dict.Name("Type"); typ == "XRef" {
			inheritTrailer(trailer, dict)
			if _, ok := trailer.Get("Root"); ok {
				return trailer
			}
		} else if typ == "Catalog" && (catalog.Num == 0 || num > catalog.Num) {
			catalog = ref
		}
	}
	if catalog.Num != 0 {
		trailer.Set("Root", raw.RefObj{R: catalog})
	}
	return trailer
}
