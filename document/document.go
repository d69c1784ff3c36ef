// Package document exposes a PDF as pages that own content streams, the
// view the redaction and rendering stages work on.
package document

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfscrub/filters"
	"github.com/wudi/pdfscrub/ir/raw"
	"github.com/wudi/pdfscrub/parser"
	"github.com/wudi/pdfscrub/security"
	"github.com/wudi/pdfscrub/writer"
)

var (
	ErrNoPages    = errors.New("document has no page tree")
	ErrPageRange  = errors.New("page index out of range")
	ErrNotAStream = errors.New("object is not a stream")
)

// Document is an ordered sequence of pages whose content streams can be read
// and replaced by id.
type Document interface {
	NumPages() int
	// PageContents returns the ids of the content streams of page i, in
	// drawing order. A stream shared by several pages appears for each.
	PageContents(i int) ([]raw.ObjectRef, error)
	// ReadStream returns the decoded bytes of stream id.
	ReadStream(id raw.ObjectRef) ([]byte, error)
	// WriteStream replaces the content of stream id with data.
	WriteStream(id raw.ObjectRef, data []byte) error
	WriteTo(w io.Writer) (int64, error)
}

type Options struct {
	Parser parser.Config
	Writer writer.Config
	Limits security.Limits
}

func DefaultOptions() Options {
	return Options{
		Parser: parser.DefaultConfig(),
		Limits: security.DefaultLimits(),
	}
}

// PDF implements Document over a fully loaded raw.Document.
type PDF struct {
	raw     *raw.Document
	pages   []*raw.DictObj
	filters *filters.Pipeline
	writer  *writer.Writer
}

// Open parses data into a PDF.
func Open(ctx context.Context, data []byte, opts Options) (*PDF, error) {
	if opts.Parser.Limits == (security.Limits{}) {
		opts.Parser.Limits = opts.Limits
	}
	doc, err := parser.NewDocumentParser(opts.Parser).Parse(ctx, data)
	if err != nil {
		return nil, err
	}
	return FromRaw(doc, opts)
}

// FromRaw wraps an already built raw.Document.
func FromRaw(doc *raw.Document, opts Options) (*PDF, error) {
	limits := opts.Limits.WithDefaults()
	pages, err := collectPages(doc, limits.MaxNestingDepth)
	if err != nil {
		return nil, err
	}
	return &PDF{
		raw:     doc,
		pages:   pages,
		filters: filters.NewDefaultPipeline(limits),
		writer:  writer.New(opts.Writer),
	}, nil
}

func (p *PDF) Raw() *raw.Document { return p.raw }
func (p *PDF) NumPages() int      { return len(p.pages) }

// Page returns the page dictionary at index i.
func (p *PDF) Page(i int) (*raw.DictObj, error) {
	if i < 0 || i >= len(p.pages) {
		return nil, fmt.Errorf("page %d of %d: %w", i, len(p.pages), ErrPageRange)
	}
	return p.pages[i], nil
}

func (p *PDF) PageContents(i int) ([]raw.ObjectRef, error) {
	page, err := p.Page(i)
	if err != nil {
		return nil, err
	}
	contents, ok := page.Get("Contents")
	if !ok {
		return nil, nil
	}
	// Contents is a stream reference, an array of them, or a reference to
	// such an array.
	if ref, isRef := contents.(raw.RefObj); isRef {
		if arr, isArr := p.raw.Resolve(ref).(*raw.ArrayObj); isArr {
			contents = arr
		}
	}
	var ids []raw.ObjectRef
	switch c := contents.(type) {
	case raw.RefObj:
		if _, ok := p.raw.Resolve(c).(*raw.StreamObj); ok {
			ids = append(ids, c.R)
		}
	case *raw.ArrayObj:
		for _, it := range c.Items {
			ref, ok := it.(raw.RefObj)
			if !ok {
				continue
			}
			if _, ok := p.raw.Resolve(ref).(*raw.StreamObj); ok {
				ids = append(ids, ref.R)
			}
		}
	}
	return ids, nil
}

func (p *PDF) stream(id raw.ObjectRef) (*raw.StreamObj, error) {
	obj, ok := p.raw.Get(id)
	if !ok {
		return nil, fmt.Errorf("object %s not found", id)
	}
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("object %s: %w", id, ErrNotAStream)
	}
	return stm, nil
}

func (p *PDF) ReadStream(id raw.ObjectRef) ([]byte, error) {
	stm, err := p.stream(id)
	if err != nil {
		return nil, err
	}
	data, err := p.filters.DecodeStream(context.Background(), stm)
	if err != nil {
		return nil, fmt.Errorf("stream %s: %w", id, err)
	}
	return data, nil
}

// WriteStream stores data Flate-compressed under id, replacing the previous
// filter chain.
func (p *PDF) WriteStream(id raw.ObjectRef, data []byte) error {
	stm, err := p.stream(id)
	if err != nil {
		return err
	}
	enc, err := filters.EncodeFlate(data)
	if err != nil {
		return fmt.Errorf("stream %s: %w", id, err)
	}
	dict := raw.Dict()
	for _, k := range stm.Dict.Keys() {
		dict.Set(k, stm.Dict.KV[k])
	}
	dict.Delete("Filter", "DecodeParms", "DL", "Length")
	dict.Set("Filter", raw.Name("FlateDecode"))
	p.raw.Objects[id] = raw.NewStream(dict, enc)
	return nil
}

func (p *PDF) WriteTo(w io.Writer) (int64, error) {
	return p.writer.Write(context.Background(), p.raw, w)
}

// collectPages walks the page tree depth-first in document order.
func collectPages(doc *raw.Document, maxDepth int) ([]*raw.DictObj, error) {
	cat, ok := doc.Catalog()
	if !ok {
		return nil, ErrNoPages
	}
	root, ok := cat.Get("Pages")
	if !ok {
		return nil, ErrNoPages
	}
	var pages []*raw.DictObj
	seen := make(map[*raw.DictObj]bool)
	var walk func(node raw.Object, depth int) error
	walk = func(node raw.Object, depth int) error {
		if depth > maxDepth {
			return security.Exceeded("page tree depth", int64(depth), int64(maxDepth))
		}
		dict, ok := doc.Resolve(node).(*raw.DictObj)
		if !ok || seen[dict] {
			return nil
		}
		seen[dict] = true
		typ, _ := dict.Name("Type")
		kids, hasKids := dict.Get("Kids")
		if typ == "Page" || (!hasKids && typ != "Pages") {
			pages = append(pages, dict)
			return nil
		}
		arr, ok := doc.Resolve(kids).(*raw.ArrayObj)
		if !ok {
			return nil
		}
		for _, kid := range arr.Items {
			if err := walk(kid, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root, 0); err != nil {
		return nil, err
	}
	return pages, nil
}
