package parser

import (
	"errors"
	"fmt"

	"github.com/wudi/pdfscrub/ir/raw"
	"github.com/wudi/pdfscrub/recovery"
	"github.com/wudi/pdfscrub/scanner"
	"github.com/wudi/pdfscrub/security"
	"github.com/wudi/pdfscrub/xref"
)

// objectParser turns scanner tokens into raw objects. It implements
// xref.ObjectParser so the resolver can read trailers and xref streams.
type objectParser struct {
	data     []byte
	limits   security.Limits
	recovery recovery.Strategy
	// table is set once the xref is known; it resolves indirect /Length.
	table *xref.Table
}

func newObjectParser(data []byte, limits security.Limits, rec recovery.Strategy) *objectParser {
	return &objectParser{data: data, limits: limits, recovery: rec}
}

// NewObjectParser returns the object reader an xref.Resolver needs for data.
func NewObjectParser(data []byte, cfg Config) xref.ObjectParser {
	return newObjectParser(data, cfg.Limits.WithDefaults(), cfg.Recovery)
}

func (p *objectParser) newScanner() *scanner.Scanner {
	return scanner.New(p.data, scanner.Config{Limits: p.limits, Recovery: p.recovery})
}

func (p *objectParser) ParseDirect(offset int64) (raw.Object, error) {
	s := p.newScanner()
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	return parseObject(s)
}

func (p *objectParser) ParseIndirect(offset int64) (raw.ObjectRef, raw.Object, error) {
	s := p.newScanner()
	if err := s.SeekTo(offset); err != nil {
		return raw.ObjectRef{}, nil, err
	}
	num, err1 := s.Next()
	gen, err2 := s.Next()
	kw, err3 := s.Next()
	if err := errors.Join(err1, err2, err3); err != nil {
		return raw.ObjectRef{}, nil, fmt.Errorf("object header at %d: %w", offset, err)
	}
	if num.Type != scanner.TokenNumber || !num.IsInt || gen.Type != scanner.TokenNumber || !gen.IsInt || kw.Str != "obj" {
		return raw.ObjectRef{}, nil, fmt.Errorf("no object header at offset %d", offset)
	}
	ref := raw.ObjectRef{Num: int(num.Int), Gen: int(gen.Int)}

	obj, err := parseObject(s)
	if err != nil {
		return ref, nil, fmt.Errorf("object %s: %w", ref, err)
	}
	tok, err := s.Next()
	if err != nil || tok.Type != scanner.TokenKeyword || tok.Str != "stream" {
		// endobj is optional in practice; anything else belongs to the next object.
		return ref, obj, nil
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return ref, nil, fmt.Errorf("object %s: stream keyword after non-dictionary", ref)
	}
	data, err := s.ReadStream(p.streamLength(dict, ref))
	if err != nil {
		return ref, nil, fmt.Errorf("object %s: %w", ref, err)
	}
	return ref, raw.NewStream(dict, data), nil
}

// streamLength returns the declared /Length, following one level of
// indirection through the xref table, or -1 when it is unknown.
func (p *objectParser) streamLength(dict *raw.DictObj, self raw.ObjectRef) int64 {
	v, ok := dict.Get("Length")
	if !ok {
		return -1
	}
	switch l := v.(type) {
	case raw.NumberObj:
		return l.Int()
	case raw.RefObj:
		if p.table == nil || l.R == self {
			return -1
		}
		e, ok := p.table.Lookup(l.R.Num)
		if !ok || e.Kind != xref.EntryInUse {
			return -1
		}
		s := p.newScanner()
		if err := s.SeekTo(e.Offset); err != nil {
			return -1
		}
		for i := 0; i < 3; i++ {
			if _, err := s.Next(); err != nil {
				return -1
			}
		}
		tok, err := s.Next()
		if err != nil || tok.Type != scanner.TokenNumber || !tok.IsInt {
			return -1
		}
		return tok.Int
	}
	return -1
}

// parseObject reads one direct object from s.
func parseObject(s *scanner.Scanner) (raw.Object, error) {
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	return objectFromToken(s, tok)
}

func objectFromToken(s *scanner.Scanner, tok scanner.Token) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenDict:
		return parseDict(s)
	case scanner.TokenArray:
		return parseArray(s)
	case scanner.TokenName:
		return raw.Name(tok.Str), nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.Int(tok.Int), nil
		}
		return raw.Float(tok.Float), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenRef:
		return raw.Ref(int(tok.Int), tok.Gen), nil
	}
	return nil, fmt.Errorf("unexpected token %s %q at offset %d", tok.Type, tok.Str, tok.Pos)
}

func parseDict(s *scanner.Scanner) (*raw.DictObj, error) {
	d := raw.Dict()
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated dictionary: %w", err)
		}
		if tok.Type == scanner.TokenDictEnd {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("dictionary key at offset %d is %s, not a name", tok.Pos, tok.Type)
		}
		valTok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated dictionary: %w", err)
		}
		if valTok.Type == scanner.TokenDictEnd {
			// "/Key >>" with the value missing; treat as null, which removes it.
			return d, nil
		}
		val, err := objectFromToken(s, valTok)
		if err != nil {
			return nil, err
		}
		if _, null := val.(raw.NullObj); null {
			continue
		}
		d.Set(tok.Str, val)
	}
}

func parseArray(s *scanner.Scanner) (*raw.ArrayObj, error) {
	a := raw.NewArray()
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated array: %w", err)
		}
		if tok.Type == scanner.TokenArrayEnd {
			return a, nil
		}
		val, err := objectFromToken(s, tok)
		if err != nil {
			return nil, err
		}
		a.Append(val)
	}
}
