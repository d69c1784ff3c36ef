package filters

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfscrub/ir/raw"
	"github.com/wudi/pdfscrub/security"
)

// ErrUnsupportedFilter is returned for filters this package does not decode
// (LZWDecode, JBIG2Decode, JPXDecode, ...).
var ErrUnsupportedFilter = errors.New("unsupported filter")

type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params *raw.DictObj) ([]byte, error)
}

type Pipeline struct {
	decoders map[string]Decoder
	limits   security.Limits
}

// NewPipeline constructs a pipeline with provided decoders and limits.
func NewPipeline(decoders []Decoder, limits security.Limits) *Pipeline {
	limits = limits.WithDefaults()
	p := &Pipeline{decoders: make(map[string]Decoder, len(decoders)), limits: limits}
	for _, d := range decoders {
		p.decoders[d.Name()] = d
	}
	return p
}

// NewDefaultPipeline registers every decoder this package ships.
func NewDefaultPipeline(limits security.Limits) *Pipeline {
	limits = limits.WithDefaults()
	return NewPipeline([]Decoder{
		NewFlateDecoder(limits.MaxDecompressedSize),
		NewASCIIHexDecoder(),
		NewASCII85Decoder(),
		NewRunLengthDecoder(),
	}, limits)
}

// Decode applies filterNames in order.
func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames []string, params []*raw.DictObj) ([]byte, error) {
	data := input
	for i, name := range filterNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dec, ok := p.decoders[abbreviations[name]]
		if !ok {
			dec, ok = p.decoders[name]
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFilter)
		}
		var param *raw.DictObj
		if i < len(params) {
			param = params[i]
		}
		out, err := dec.Decode(ctx, data, param)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, security.Exceeded("decoded size", int64(len(out)), p.limits.MaxDecompressedSize)
		}
		data = out
	}
	return data, nil
}

// DecodeStream decodes a stream using the filters named in its dictionary.
func (p *Pipeline) DecodeStream(ctx context.Context, s *raw.StreamObj) ([]byte, error) {
	names, params := ExtractFilters(s.Dict)
	return p.Decode(ctx, s.Data, names, params)
}

// Inline-image abbreviations are also accepted in stream dictionaries by
// lenient producers.
var abbreviations = map[string]string{
	"Fl":  "FlateDecode",
	"AHx": "ASCIIHexDecode",
	"A85": "ASCII85Decode",
	"RL":  "RunLengthDecode",
}

// ExtractFilters reads Filter and DecodeParms entries from a stream dictionary.
// params is index-aligned with names; missing entries are nil.
func ExtractFilters(dict *raw.DictObj) ([]string, []*raw.DictObj) {
	var names []string
	filterObj, ok := dict.Get("Filter")
	if !ok {
		return nil, nil
	}
	switch f := filterObj.(type) {
	case raw.NameObj:
		names = append(names, f.Value())
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := item.(raw.NameObj); ok {
				names = append(names, n.Value())
			}
		}
	}
	params := make([]*raw.DictObj, len(names))
	pObj, ok := dict.Get("DecodeParms")
	if !ok {
		pObj, ok = dict.Get("DP")
	}
	if ok {
		switch p := pObj.(type) {
		case *raw.DictObj:
			if len(params) > 0 {
				params[0] = p
			}
		case *raw.ArrayObj:
			for i, item := range p.Items {
				if d, ok := item.(*raw.DictObj); ok && i < len(params) {
					params[i] = d
				}
			}
		}
	}
	return names, params
}
