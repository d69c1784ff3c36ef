package filters

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/klauspost/compress/flate"

	"github.com/wudi/pdfscrub/ir/raw"
	"github.com/wudi/pdfscrub/security"
)

func TestFlateRoundTrip(t *testing.T) {
	enc, err := EncodeFlate([]byte("BT (X) Tj ET"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := NewFlateDecoder(1<<20).Decode(context.Background(), enc, nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "BT (X) Tj ET" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeRawDeflate(t *testing.T) {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.BestSpeed)
	w.Write([]byte("hello world"))
	w.Close()

	out, err := NewFlateDecoder(1<<20).Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeWithPredictor(t *testing.T) {
	// PNG predictor rows: Sub then Up.
	comp, err := EncodeFlate([]byte{1, 10, 12, 20, 2, 1, 1, 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	params := raw.Dict()
	params.Set("Predictor", raw.Int(12))
	params.Set("Colors", raw.Int(1))
	params.Set("BitsPerComponent", raw.Int(8))
	params.Set("Columns", raw.Int(3))

	out, err := NewFlateDecoder(1<<20).Decode(context.Background(), comp, params)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	want := []byte{10, 22, 42, 11, 23, 43}
	if !bytes.Equal(out, want) {
		t.Fatalf("predictor output mismatch: got %v want %v", out, want)
	}
}

func TestFlateSizeLimit(t *testing.T) {
	comp, _ := EncodeFlate(bytes.Repeat([]byte("a"), 4096))
	if _, err := NewFlateDecoder(100).Decode(context.Background(), comp, nil); err == nil {
		t.Fatalf("expected size limit error")
	}
}

func TestASCIIDecoders(t *testing.T) {
	out, err := NewASCIIHexDecoder().Decode(context.Background(), []byte("48 65 6C6C 6F7>"), nil)
	if err != nil || string(out) != "Hellop" {
		t.Fatalf("hex: %q %v", out, err)
	}
	out, err = NewASCII85Decoder().Decode(context.Background(), []byte("<~87cURDZ~>"), nil)
	if err != nil || string(out) != "Hello" {
		t.Fatalf("a85: %q %v", out, err)
	}
	out, err = NewRunLengthDecoder().Decode(context.Background(), []byte{2, 'a', 'b', 'c', 254, 'z', 128}, nil)
	if err != nil || string(out) != "abczzz" {
		t.Fatalf("runlength: %q %v", out, err)
	}
}

func TestPipelineChain(t *testing.T) {
	comp, _ := EncodeFlate([]byte("q Q"))
	var hexed bytes.Buffer
	for _, b := range comp {
		hexed.WriteString(string("0123456789ABCDEF"[b>>4]) + string("0123456789ABCDEF"[b&0xF]))
	}
	hexed.WriteByte('>')

	s := raw.NewStream(nil, hexed.Bytes())
	s.Dict.Set("Filter", raw.NewArray(raw.Name("ASCIIHexDecode"), raw.Name("FlateDecode")))
	out, err := NewDefaultPipeline(security.DefaultLimits()).DecodeStream(context.Background(), s)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out) != "q Q" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestPipelineUnsupported(t *testing.T) {
	p := NewDefaultPipeline(security.DefaultLimits())
	_, err := p.Decode(context.Background(), []byte("x"), []string{"LZWDecode"}, nil)
	if !errors.Is(err, ErrUnsupportedFilter) {
		t.Fatalf("expected ErrUnsupportedFilter, got %v", err)
	}
}

func TestExtractFiltersAlignsParams(t *testing.T) {
	d := raw.Dict()
	d.Set("Filter", raw.NewArray(raw.Name("ASCII85Decode"), raw.Name("FlateDecode")))
	pred := raw.Dict()
	pred.Set("Predictor", raw.Int(12))
	d.Set("DecodeParms", raw.NewArray(raw.NullObj{}, pred))
	names, params := ExtractFilters(d)
	if len(names) != 2 || len(params) != 2 {
		t.Fatalf("unexpected lengths %d %d", len(names), len(params))
	}
	if params[0] != nil || params[1] != pred {
		t.Fatalf("params not aligned: %v", params)
	}
}
