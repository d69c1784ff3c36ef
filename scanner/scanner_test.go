package scanner

import (
	"errors"
	"io"
	"testing"

	"github.com/wudi/pdfscrub/recovery"
	"github.com/wudi/pdfscrub/security"
)

func newScanner(t *testing.T, data string, cfg Config) *Scanner {
	t.Helper()
	return New([]byte(data), cfg)
}

func nextToken(t *testing.T, s *Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tok
}

func TestScanner_BasicTokens(t *testing.T) {
	s := newScanner(t, "%PDF-1.7\n1 0 obj\n<< /Name /Value /Nums [1 2 3] /Flag true /Null null /Ref 12 0 R >>\nendobj", Config{})

	tok := nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 1 {
		t.Fatalf("expected first token number 1, got %+v", tok)
	}
	tok = nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 0 {
		t.Fatalf("expected generation number 0, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "obj" {
		t.Fatalf("expected obj keyword, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenDict {
		t.Fatalf("expected dict start, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Name" {
		t.Fatalf("expected Name key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Value" {
		t.Fatalf("expected Name value, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Nums" {
		t.Fatalf("expected Nums key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenArray {
		t.Fatalf("expected array start, got %+v", tok)
	}
	for i := int64(1); i <= 3; i++ {
		tok = nextToken(t, s)
		if tok.Type != TokenNumber || !tok.IsInt || tok.Int != i {
			t.Fatalf("expected array number %d, got %+v", i, tok)
		}
	}
	if tok = nextToken(t, s); tok.Type != TokenArrayEnd {
		t.Fatalf("expected array close, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Flag" {
		t.Fatalf("expected Flag key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenBoolean || !tok.Bool {
		t.Fatalf("expected true boolean, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Null" {
		t.Fatalf("expected Null key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenNull {
		t.Fatalf("expected null value, got %+v", tok)
	}
	nextToken(t, s) // /Ref
	if tok = nextToken(t, s); tok.Type != TokenRef || tok.Int != 12 || tok.Gen != 0 {
		t.Fatalf("expected ref 12 0 R, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenDictEnd {
		t.Fatalf("expected dict end, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "endobj" {
		t.Fatalf("expected endobj, got %+v", tok)
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestScanner_Strings(t *testing.T) {
	tests := []struct {
		in   string
		want string
		hex  bool
	}{
		{`(Hello)`, "Hello", false},
		{`(a(b)c)`, "a(b)c", false},
		{`(\101\102)`, "AB", false},
		{`(line\nbreak)`, "line\nbreak", false},
		{`(\(esc\))`, "(esc)", false},
		{"(cont\\\ninued)", "continued", false},
		{`<48656C6C6F>`, "Hello", true},
		{`<4 8 6>`, "H`", true},
	}
	for _, tt := range tests {
		s := newScanner(t, tt.in, Config{})
		tok := nextToken(t, s)
		if tok.Type != TokenString || string(tok.Bytes) != tt.want || tok.Hex != tt.hex {
			t.Fatalf("%s: got %+v (%q)", tt.in, tok, tok.Bytes)
		}
	}
}

func TestScanner_NameHexEscape(t *testing.T) {
	s := newScanner(t, "/A#20B /C#2", Config{})
	if tok := nextToken(t, s); tok.Str != "A B" {
		t.Fatalf("expected decoded name, got %q", tok.Str)
	}
	if tok := nextToken(t, s); tok.Str != "C#2" {
		t.Fatalf("expected literal # for short escape, got %q", tok.Str)
	}
}

func TestScanner_NumbersNotRefs(t *testing.T) {
	s := newScanner(t, "1 2 3.5 -4 R", Config{})
	want := []float64{1, 2, 3.5, -4}
	for _, w := range want {
		tok := nextToken(t, s)
		if tok.Type != TokenNumber || tok.Float != w {
			t.Fatalf("expected %v, got %+v", w, tok)
		}
	}
	if tok := nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "R" {
		t.Fatalf("expected stray R keyword, got %+v", tok)
	}
}

func TestScanner_ReadStreamDeclaredLength(t *testing.T) {
	s := newScanner(t, "stream\r\nABCDE\nendstream endobj", Config{})
	if tok := nextToken(t, s); tok.Str != "stream" {
		t.Fatalf("expected stream keyword, got %+v", tok)
	}
	data, err := s.ReadStream(5)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if string(data) != "ABCDE" {
		t.Fatalf("unexpected stream data %q", data)
	}
	if tok := nextToken(t, s); tok.Str != "endobj" {
		t.Fatalf("expected endobj after stream, got %+v", tok)
	}
}

func TestScanner_ReadStreamBadLength(t *testing.T) {
	input := "stream\nABCDEFGH\nendstream"

	s := newScanner(t, input, Config{})
	nextToken(t, s)
	if _, err := s.ReadStream(3); err == nil {
		t.Fatalf("expected error without recovery strategy")
	}

	s = newScanner(t, input, Config{Recovery: recovery.NewLenientStrategy(nil)})
	nextToken(t, s)
	data, err := s.ReadStream(3)
	if err != nil {
		t.Fatalf("lenient read: %v", err)
	}
	if string(data) != "ABCDEFGH" {
		t.Fatalf("expected endstream search to recover full data, got %q", data)
	}
}

func TestScanner_NestingLimit(t *testing.T) {
	s := newScanner(t, "[[[[", Config{Limits: security.Limits{MaxNestingDepth: 3}})
	var err error
	for i := 0; i < 4 && err == nil; i++ {
		_, err = s.Next()
	}
	if !errors.Is(err, security.ErrLimitExceeded) {
		t.Fatalf("expected limit error, got %v", err)
	}
}

func TestScanner_UnterminatedString(t *testing.T) {
	s := newScanner(t, "(never closed", Config{})
	if _, err := s.Next(); err == nil {
		t.Fatalf("expected error for unterminated string")
	}
	s = newScanner(t, "(never closed", Config{Recovery: recovery.NewLenientStrategy(nil)})
	tok := nextToken(t, s)
	if string(tok.Bytes) != "never closed" {
		t.Fatalf("expected partial string, got %q", tok.Bytes)
	}
}

func TestScanner_SeekTo(t *testing.T) {
	s := newScanner(t, "1 0 obj 2 0 obj", Config{})
	if err := s.SeekTo(8); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if tok := nextToken(t, s); tok.Int != 2 {
		t.Fatalf("expected 2 after seek, got %+v", tok)
	}
	if err := s.SeekTo(100); err == nil {
		t.Fatalf("expected out of range seek to fail")
	}
}
