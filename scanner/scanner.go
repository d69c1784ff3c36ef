package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/wudi/pdfscrub/recovery"
	"github.com/wudi/pdfscrub/security"
)

type TokenType int

const (
	TokenDict     TokenType = iota // '<<'
	TokenDictEnd                   // '>>'
	TokenArray                     // '['
	TokenArrayEnd                  // ']'
	TokenName                      // '/Name'
	TokenString                    // literal or hex string
	TokenNumber                    // numeric value
	TokenBoolean                   // true/false
	TokenNull                      // null
	TokenRef                       // indirect ref '5 0 R'
	TokenKeyword                   // obj, endobj, stream, xref, trailer, ...
)

func (t TokenType) String() string {
	switch t {
	case TokenDict:
		return "<<"
	case TokenDictEnd:
		return ">>"
	case TokenArray:
		return "["
	case TokenArrayEnd:
		return "]"
	case TokenName:
		return "name"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenBoolean:
		return "boolean"
	case TokenNull:
		return "null"
	case TokenRef:
		return "ref"
	default:
		return "keyword"
	}
}

// Token is a single lexical unit. Only the fields relevant to Type are set:
// Str for names and keywords, Bytes for strings, Int/Float/IsInt for numbers,
// Bool for booleans, Int/Gen for references.
type Token struct {
	Type  TokenType
	Str   string
	Bytes []byte
	Hex   bool
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Gen   int
	Pos   int64
}

type Config struct {
	Limits   security.Limits
	Recovery recovery.Strategy
}

// Scanner tokenizes a PDF held entirely in memory.
type Scanner struct {
	data  []byte
	pos   int64
	cfg   Config
	depth int
}

func New(data []byte, cfg Config) *Scanner {
	cfg.Limits = cfg.Limits.WithDefaults()
	return &Scanner{data: data, cfg: cfg}
}

func (s *Scanner) Pos() int64   { return s.pos }
func (s *Scanner) Len() int64   { return int64(len(s.data)) }
func (s *Scanner) Data() []byte { return s.data }

// SeekTo moves the read position to offset and resets the nesting depth.
func (s *Scanner) SeekTo(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return fmt.Errorf("seek %d out of range [0,%d]", offset, len(s.data))
	}
	s.pos = offset
	s.depth = 0
	return nil
}

// Next returns the next token or io.EOF.
func (s *Scanner) Next() (Token, error) {
	s.skipWSAndComments()
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return s.nest(Token{Type: TokenDict, Pos: start})
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return s.unnest(Token{Type: TokenDictEnd, Pos: start})
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case '[':
		s.pos++
		return s.nest(Token{Type: TokenArray, Pos: start})
	case ']':
		s.pos++
		return s.unnest(Token{Type: TokenArrayEnd, Pos: start})
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isNumberStart(c) {
		return s.scanNumberOrRef()
	}
	s.pos++
	for s.pos < int64(len(s.data)) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	if s.pos == start+1 && isDelimiter(c) {
		return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Str: kw, Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Str: kw, Pos: start}, nil
	}
	return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
}

// ReadStream consumes the data of a stream whose 'stream' keyword was the
// previous token. length < 0 means the length is unknown and the data ends at
// the next endstream marker. A declared length that does not land on
// endstream is corrected by searching forward when the recovery strategy
// allows it.
func (s *Scanner) ReadStream(length int64) ([]byte, error) {
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
		s.pos++
	}
	dataStart := s.pos
	if length >= 0 {
		if length > s.cfg.Limits.MaxStreamLength {
			return nil, security.Exceeded("stream length", length, s.cfg.Limits.MaxStreamLength)
		}
		end := dataStart + length
		if end <= int64(len(s.data)) && endstreamAt(s.data, end) {
			s.pos = end
			s.skipEOL()
			s.pos += int64(len("endstream"))
			return s.data[dataStart:end], nil
		}
		if err := s.recover(fmt.Errorf("declared /Length %d does not reach endstream", length), "stream"); err != nil {
			return nil, err
		}
	}
	idx := bytes.Index(s.data[dataStart:], []byte("endstream"))
	if idx < 0 {
		if err := s.recover(errors.New("endstream not found"), "stream"); err != nil {
			return nil, err
		}
		s.pos = int64(len(s.data))
		return s.data[dataStart:], nil
	}
	end := dataStart + int64(idx)
	s.pos = end + int64(len("endstream"))
	// The EOL before endstream is not part of the data.
	if end > dataStart && s.data[end-1] == '\n' {
		end--
	}
	if end > dataStart && s.data[end-1] == '\r' {
		end--
	}
	if end-dataStart > s.cfg.Limits.MaxStreamLength {
		return nil, security.Exceeded("stream length", end-dataStart, s.cfg.Limits.MaxStreamLength)
	}
	return s.data[dataStart:end], nil
}

func endstreamAt(data []byte, at int64) bool {
	for at < int64(len(data)) && isWhitespace(data[at]) {
		at++
	}
	return bytes.HasPrefix(data[at:], []byte("endstream"))
}

func (s *Scanner) skipEOL() {
	for s.pos < int64(len(s.data)) && isWhitespace(s.data[s.pos]) {
		s.pos++
	}
}

func (s *Scanner) skipWSAndComments() {
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && !isEOL(s.data[s.pos]) {
				s.pos++
			}
			continue
		}
		return
	}
}

func (s *Scanner) peek(n int64) byte {
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *Scanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // '/'
	var out []byte
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) && isHex(s.data[s.pos+1]) && isHex(s.data[s.pos+2]) {
			out = append(out, fromHex(s.data[s.pos+1])<<4|fromHex(s.data[s.pos+2]))
			s.pos += 3
			continue
		}
		out = append(out, c)
		s.pos++
	}
	return Token{Type: TokenName, Str: string(out), Pos: start}, nil
}

func (s *Scanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // '('
	var buf []byte
	depth := 1
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= int64(len(s.data)) {
				continue
			}
			esc := s.data[s.pos]
			s.pos++
			switch {
			case esc == '\r':
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case esc == '\n':
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				for k := 0; k < 2 && s.pos < int64(len(s.data)); k++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 | int(d-'0')
					s.pos++
				}
				buf = append(buf, byte(val))
			default:
				buf = append(buf, translateEscape(esc))
			}
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Bytes: buf, Pos: start}, nil
			}
		}
		buf = append(buf, c)
		if int64(len(buf)) > s.cfg.Limits.MaxStringLength {
			return Token{}, security.Exceeded("string length", int64(len(buf)), s.cfg.Limits.MaxStringLength)
		}
	}
	if err := s.recover(errors.New("unterminated literal string"), "literal"); err != nil {
		return Token{}, err
	}
	return Token{Type: TokenString, Bytes: buf, Pos: start}, nil
}

func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // '<'
	var nibbles []byte
	closed := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			closed = true
			break
		}
		if isHex(c) {
			nibbles = append(nibbles, fromHex(c))
		}
	}
	if !closed {
		if err := s.recover(errors.New("unterminated hex string"), "hex"); err != nil {
			return Token{}, err
		}
	}
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, 0)
	}
	if int64(len(nibbles)/2) > s.cfg.Limits.MaxStringLength {
		return Token{}, security.Exceeded("string length", int64(len(nibbles)/2), s.cfg.Limits.MaxStringLength)
	}
	out := make([]byte, len(nibbles)/2)
	for i := range out {
		out[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return Token{Type: TokenString, Bytes: out, Hex: true, Pos: start}, nil
}

// scanNumberOrRef reads a number and, when it is followed by a second
// integer and 'R', folds the three tokens into a reference.
func (s *Scanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	first := s.scanNumberString()
	if first == "" {
		s.pos++
		return Token{Type: TokenKeyword, Str: string(s.data[start]), Pos: start}, nil
	}
	tok := numberToken(first, start)
	if !tok.IsInt || tok.Int < 0 {
		return tok, nil
	}
	save := s.pos
	s.skipWSAndComments()
	second := s.scanNumberString()
	if second != "" {
		gen := numberToken(second, 0)
		s.skipWSAndComments()
		if gen.IsInt && gen.Int >= 0 && s.pos < int64(len(s.data)) && s.data[s.pos] == 'R' &&
			(s.pos+1 >= int64(len(s.data)) || isDelimiter(s.data[s.pos+1])) {
			s.pos++
			return Token{Type: TokenRef, Int: tok.Int, Gen: int(gen.Int), IsInt: true, Pos: start}, nil
		}
	}
	s.pos = save
	return tok, nil
}

func numberToken(lit string, pos int64) Token {
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: i, Float: float64(i), IsInt: true, Str: lit, Pos: pos}
	}
	// Malformed reals such as "--1" or "1.2.3" read as zero, like most viewers.
	f, _ := strconv.ParseFloat(lit, 64)
	return Token{Type: TokenNumber, Float: f, Str: lit, Pos: pos}
}

func (s *Scanner) scanNumberString() string {
	start := s.pos
	seenDigit := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if c >= '0' && c <= '9' {
			seenDigit = true
		} else if c != '+' && c != '-' && c != '.' {
			break
		}
		s.pos++
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return string(s.data[start:s.pos])
}

func (s *Scanner) nest(tok Token) (Token, error) {
	s.depth++
	if s.depth > s.cfg.Limits.MaxNestingDepth {
		return Token{}, security.Exceeded("nesting depth", int64(s.depth), int64(s.cfg.Limits.MaxNestingDepth))
	}
	return tok, nil
}

func (s *Scanner) unnest(tok Token) (Token, error) {
	if s.depth > 0 {
		s.depth--
	}
	return tok, nil
}

// recover consults the recovery strategy. A nil return means the caller may
// continue with what it has.
func (s *Scanner) recover(err error, component string) error {
	if s.cfg.Recovery == nil {
		return err
	}
	loc := recovery.Location{ByteOffset: s.pos, Component: "scanner:" + component}
	switch s.cfg.Recovery.OnError(err, loc) {
	case recovery.ActionFix, recovery.ActionSkip:
		return nil
	default:
		return fmt.Errorf("%s at offset %d: %w", component, s.pos, err)
	}
}

func isNumberStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }
func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}
func isEOL(c byte) bool { return c == '\r' || c == '\n' }
func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}

// IsWhitespace reports whether c is PDF whitespace.
func IsWhitespace(c byte) bool { return isWhitespace(c) }

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}
