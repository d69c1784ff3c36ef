package contentstream

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultEncoding is used when no label is configured.
const DefaultEncoding = "utf-8"

// DecodeError reports a run that cannot be decoded. It is local to the run:
// callers skip the run and continue.
type DecodeError struct {
	Offset int // byte offset inside the run, -1 when unknown
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode run"
	if e.Offset >= 0 {
		msg = fmt.Sprintf("decode run at byte %d", e.Offset)
	}
	if e.Err != nil {
		return msg + ": " + e.Reason + ": " + e.Err.Error()
	}
	return msg + ": " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

var showTextArray = []byte("TJ")

// Decoder turns the raw bytes of a text run into the text it shows.
type Decoder struct {
	label string
	enc   encoding.Encoding // nil for UTF-8
}

// NewDecoder returns a decoder for a WHATWG encoding label such as "utf-8"
// or "windows-1252". An empty label selects UTF-8.
func NewDecoder(label string) (*Decoder, error) {
	if label == "" {
		label = DefaultEncoding
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("text encoding %q: %w", label, err)
	}
	name, _ := htmlindex.Name(enc)
	if name == "utf-8" {
		enc = nil
	}
	return &Decoder{label: strings.ToLower(label), enc: enc}, nil
}

func (d *Decoder) Label() string { return d.label }

// DecodeRun drops every TJ operator token, decodes the bytes as text and
// concatenates the parenthesized segments, resolving \nnn octal escapes and
// stripping other backslashes.
func (d *Decoder) DecodeRun(run []byte) (string, error) {
	stripped := bytes.ReplaceAll(run, showTextArray, nil)
	text, err := d.text(stripped)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for seg := range Segments([]byte(text), OpenStr, CloseStr) {
		s := string(seg)
		switch {
		case strings.HasPrefix(s, `\`) && utf8.RuneCountInString(s) == 4:
			r, err := octal(s[1:])
			if err != nil {
				return "", err
			}
			out.WriteRune(r)
		case strings.HasPrefix(s, `\`):
			out.WriteString(strings.ReplaceAll(s, `\`, ""))
		default:
			out.WriteString(s)
		}
	}
	return out.String(), nil
}

func (d *Decoder) text(b []byte) (string, error) {
	if d.enc == nil {
		if !utf8.Valid(b) {
			return "", &DecodeError{Offset: firstInvalid(b), Reason: "invalid utf-8"}
		}
		return string(b), nil
	}
	out, err := d.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", &DecodeError{Offset: -1, Reason: "invalid " + d.label, Err: err}
	}
	// Single-byte decoders substitute U+FFFD for unmapped bytes instead of
	// failing; treat that as a decode failure unless the input spelled it.
	if bytes.ContainsRune(out, utf8.RuneError) && !bytes.Contains(b, []byte("\xef\xbf\xbd")) {
		return "", &DecodeError{Offset: -1, Reason: "unmapped byte in " + d.label}
	}
	return string(out), nil
}

var errNotOctal = errors.New("not an octal digit")

func octal(digits string) (rune, error) {
	var v rune
	for i, c := range digits {
		if c < '0' || c > '7' {
			return 0, &DecodeError{Offset: -1, Reason: fmt.Sprintf("escape \\%s position %d", digits, i), Err: errNotOctal}
		}
		v = v<<3 | (c - '0')
	}
	return v, nil
}

func firstInvalid(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}
