package mbox

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

// charsetDecoder converts text to UTF-8: the declared charset first, then
// UTF-8 validity, then each configured fallback, and finally a lossy
// replacement that is reported as an encoding error.
type charsetDecoder struct {
	fallbacks []string
}

func newCharsetDecoder(fallbacks []string) *charsetDecoder {
	return &charsetDecoder{fallbacks: fallbacks}
}

func (c *charsetDecoder) decode(label string, b []byte, offset int64) (string, []domain.Warning) {
	label = strings.ToLower(strings.Trim(strings.TrimSpace(label), `"`))

	if isUTF8Label(label) && utf8.Valid(b) {
		return string(b), nil
	}

	var warnings []domain.Warning
	if label != "" && !isUTF8Label(label) {
		if enc, _ := charset.Lookup(label); enc != nil {
			if s, ok := decodeWith(enc, b); ok {
				return s, nil
			}
		} else {
			warnings = append(warnings, domain.Warning{
				Kind:    domain.WarningCharsetFallback,
				Offset:  offset,
				Message: fmt.Sprintf("unknown charset %q", label),
			})
		}
	}

	var tried []string
	if label != "" {
		tried = append(tried, label)
	}
	if utf8.Valid(b) {
		return string(b), warnings
	}
	if !slices.Contains(tried, "utf-8") {
		tried = append(tried, "utf-8")
	}

	for _, name := range c.fallbacks {
		enc, canonical := charset.Lookup(name)
		if enc == nil || slices.Contains(tried, canonical) {
			continue
		}
		tried = append(tried, canonical)
		if s, ok := decodeWith(enc, b); ok {
			warnings = append(warnings, domain.Warning{
				Kind:    domain.WarningCharsetFallback,
				Offset:  offset,
				Message: fmt.Sprintf("declared charset %q failed, decoded as %s", label, canonical),
			})
			return s, warnings
		}
	}

	encErr := &domain.EncodingError{Offset: offset, Charset: label, Tried: tried}
	warnings = append(warnings, domain.WarningFromError(encErr))
	return strings.ToValidUTF8(string(b), "\uFFFD"), warnings
}

func decodeWith(enc encoding.Encoding, b []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(out) || bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

func isUTF8Label(label string) bool {
	switch label {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return true
	default:
		return false
	}
}

// newWordDecoder returns an RFC 2047 decoder that understands every
// charset known to the HTML encoding registry.
func newWordDecoder() *mime.WordDecoder {
	return &mime.WordDecoder{
		CharsetReader: func(label string, input io.Reader) (io.Reader, error) {
			return charset.NewReaderLabel(label, input)
		},
	}
}

// decodeHeader decodes RFC 2047 encoded words, returning the original
// value if decoding fails.
func decodeHeader(dec *mime.WordDecoder, value string) string {
	if value == "" {
		return ""
	}
	decoded, err := dec.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
