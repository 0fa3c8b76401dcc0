package mbox

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"strings"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

// maxPartDepth bounds multipart nesting.
const maxPartDepth = 16

type headerGetter interface {
	Get(key string) string
}

// bodyDecoder extracts the readable text of one message. It prefers
// text/plain parts and falls back to HTML rendered as text.
type bodyDecoder struct {
	charsets *charsetDecoder
	offset   int64
	plain    []string
	html     []string
	warnings []domain.Warning
}

func (d *bodyDecoder) text() string {
	if len(d.plain) > 0 {
		return strings.TrimSpace(strings.Join(d.plain, "\n"))
	}
	if len(d.html) > 0 {
		return htmlToText(strings.Join(d.html, "\n"))
	}
	return ""
}

func (d *bodyDecoder) warn(kind domain.WarningKind, format string, args ...any) {
	d.warnings = append(d.warnings, domain.Warning{
		Kind:    kind,
		Offset:  d.offset,
		Message: fmt.Sprintf(format, args...),
	})
}

func (d *bodyDecoder) entity(h headerGetter, r io.Reader, depth int) {
	if depth > maxPartDepth {
		d.warn(domain.WarningDecode, "multipart nesting deeper than %d", maxPartDepth)
		return
	}

	if disp, _, err := mime.ParseMediaType(h.Get("Content-Disposition")); err == nil && disp == "attachment" {
		return
	}

	contentType := h.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil && mediaType == "" {
		mediaType = "text/plain"
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		d.multipart(r, params["boundary"], depth)
	case mediaType == "text/html":
		if s, ok := d.read(h, r, params["charset"]); ok {
			d.html = append(d.html, s)
		}
	case strings.HasPrefix(mediaType, "text/"):
		if s, ok := d.read(h, r, params["charset"]); ok {
			d.plain = append(d.plain, s)
		}
	}
}

func (d *bodyDecoder) multipart(r io.Reader, boundary string, depth int) {
	if boundary == "" {
		d.warn(domain.WarningDecode, "multipart body without boundary")
		return
	}
	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextRawPart()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			d.warn(domain.WarningDecode, "multipart: %v", err)
			return
		}
		d.entity(part.Header, part, depth+1)
		part.Close()
	}
}

func (d *bodyDecoder) read(h headerGetter, r io.Reader, label string) (string, bool) {
	raw, err := io.ReadAll(r)
	if err != nil && len(raw) == 0 {
		d.warn(domain.WarningDecode, "read part: %v", err)
		return "", false
	}
	decoded := d.transfer(h.Get("Content-Transfer-Encoding"), raw)
	text, warnings := d.charsets.decode(label, decoded, d.offset)
	d.warnings = append(d.warnings, warnings...)
	return text, true
}

func (d *bodyDecoder) transfer(cte string, raw []byte) []byte {
	switch strings.ToLower(strings.TrimSpace(cte)) {
	case "quoted-printable":
		out, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(raw)))
		if err != nil {
			d.warn(domain.WarningDecode, "quoted-printable: %v", err)
			return raw
		}
		return out
	case "base64":
		compact := bytes.Map(func(r rune) rune {
			if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, raw)
		out, err := base64.StdEncoding.DecodeString(string(compact))
		if err != nil {
			out, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(string(compact), "="))
		}
		if err != nil {
			d.warn(domain.WarningDecode, "base64: %v", err)
			return raw
		}
		return out
	default:
		return raw
	}
}
