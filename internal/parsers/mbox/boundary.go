package mbox

import (
	"mime"
	"strings"
)

// boundaryTracker follows multipart boundaries line by line so an
// unterminated multipart body can be detected before decoding.
type boundaryTracker struct {
	stack    []string
	inHeader bool
	header   []string
	broken   bool
}

// open registers the boundary of a top-level Content-Type header.
func (t *boundaryTracker) open(contentType string) {
	if b := multipartBoundary(contentType); b != "" {
		t.stack = append(t.stack, b)
	}
}

// line feeds one body line, without its line ending.
func (t *boundaryTracker) line(l string) {
	if len(t.stack) == 0 && !t.inHeader {
		return
	}
	l = strings.TrimRight(l, " \t\r\n")

	if t.inHeader {
		if l == "" {
			t.inHeader = false
			t.open(partContentType(t.header))
			t.header = t.header[:0]
			return
		}
		t.header = append(t.header, l)
		return
	}

	if !strings.HasPrefix(l, "--") {
		return
	}
	for i := len(t.stack) - 1; i >= 0; i-- {
		b := t.stack[i]
		switch l {
		case "--" + b + "--":
			if i != len(t.stack)-1 {
				// An outer boundary closed while an inner one was still open.
				t.broken = true
			}
			t.stack = t.stack[:i]
			return
		case "--" + b:
			if i != len(t.stack)-1 {
				t.broken = true
			}
			t.stack = t.stack[:i+1]
			t.inHeader = true
			return
		}
	}
}

// unterminated returns the innermost open boundary, or "" if every
// multipart body was properly closed.
func (t *boundaryTracker) unterminated() string {
	if len(t.stack) > 0 {
		return t.stack[len(t.stack)-1]
	}
	if t.broken {
		return "nested"
	}
	return ""
}

func multipartBoundary(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil && mediaType == "" {
		return ""
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return ""
	}
	return params["boundary"]
}

// partContentType extracts the Content-Type value from raw part header
// lines, joining folded continuations.
func partContentType(lines []string) string {
	var value string
	found := false
	for _, l := range lines {
		if found {
			if l != "" && (l[0] == ' ' || l[0] == '\t') {
				value += " " + strings.TrimSpace(l)
				continue
			}
			break
		}
		name, rest, ok := strings.Cut(l, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Content-Type") {
			value = strings.TrimSpace(rest)
			found = true
		}
	}
	return value
}
