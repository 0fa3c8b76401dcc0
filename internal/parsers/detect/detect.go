// Package detect classifies archive files by their leading bytes.
package detect

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
)

// Ensure Detector implements the interface.
var _ driven.FormatDetector = (*Detector)(nil)

// peekSize is how far ahead Detect looks past leading whitespace.
const peekSize = 4096

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Detector classifies a stream as a mailbox or a JSON export.
type Detector struct{}

// New creates a format detector.
func New() *Detector {
	return &Detector{}
}

// Detect peeks at r without consuming it. A leading byte-order mark and
// whitespace are ignored. Streams that begin with an envelope line are
// mailboxes; streams that begin with '[' or '{' are JSON.
func (d *Detector) Detect(r *bufio.Reader) (domain.Format, error) {
	head, err := r.Peek(peekSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", &domain.FormatError{Reason: "read: " + err.Error()}
	}

	head = bytes.TrimPrefix(head, utf8BOM)
	head = bytes.TrimLeft(head, " \t\r\n")

	switch {
	case len(head) == 0:
		return "", &domain.FormatError{Reason: "empty input"}
	case bytes.HasPrefix(head, []byte("From ")):
		return domain.FormatMailbox, nil
	case head[0] == '[' || head[0] == '{':
		return domain.FormatJSON, nil
	default:
		return "", &domain.FormatError{Reason: "no envelope line or JSON value at start of input"}
	}
}
