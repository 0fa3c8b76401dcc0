// Package mbox parses Unix mailbox archives into raw mail records.
//
// The parser is a line-driven state machine. It scans for an envelope line,
// collects the header block, then collects body lines until the next
// envelope. Messages with a malformed header or an unterminated multipart
// boundary are skipped with a recoverable error and scanning resumes at the
// next envelope, so one bad message never loses the rest of the archive.
package mbox

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
)

// Ensure Parser implements the interfaces.
var (
	_ driven.RecordParser   = (*Parser)(nil)
	_ driven.ThreadResolver = (*Parser)(nil)
	_ driven.ParserFactory  = Factory{}
)

// readerSize is the buffered reader size for mailbox streams.
const readerSize = 64 * 1024

var envelopePrefix = []byte("From ")

// envelopeLayouts are the date formats seen after the sender on envelope lines.
var envelopeLayouts = []string{
	time.ANSIC,
	"Mon Jan _2 15:04:05 -0700 2006",
	"Mon Jan _2 15:04:05 MST 2006",
	time.RFC1123Z,
	time.RFC1123,
}

// Factory creates mailbox parsers.
type Factory struct{}

// Format returns the format this factory handles.
func (Factory) Format() domain.Format {
	return domain.FormatMailbox
}

// NewParser returns a parser reading from r.
func (Factory) NewParser(r io.Reader, opts driven.ParserOptions) (driven.RecordParser, error) {
	return New(r, opts), nil
}

type state int

const (
	stateScanning state = iota
	stateHeader
	stateBody
)

// Parser reads one mailbox stream.
type Parser struct {
	r        *bufio.Reader
	opts     driven.ParserOptions
	charsets *charsetDecoder
	words    *mime.WordDecoder
	threads  *ThreadGraph

	offset        int64
	pending       []byte
	pendingOffset int64
	done          bool
}

// New creates a parser over r.
func New(r io.Reader, opts driven.ParserOptions) *Parser {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, readerSize)
	}
	return &Parser{
		r:        br,
		opts:     opts,
		charsets: newCharsetDecoder(opts.CharsetFallbacks),
		words:    newWordDecoder(),
		threads:  NewThreadGraph(),
	}
}

// Threads returns the reply graph of every message parsed so far.
func (p *Parser) Threads() *ThreadGraph {
	return p.threads
}

// ThreadRoot returns the thread root of a parsed message.
func (p *Parser) ThreadRoot(messageID string) string {
	return p.threads.ThreadRoot(messageID)
}

// Next returns the next message as a raw record.
func (p *Parser) Next(ctx context.Context) (*domain.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.done {
		return nil, io.EOF
	}

	msg, err := p.readMessage()
	if err != nil {
		p.done = true
		return nil, err
	}
	if msg == nil {
		p.done = true
		return nil, io.EOF
	}

	if msg.malformed != "" {
		return nil, domain.RecoverableError(msg.offset, msg.malformed, nil)
	}
	if b := msg.boundaries.unterminated(); b != "" {
		return nil, domain.RecoverableError(msg.offset, fmt.Sprintf("unterminated multipart boundary %q", b), nil)
	}
	return p.decode(msg)
}

// rawMessage is one envelope's worth of lines.
type rawMessage struct {
	offset     int64
	length     int64
	envelope   string
	header     []byte
	body       bytes.Buffer
	truncated  bool
	malformed  string
	boundaries boundaryTracker
}

func (p *Parser) readLine() ([]byte, int64, error) {
	start := p.offset
	line, err := p.r.ReadBytes('\n')
	p.offset += int64(len(line))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, start, domain.FatalError(start, "read mailbox", err)
	}
	if errors.Is(err, io.EOF) && len(line) == 0 {
		return nil, start, io.EOF
	}
	return line, start, nil
}

// readMessage consumes lines up to, but not including, the next envelope.
// It returns nil at end of input.
func (p *Parser) readMessage() (*rawMessage, error) {
	var (
		line  []byte
		start int64
		err   error
	)

	if p.pending != nil {
		line, start = p.pending, p.pendingOffset
		p.pending = nil
	} else {
		for {
			line, start, err = p.readLine()
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			if bytes.HasPrefix(line, envelopePrefix) {
				break
			}
		}
	}

	msg := &rawMessage{offset: start, envelope: string(trimEOL(line))}
	st := stateHeader
	prevBlank := false
	end := p.offset

	for {
		line, start, err = p.readLine()
		if errors.Is(err, io.EOF) {
			end = p.offset
			break
		}
		if err != nil {
			return nil, err
		}

		if bytes.HasPrefix(line, envelopePrefix) && (st == stateHeader || prevBlank) {
			if st == stateHeader {
				msg.malformed = "header block interrupted by envelope line"
			}
			p.pending, p.pendingOffset = line, start
			end = start
			break
		}

		content := trimEOL(line)
		switch st {
		case stateHeader:
			if len(bytes.TrimSpace(content)) == 0 {
				if len(msg.header) == 0 {
					msg.malformed = "message has no header lines"
				}
				msg.boundaries.open(partContentType(strings.Split(string(msg.header), "\n")))
				st = stateBody
				prevBlank = true
				continue
			}
			if msg.malformed == "" && !validHeaderLine(content, len(msg.header) == 0) {
				msg.malformed = fmt.Sprintf("invalid header line %q", truncateForLog(content))
			}
			msg.header = append(msg.header, content...)
			msg.header = append(msg.header, '\n')
		case stateBody:
			prevBlank = len(bytes.TrimSpace(content)) == 0
			content = unescapeFrom(content)
			msg.boundaries.line(string(content))
			p.appendBody(msg, content)
		}
	}

	if st == stateHeader && msg.malformed == "" {
		msg.malformed = "message ends inside header block"
	}
	msg.length = end - msg.offset
	return msg, nil
}

func (p *Parser) appendBody(msg *rawMessage, line []byte) {
	if msg.truncated {
		return
	}
	if p.opts.MaxMessageBytes > 0 && int64(msg.body.Len()+len(line)+1) > p.opts.MaxMessageBytes {
		msg.truncated = true
		return
	}
	msg.body.Write(line)
	msg.body.WriteByte('\n')
}

func (p *Parser) decode(msg *rawMessage) (*domain.RawRecord, error) {
	parsed, err := mail.ReadMessage(io.MultiReader(
		bytes.NewReader(msg.header),
		strings.NewReader("\n"),
		bytes.NewReader(msg.body.Bytes()),
	))
	if err != nil {
		return nil, domain.RecoverableError(msg.offset, "malformed header block", err)
	}

	rec := &domain.RawRecord{
		Channel:    domain.ChannelMail,
		Format:     domain.FormatMailbox,
		Offset:     msg.offset,
		Length:     msg.length,
		Confidence: 1,
	}

	h := parsed.Header
	for _, field := range []string{domain.FieldFrom, domain.FieldTo, domain.FieldCc, domain.FieldBcc, domain.FieldSubject, domain.FieldLabels} {
		rec.Set(field, decodeHeader(p.words, h.Get(field)))
	}
	if rec.Get(domain.FieldLabels) == "" {
		rec.Set(domain.FieldLabels, decodeHeader(p.words, h.Get("X-GM-LABELS")))
	}
	rec.Set(domain.FieldDate, h.Get(domain.FieldDate))
	rec.Set(domain.FieldMessageID, normaliseMessageID(h.Get(domain.FieldMessageID)))
	rec.Set(domain.FieldInReplyTo, normaliseMessageID(h.Get(domain.FieldInReplyTo)))
	refs := parseReferences(h.Get(domain.FieldReferences))
	rec.Set(domain.FieldReferences, refs...)

	envFrom, envDate := parseEnvelope(msg.envelope)
	rec.Set(domain.FieldEnvelopeFrom, envFrom)
	if !envDate.IsZero() {
		rec.Set(domain.FieldEnvelopeDate, envDate.Format(time.RFC3339))
	}

	dec := &bodyDecoder{charsets: p.charsets, offset: msg.offset}
	dec.entity(h, parsed.Body, 0)
	rec.Body = dec.text()
	rec.Warnings = dec.warnings
	if msg.truncated {
		rec.Warnings = append(rec.Warnings, domain.Warning{
			Kind:    domain.WarningTruncated,
			Offset:  msg.offset,
			Message: fmt.Sprintf("message body exceeds %d bytes and was truncated", p.opts.MaxMessageBytes),
		})
	}

	p.threads.Add(rec.Get(domain.FieldMessageID), rec.Get(domain.FieldInReplyTo), refs)
	return rec, nil
}

// validHeaderLine reports whether a line can belong to a header block.
// Continuation lines are only valid after a field line.
func validHeaderLine(line []byte, first bool) bool {
	if line[0] == ' ' || line[0] == '\t' {
		return !first
	}
	name, _, ok := bytes.Cut(line, []byte(":"))
	if !ok || len(name) == 0 {
		return false
	}
	for _, c := range name {
		if c < 33 || c > 126 {
			return false
		}
	}
	return true
}

// parseEnvelope splits "From sender date" into its sender and date.
func parseEnvelope(line string) (string, time.Time) {
	fields := strings.Fields(strings.TrimPrefix(line, "From "))
	if len(fields) == 0 {
		return "", time.Time{}
	}
	sender := fields[0]
	if len(fields) == 1 {
		return sender, time.Time{}
	}
	rest := strings.Join(fields[1:], " ")
	for _, layout := range envelopeLayouts {
		if t, err := time.Parse(layout, rest); err == nil {
			return sender, t.UTC()
		}
	}
	return sender, time.Time{}
}

// unescapeFrom reverses mboxrd quoting: ">From " and ">>From " lose one '>'.
func unescapeFrom(line []byte) []byte {
	i := 0
	for i < len(line) && line[i] == '>' {
		i++
	}
	if i > 0 && bytes.HasPrefix(line[i:], envelopePrefix) {
		return line[1:]
	}
	return line
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}

func truncateForLog(b []byte) string {
	const limit = 40
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
