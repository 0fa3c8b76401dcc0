// Package jsonexport parses JSON archive exports (chat conversations,
// messenger threads, search activity and flat record lists) into raw records.
//
// A top-level array is streamed element by element so arbitrarily large
// exports are never held in memory at once; a top-level object is read whole.
// Each element is offered to the extractors in priority order. Containers no
// extractor recognises are descended into, and leaf objects that still match
// nothing go through a heuristic that looks for timestamp-like and text-like
// keys. Heuristic records carry reduced confidence and a schema drift warning.
package jsonexport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
)

// Ensure Parser implements the interface.
var (
	_ driven.RecordParser  = (*Parser)(nil)
	_ driven.ParserFactory = Factory{}
)

// maxDepth bounds descent into unrecognised containers.
const maxDepth = 8

// heuristicConfidence is assigned to records the fallback extracts.
const heuristicConfidence = 0.5

// Factory creates JSON export parsers.
type Factory struct{}

// Format returns the format this factory handles.
func (Factory) Format() domain.Format {
	return domain.FormatJSON
}

// NewParser returns a parser reading from r.
func (Factory) NewParser(r io.Reader, opts driven.ParserOptions) (driven.RecordParser, error) {
	return New(r, opts), nil
}

type item struct {
	rec *domain.RawRecord
	err error
}

// Parser reads one JSON export stream.
type Parser struct {
	br         *bufio.Reader
	dec        *json.Decoder
	base       int64
	opts       driven.ParserOptions
	extractors []Extractor

	queue   []item
	started bool
	array   bool
	done    bool
}

// New creates a parser with the default extractors.
func New(r io.Reader, opts driven.ParserOptions) *Parser {
	return NewWithExtractors(r, opts, DefaultExtractors()...)
}

// NewWithExtractors creates a parser with a custom extractor chain.
func NewWithExtractors(r io.Reader, opts driven.ParserOptions, extractors ...Extractor) *Parser {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Parser{br: br, opts: opts, extractors: extractors}
}

// Next returns the next record.
func (p *Parser) Next(ctx context.Context) (*domain.RawRecord, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(p.queue) > 0 {
			it := p.queue[0]
			p.queue = p.queue[1:]
			return it.rec, it.err
		}
		if p.done {
			return nil, io.EOF
		}
		if err := p.fill(); err != nil {
			p.done = true
			return nil, err
		}
	}
}

// fill reads the next top-level element and queues what it yields.
func (p *Parser) fill() error {
	if !p.started {
		p.started = true
		return p.start()
	}
	if !p.array || !p.dec.More() {
		p.done = true
		if !p.array {
			return nil
		}
		// More also reports false at EOF, so the array must be seen to close
		if tok, err := p.dec.Token(); err != nil || tok != json.Delim(']') {
			return domain.FatalError(p.base+p.dec.InputOffset(), "array not closed", err)
		}
		return nil
	}

	var raw json.RawMessage
	if err := p.dec.Decode(&raw); err != nil {
		return domain.FatalError(p.base+p.dec.InputOffset(), "decode array element", err)
	}
	end := p.base + p.dec.InputOffset()
	p.handle(node{
		value:  gjson.ParseBytes(raw),
		offset: end - int64(len(raw)),
	}, 0)
	return nil
}

// start skips a byte-order mark and leading whitespace, then either opens
// the top-level array or reads the top-level object whole.
func (p *Parser) start() error {
	if bom, _ := p.br.Peek(3); len(bom) == 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = p.br.Discard(3)
		p.base += 3
	}
	for {
		b, err := p.br.ReadByte()
		if errors.Is(err, io.EOF) {
			return domain.FatalError(p.base, "empty JSON document", nil)
		}
		if err != nil {
			return domain.FatalError(p.base, "read", err)
		}
		if b == ' ' || b == '\t' || b == '\r' || b == '\n' {
			p.base++
			continue
		}
		_ = p.br.UnreadByte()
		break
	}

	p.dec = json.NewDecoder(p.br)
	first, _ := p.br.Peek(1)
	switch first[0] {
	case '[':
		if _, err := p.dec.Token(); err != nil {
			return domain.FatalError(p.base, "open array", err)
		}
		p.array = true
		return nil
	case '{':
		var raw json.RawMessage
		if err := p.dec.Decode(&raw); err != nil {
			return domain.FatalError(p.base+p.dec.InputOffset(), "decode object", err)
		}
		p.handle(node{value: gjson.ParseBytes(raw), offset: p.base}, 0)
		p.done = true
		return nil
	default:
		return domain.FatalError(p.base, fmt.Sprintf("unexpected leading byte %q", first[0]), nil)
	}
}

func (p *Parser) push(recs []*domain.RawRecord, errs []error) {
	for _, err := range errs {
		p.queue = append(p.queue, item{err: err})
	}
	for _, rec := range recs {
		p.queue = append(p.queue, item{rec: rec})
	}
}

// handle routes a node to the first matching extractor. Unrecognised
// objects are descended into through their record collections first, then
// tried with the heuristic, and finally descended through nested objects.
func (p *Parser) handle(n node, depth int) {
	for _, ex := range p.extractors {
		if ex.Match(n.value) {
			p.push(ex.Extract(n, p.opts))
			return
		}
	}

	switch {
	case n.value.IsArray():
		if depth >= maxDepth {
			p.push(nil, []error{domain.RecoverableError(n.offset, "array nested too deeply", nil)})
			return
		}
		n.children(func(_ string, child node) bool {
			p.handle(child, depth+1)
			return true
		})
	case n.value.IsObject():
		var collections, objects []node
		n.children(func(_ string, child node) bool {
			switch {
			case isCollection(child.value):
				collections = append(collections, child)
			case child.value.IsObject():
				objects = append(objects, child)
			}
			return true
		})
		if len(collections) > 0 && depth < maxDepth {
			for _, c := range collections {
				p.handle(c, depth+1)
			}
			return
		}
		if rec, ok := p.heuristic(n); ok {
			p.push([]*domain.RawRecord{rec}, nil)
			return
		}
		if len(objects) > 0 && depth < maxDepth {
			for _, o := range objects {
				p.handle(o, depth+1)
			}
			return
		}
		p.push(nil, []error{domain.RecoverableError(n.offset, "object matches no known export schema", nil)})
	default:
		p.push(nil, []error{domain.RecoverableError(n.offset, "unexpected scalar value", nil)})
	}
}

// isCollection reports whether v is an array of objects or arrays, the
// shape that holds further records.
func isCollection(v gjson.Result) bool {
	if !v.IsArray() {
		return false
	}
	first := v.Get("0")
	return first.IsObject() || first.IsArray()
}

var (
	timeKeyHints   = []string{"timestamp", "time", "date", "created", "modified"}
	textKeys       = []string{"text", "content", "body", "message", "title", "query", "snippet", "description"}
	authorKeys     = []string{"author", "sender", "from", "user", "by", "owner"}
	recipientsKeys = []string{"to", "recipients", "participants"}
)

// heuristic extracts a record from an object of unknown shape by looking
// for a timestamp-like key, a text-like key and an author-like key. At
// least a timestamp or an author is required.
func (p *Parser) heuristic(n node) (*domain.RawRecord, bool) {
	v := n.value
	members := make(map[string]gjson.Result)
	var keys []string
	v.ForEach(func(k, val gjson.Result) bool {
		members[k.String()] = val
		keys = append(keys, k.String())
		return true
	})
	slices.Sort(keys)

	var (
		ts     gjson.Result
		tsKey  string
		author string
	)
	for _, k := range keys {
		lk := strings.ToLower(k)
		if lk != "ts" && !containsAny(lk, timeKeyHints) {
			continue
		}
		if _, ok := parseTime(members[k]); ok {
			ts, tsKey = members[k], k
			break
		}
	}
	for _, k := range authorKeys {
		if s := firstString(v, k, k+".name"); s != "" {
			author = s
			break
		}
	}
	if tsKey == "" && author == "" {
		return nil, false
	}

	text := firstString(v, textKeys...)
	if text == "" {
		text = longestString(v, tsKey)
	}

	rec := n.record(defaultChannel(p.opts), SchemaHeuristic, "")
	rec.Confidence = heuristicConfidence
	if t, ok := parseTime(ts); ok {
		setDate(rec, t)
	}
	rec.Set(domain.FieldFrom, author)
	for _, k := range recipientsKeys {
		if to := stringList(v.Get(k)); len(to) > 0 {
			rec.Set(domain.FieldTo, to...)
			break
		}
	}
	rec.Body = text

	path := n.path
	if path == "" {
		path = "$"
	}
	rec.Warnings = append(rec.Warnings, domain.WarningFromError(&domain.SchemaDriftError{
		Offset: n.offset,
		Path:   path,
		Keys:   keys,
	}))
	return rec, true
}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

// longestString returns the longest string member other than skip.
func longestString(v gjson.Result, skip string) string {
	var best string
	v.ForEach(func(k, val gjson.Result) bool {
		if k.String() != skip && val.Type == gjson.String && len(val.String()) > len(best) {
			best = val.String()
		}
		return true
	})
	return strings.TrimSpace(best)
}
