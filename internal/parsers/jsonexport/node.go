package jsonexport

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

// node is a JSON value located in the source file.
type node struct {
	value  gjson.Result
	offset int64
	path   string
}

func (n node) length() int64 {
	return int64(len(n.value.Raw))
}

// record starts a raw record located at this node.
func (n node) record(channel domain.Channel, schema, pointer string) *domain.RawRecord {
	rec := &domain.RawRecord{
		Channel:    channel,
		Format:     domain.FormatJSON,
		Offset:     n.offset,
		Length:     n.length(),
		Pointer:    pointer,
		Confidence: 1,
	}
	rec.Set(domain.FieldSchema, schema)
	return rec
}

// children calls fn for each array element or object member, with its
// exact byte offset. Members are located by scanning forward through the
// parent's raw text, which gjson guarantees to contain each child verbatim
// and in order.
func (n node) children(fn func(key string, child node) bool) {
	raw := n.value.Raw
	cursor := 0
	index := 0
	n.value.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if n.value.IsArray() {
			key = strconv.Itoa(index)
		}
		index++

		pos := strings.Index(raw[cursor:], v.Raw)
		if pos < 0 {
			pos = 0
		} else {
			pos += cursor
			cursor = pos + len(v.Raw)
		}

		path := key
		if n.path != "" {
			path = n.path + "/" + key
		}
		return fn(key, node{value: v, offset: n.offset + int64(pos), path: path})
	})
}

// lookup resolves a "/"-separated pointer of object keys and array indexes.
func lookup(v gjson.Result, pointer string) (gjson.Result, bool) {
	if pointer == "" {
		return v, true
	}
	for _, part := range strings.Split(pointer, "/") {
		var (
			next  gjson.Result
			found bool
		)
		if v.IsArray() {
			want, err := strconv.Atoi(part)
			if err != nil {
				return gjson.Result{}, false
			}
			i := 0
			v.ForEach(func(_, item gjson.Result) bool {
				if i == want {
					next, found = item, true
					return false
				}
				i++
				return true
			})
		} else {
			v.ForEach(func(k, item gjson.Result) bool {
				if k.String() == part {
					next, found = item, true
					return false
				}
				return true
			})
		}
		if !found {
			return gjson.Result{}, false
		}
		v = next
	}
	return v, true
}

// Render returns the indented JSON of the record stored at pointer inside
// raw, which holds the bytes of a record's content reference.
func Render(raw []byte, pointer string) (string, error) {
	raw = bytes.TrimSpace(raw)
	if !gjson.ValidBytes(raw) {
		return "", fmt.Errorf("render json: %w", domain.ErrInvalidInput)
	}
	v, ok := lookup(gjson.ParseBytes(raw), pointer)
	if !ok {
		return "", fmt.Errorf("render json pointer %q: %w", pointer, domain.ErrNotFound)
	}
	return strings.TrimSpace(string(pretty.Pretty([]byte(v.Raw)))), nil
}
