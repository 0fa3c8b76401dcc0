package jsonexport

import (
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime interprets a JSON value as a point in time. Numbers are Unix
// epochs in seconds, milliseconds, microseconds or nanoseconds, chosen by
// magnitude. Strings may be ISO 8601, RFC 5322 or numeric.
func parseTime(v gjson.Result) (time.Time, bool) {
	switch v.Type {
	case gjson.Number:
		return epoch(v.Float())
	case gjson.String:
		return parseTimeString(strings.TrimSpace(v.String()))
	default:
		return time.Time{}, false
	}
}

func parseTimeString(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return epoch(f)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if t, err := mail.ParseDate(s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func epoch(f float64) (time.Time, bool) {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	switch {
	case f >= 1e17:
		return time.Unix(0, int64(f)).UTC(), true
	case f >= 1e14:
		return time.UnixMicro(int64(f)).UTC(), true
	case f >= 1e11:
		return time.UnixMilli(int64(f)).UTC(), true
	default:
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	}
}

// firstTime returns the first of keys that parses as a time.
func firstTime(v gjson.Result, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		if t, ok := parseTime(v.Get(k)); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// firstString returns the first of keys holding a non-empty string.
func firstString(v gjson.Result, keys ...string) string {
	for _, k := range keys {
		r := v.Get(k)
		if r.Type == gjson.String {
			if s := strings.TrimSpace(r.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

// contentText flattens the shapes chat exports use for message content:
// a plain string, {"parts": [...]} with strings or {"text": ...} objects,
// or {"text": ...}.
func contentText(v gjson.Result) string {
	switch {
	case v.Type == gjson.String:
		return v.String()
	case v.IsObject():
		if parts := v.Get("parts"); parts.IsArray() {
			var texts []string
			parts.ForEach(func(_, p gjson.Result) bool {
				switch {
				case p.Type == gjson.String:
					if p.String() != "" {
						texts = append(texts, p.String())
					}
				case p.IsObject():
					if t := p.Get("text"); t.Type == gjson.String && t.String() != "" {
						texts = append(texts, t.String())
					}
				}
				return true
			})
			return strings.Join(texts, "\n")
		}
		if t := v.Get("text"); t.Type == gjson.String {
			return t.String()
		}
	case v.IsArray():
		var texts []string
		v.ForEach(func(_, p gjson.Result) bool {
			if s := contentText(p); s != "" {
				texts = append(texts, s)
			}
			return true
		})
		return strings.Join(texts, "\n")
	}
	return ""
}

// fixMojibake repairs text that was UTF-8 encoded, then each byte escaped
// as a separate code point, as some messenger exports do.
func fixMojibake(s string) string {
	b := make([]byte, 0, len(s))
	multi := false
	for _, r := range s {
		if r > 0xFF {
			return s
		}
		if r >= 0x80 {
			multi = true
		}
		b = append(b, byte(r))
	}
	if !multi || !utf8.Valid(b) {
		return s
	}
	return string(b)
}

// stringList reads a string or an array of strings/objects with a name.
func stringList(v gjson.Result) []string {
	var out []string
	switch {
	case v.Type == gjson.String:
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
	case v.IsArray():
		v.ForEach(func(_, item gjson.Result) bool {
			if s := firstString(item, "name", "email", "address"); s != "" {
				out = append(out, s)
			} else if item.Type == gjson.String && strings.TrimSpace(item.String()) != "" {
				out = append(out, strings.TrimSpace(item.String()))
			}
			return true
		})
	}
	return out
}
