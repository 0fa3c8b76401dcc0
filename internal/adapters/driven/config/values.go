// Package config holds what the configuration stores share: a flat table
// of dotted keys with typed reads.
package config

import (
	"strings"
)

// Values maps dotted keys such as "burst.threshold" to raw values.
// Reads of a missing key or a value of another type return the zero value.
type Values map[string]any

// String returns the value at key as a string.
func (v Values) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// Int returns the value at key as an int. TOML decodes integers as int64.
func (v Values) Int(key string) int {
	switch n := v[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

// Float returns the value at key as a float64. Integers widen.
func (v Values) Float(key string) float64 {
	switch n := v[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// Bool returns the value at key as a bool.
func (v Values) Bool(key string) bool {
	b, _ := v[key].(bool)
	return b
}

// Strings returns the value at key as a string slice. TOML decodes arrays
// as []any; non-string items are dropped.
func (v Values) Strings(key string) []string {
	switch list := v[key].(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Flatten turns nested tables into dotted keys, so {"a": {"b": 1}}
// becomes {"a.b": 1}.
func Flatten(tables map[string]any) Values {
	out := make(Values)
	flattenInto(out, tables, "")
	return out
}

func flattenInto(out Values, tables map[string]any, prefix string) {
	for key, value := range tables {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flattenInto(out, nested, key)
			continue
		}
		out[key] = value
	}
}

// Nest is the inverse of Flatten. Empty strings are unset values and are
// left out.
func (v Values) Nest() map[string]any {
	out := make(map[string]any)
	for key, value := range v {
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		parts := strings.Split(key, ".")
		table := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := table[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				table[part] = next
			}
			table = next
		}
		table[parts[len(parts)-1]] = value
	}
	return out
}
