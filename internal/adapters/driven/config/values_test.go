package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValues_TypedReads(t *testing.T) {
	v := Values{
		"s":      "mail",
		"i":      4,
		"i64":    int64(100),
		"f":      2.5,
		"b":      true,
		"list":   []string{"a", "b"},
		"tomlly": []any{"x", 1, "y"},
	}

	assert.Equal(t, "mail", v.String("s"))
	assert.Equal(t, 4, v.Int("i"))
	assert.Equal(t, 100, v.Int("i64"))
	assert.InDelta(t, 2.5, v.Float("f"), 1e-9)
	assert.InDelta(t, 100.0, v.Float("i64"), 1e-9)
	assert.True(t, v.Bool("b"))
	assert.Equal(t, []string{"a", "b"}, v.Strings("list"))
	assert.Equal(t, []string{"x", "y"}, v.Strings("tomlly"))

	assert.Empty(t, v.String("i"))
	assert.Zero(t, v.Int("f"))
	assert.Zero(t, v.Float("s"))
	assert.False(t, v.Bool("missing"))
	assert.Nil(t, v.Strings("s"))
}

func TestFlattenNest(t *testing.T) {
	tables := map[string]any{
		"burst":  map[string]any{"threshold": 3.0, "window": "24h"},
		"ingest": map[string]any{"workers": int64(8), "limits": map[string]any{"max": int64(1)}},
		"top":    "level",
	}

	flat := Flatten(tables)
	assert.Equal(t, Values{
		"burst.threshold":   3.0,
		"burst.window":      "24h",
		"ingest.workers":    int64(8),
		"ingest.limits.max": int64(1),
		"top":               "level",
	}, flat)
	assert.Equal(t, tables, flat.Nest())

	flat["dedup.window"] = ""
	_, ok := flat.Nest()["dedup"]
	assert.False(t, ok, "empty values are not written")
}
