package jsonexport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

	tests := []struct {
		name  string
		json  string
		want  time.Time
		valid bool
	}{
		{"seconds", `1700000000`, want, true},
		{"fractional seconds", `1700000000.5`, want.Add(500 * time.Millisecond), true},
		{"milliseconds", `1700000000000`, want, true},
		{"microseconds", `1700000000000000`, want, true},
		{"nanoseconds", `1700000000000000000`, want, true},
		{"numeric string", `"1700000000"`, want, true},
		{"rfc3339", `"2023-11-14T22:13:20Z"`, want, true},
		{"rfc3339 with offset", `"2023-11-14T23:13:20+01:00"`, want, true},
		{"space separated", `"2023-11-14 22:13:20"`, want, true},
		{"rfc5322", `"Tue, 14 Nov 2023 22:13:20 +0000"`, want, true},
		{"zero", `0`, time.Time{}, false},
		{"negative", `-5`, time.Time{}, false},
		{"garbage", `"yesterday-ish"`, time.Time{}, false},
		{"bool", `true`, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseTime(gjson.Parse(tt.json))
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestContentText(t *testing.T) {
	assert.Equal(t, "plain", contentText(gjson.Parse(`"plain"`)))
	assert.Equal(t, "a\nb", contentText(gjson.Parse(`{"parts":["a","",{"text":"b"}]}`)))
	assert.Equal(t, "inner", contentText(gjson.Parse(`{"text":"inner"}`)))
	assert.Equal(t, "x\ny", contentText(gjson.Parse(`["x",{"text":"y"}]`)))
	assert.Empty(t, contentText(gjson.Parse(`{"parts":[{"image":1}]}`)))
}

func TestFixMojibake(t *testing.T) {
	assert.Equal(t, "café", fixMojibake("cafÃ©"))
	assert.Equal(t, "plain ascii", fixMojibake("plain ascii"))
	assert.Equal(t, "déjà", fixMojibake("déjà"), "latin-1 text that is not valid utf-8 stays")
	assert.Equal(t, "日本", fixMojibake("日本"))
}

func TestStringList(t *testing.T) {
	assert.Equal(t, []string{"a"}, stringList(gjson.Parse(`" a "`)))
	assert.Equal(t, []string{"Alice", "bob@example.com", "carol"},
		stringList(gjson.Parse(`[{"name":"Alice"},{"email":"bob@example.com"},"carol",""]`)))
	assert.Nil(t, stringList(gjson.Parse(`42`)))
}
