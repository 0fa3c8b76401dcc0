package detect

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  domain.Format
	}{
		{"mailbox", "From alice@example.com Sat Jan  1 00:00:00 2022\nFrom: a\n", domain.FormatMailbox},
		{"mailbox after blank lines", "\n\r\nFrom x Mon Jan  1 00:00:00 2001\n", domain.FormatMailbox},
		{"json array", `[{"time": 1}]`, domain.FormatJSON},
		{"json object", `{"conversations": []}`, domain.FormatJSON},
		{"json with whitespace", "\n\t  [ ]", domain.FormatJSON},
		{"json with bom", "\xEF\xBB\xBF{\"a\":1}", domain.FormatJSON},
	}

	d := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := d.Detect(bufio.NewReader(strings.NewReader(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, format)
		})
	}
}

func TestDetect_Unknown(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "  \n\n"},
		{"plain text", "hello world"},
		{"header without envelope", "From: alice@example.com\n"},
		{"lowercase envelope", "from alice Sat Jan  1 00:00:00 2022\n"},
	}

	d := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Detect(bufio.NewReader(strings.NewReader(tt.input)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrUnknownFormat))

			var formatErr *domain.FormatError
			assert.True(t, errors.As(err, &formatErr))
		})
	}
}

func TestDetect_DoesNotConsume(t *testing.T) {
	input := "From a Sat Jan  1 00:00:00 2022\nbody\n"
	r := bufio.NewReader(strings.NewReader(input))

	_, err := New().Detect(r)
	require.NoError(t, err)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, input, string(rest))
}
