package terms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	e := New()

	assert.Equal(t, DefaultMinLength, e.minLength)
	assert.Equal(t, DefaultMaxTerms, e.maxTerms)
	assert.Contains(t, e.stopwords, "the")
}

func TestNew_WithOptions(t *testing.T) {
	e := New(WithMinLength(5), WithMaxTerms(2), WithStopwords("Budget"))

	assert.Equal(t, 5, e.minLength)
	assert.Equal(t, 2, e.maxTerms)
	assert.Contains(t, e.stopwords, "budget")
}

func TestNew_IgnoresInvalidOptions(t *testing.T) {
	e := New(WithMinLength(0), WithMaxTerms(-1))

	assert.Equal(t, DefaultMinLength, e.minLength)
	assert.Equal(t, DefaultMaxTerms, e.maxTerms)
}

func TestExtract(t *testing.T) {
	e := New()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"lowercases and splits punctuation", "Quarterly-Budget, REVIEW!", []string{"quarterly", "budget", "review"}},
		{"drops stopwords and short words", "the plan is on for me", []string{"plan"}},
		{"drops numbers but keeps alphanumerics", "2024 q3 roadmap v2x", []string{"roadmap", "v2x"}},
		{"drops urls", "see https://example.com/page now deploy", []string{"deploy"}},
		{"keeps repeats", "deploy deploy deploy", []string{"deploy", "deploy", "deploy"}},
		{"handles unicode", "Café crème brûlée", []string{"café", "crème", "brûlée"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Extract(tt.text))
		})
	}
}

func TestExtract_RespectsMaxTerms(t *testing.T) {
	e := New(WithMaxTerms(2))

	assert.Equal(t, []string{"alpha", "beta"}, e.Extract("alpha beta gamma delta"))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Unique([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, Unique(nil))
}

func TestNormalise(t *testing.T) {
	assert.Equal(t, "hello big world", Normalise("  Hello\n\tBIG   world "))
	assert.Equal(t, "", Normalise("   "))
}
