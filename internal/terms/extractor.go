// Package terms extracts normalised vocabulary from event text for
// deduplication hashing and topic segmentation.
package terms

import (
	"strings"
	"unicode"
)

// DefaultMinLength is the shortest term kept.
const DefaultMinLength = 3

// DefaultMaxTerms bounds the terms kept per event.
const DefaultMaxTerms = 256

// Extractor tokenises text into lowercase terms.
type Extractor struct {
	minLength int
	maxTerms  int
	stopwords map[string]struct{}
}

// Option configures the extractor.
type Option func(*Extractor)

// WithMinLength sets the minimum term length in runes.
func WithMinLength(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.minLength = n
		}
	}
}

// WithMaxTerms caps the number of terms returned per call.
func WithMaxTerms(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTerms = n
		}
	}
}

// WithStopwords adds words that are never returned as terms.
func WithStopwords(words ...string) Option {
	return func(e *Extractor) {
		for _, w := range words {
			e.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// New creates an extractor with the default English stopword list.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		minLength: DefaultMinLength,
		maxTerms:  DefaultMaxTerms,
		stopwords: make(map[string]struct{}, len(defaultStopwords)),
	}
	for _, w := range defaultStopwords {
		e.stopwords[w] = struct{}{}
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Extract returns the terms of text in order of appearance, repeats included.
// URLs, numbers and stopwords are dropped.
func (e *Extractor) Extract(text string) []string {
	if text == "" {
		return nil
	}

	var out []string
	for _, field := range strings.Fields(text) {
		if isURL(field) {
			continue
		}
		for _, tok := range strings.FieldsFunc(field, notWordRune) {
			tok = strings.ToLower(tok)
			if !e.keep(tok) {
				continue
			}
			out = append(out, tok)
			if len(out) >= e.maxTerms {
				return out
			}
		}
	}
	return out
}

// Unique returns the distinct terms of ts, preserving first occurrence order.
func Unique(ts []string) []string {
	seen := make(map[string]struct{}, len(ts))
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Normalise lowercases text and collapses all whitespace runs to one space.
// It is the form content hashes are computed over.
func Normalise(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func (e *Extractor) keep(tok string) bool {
	if len([]rune(tok)) < e.minLength {
		return false
	}
	if _, stop := e.stopwords[tok]; stop {
		return false
	}
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func isURL(s string) bool {
	s = strings.ToLower(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.") || strings.HasPrefix(s, "mailto:")
}

var defaultStopwords = []string{
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can",
	"had", "her", "was", "one", "our", "out", "has", "have", "him", "his",
	"how", "its", "may", "new", "now", "old", "see", "two", "way", "who",
	"did", "get", "got", "let", "say", "she", "too", "use", "that", "with",
	"this", "from", "they", "will", "would", "there", "their", "what",
	"about", "which", "when", "make", "like", "time", "just", "know",
	"take", "into", "year", "your", "some", "could", "them", "than",
	"then", "look", "only", "come", "over", "think", "also", "back",
	"after", "work", "first", "well", "even", "want", "because", "these",
	"give", "most", "were", "been", "being", "here", "more", "very",
	"much", "should", "does", "done", "each", "other", "such", "where",
	"while", "shall", "yours", "ours", "hers", "thanks", "thank", "please",
	"regards", "best", "sent", "wrote", "subject", "fwd", "http", "https",
	"www", "com", "html", "nbsp", "searched", "visited", "watched",
}
