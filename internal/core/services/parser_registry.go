package services

import (
	"bufio"
	"fmt"
	"io"
	"slices"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
	"github.com/custodia-labs/archeo/internal/parsers/detect"
	"github.com/custodia-labs/archeo/internal/parsers/jsonexport"
	"github.com/custodia-labs/archeo/internal/parsers/mbox"
)

// ParserRegistry maps detected formats to parser factories.
type ParserRegistry struct {
	detector  driven.FormatDetector
	factories map[domain.Format]driven.ParserFactory
}

// NewParserRegistry creates a registry with the given detector and factories.
func NewParserRegistry(detector driven.FormatDetector, factories ...driven.ParserFactory) *ParserRegistry {
	r := &ParserRegistry{
		detector:  detector,
		factories: make(map[domain.Format]driven.ParserFactory),
	}
	for _, f := range factories {
		r.Register(f)
	}
	return r
}

// NewDefaultParserRegistry creates a registry with the built-in parsers.
func NewDefaultParserRegistry() *ParserRegistry {
	return NewParserRegistry(detect.New(), mbox.Factory{}, jsonexport.Factory{})
}

// Register adds or replaces the factory for its format.
func (r *ParserRegistry) Register(f driven.ParserFactory) {
	r.factories[f.Format()] = f
}

// Formats returns the registered formats in sorted order.
func (r *ParserRegistry) Formats() []domain.Format {
	out := make([]domain.Format, 0, len(r.factories))
	for f := range r.factories {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Detect classifies the stream behind br without consuming it.
func (r *ParserRegistry) Detect(br *bufio.Reader) (domain.Format, error) {
	return r.detector.Detect(br)
}

// NewParser opens a parser for a detected format.
func (r *ParserRegistry) NewParser(format domain.Format, rd io.Reader, opts driven.ParserOptions) (driven.RecordParser, error) {
	f, ok := r.factories[format]
	if !ok {
		return nil, &domain.FormatError{Path: opts.Path, Reason: fmt.Sprintf("no parser registered for %q", format)}
	}
	p, err := f.NewParser(rd, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s parser: %w", format, err)
	}
	return p, nil
}
