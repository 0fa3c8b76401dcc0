package driven

import (
	"bufio"
	"context"
	"io"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

// FormatDetector classifies a source stream without consuming it.
type FormatDetector interface {
	// Detect peeks at r and returns the stream's format.
	// Returns *domain.FormatError when no format matches.
	Detect(r *bufio.Reader) (domain.Format, error)
}

// RecordParser yields raw records from one source file, lazily.
type RecordParser interface {
	// Next returns the next record.
	//
	// An error matching domain.ErrParseRecoverable means one record was
	// skipped; the caller may call Next again. io.EOF ends the stream.
	// Any other error aborts the file.
	Next(ctx context.Context) (*domain.RawRecord, error)
}

// ThreadResolver is implemented by parsers that link records into threads.
// It is only meaningful once the parser has reached io.EOF.
type ThreadResolver interface {
	// ThreadRoot returns the root message id of the thread containing
	// messageID, or "" if the id is unknown.
	ThreadRoot(messageID string) string
}

// ParserOptions carries the settings a parser needs.
type ParserOptions struct {
	Path               string
	MaxMessageBytes    int64
	CharsetFallbacks   []string
	DefaultChannel     domain.Channel
	IncludeSystemRoles bool
}

// ParserFactory opens parsers for a single format.
type ParserFactory interface {
	// Format returns the format this factory handles.
	Format() domain.Format

	// NewParser returns a parser reading from r.
	NewParser(r io.Reader, opts ParserOptions) (RecordParser, error)
}
