package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIngestInProgress indicates an ingestion run is already active.
	ErrIngestInProgress = errors.New("ingestion in progress")

	// ErrOutOfOrder indicates an event arrived with a timestamp earlier
	// than one already applied to an order-sensitive aggregate.
	ErrOutOfOrder = errors.New("event out of timestamp order")

	// Ingestion error kinds. Each typed error below matches exactly one of
	// these through errors.Is.

	// ErrUnknownFormat indicates a file matched no supported archive format.
	ErrUnknownFormat = errors.New("unknown format")

	// ErrParseRecoverable indicates a single record could not be parsed and
	// was skipped while the rest of the stream continued.
	ErrParseRecoverable = errors.New("recoverable parse error")

	// ErrParseFatal indicates stream corruption that prevents further progress.
	ErrParseFatal = errors.New("fatal parse error")

	// ErrEncoding indicates text was decoded lossily after every charset failed.
	ErrEncoding = errors.New("encoding error")

	// ErrSchemaDrift indicates a record was extracted heuristically because no
	// known export schema matched.
	ErrSchemaDrift = errors.New("schema drift")

	// ErrNormalization indicates a record lacked both a timestamp and an identity.
	ErrNormalization = errors.New("normalization error")
)

// FormatError reports that a file could not be classified.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("unknown format: %s", e.Reason)
	}
	return fmt.Sprintf("%s: unknown format: %s", e.Path, e.Reason)
}

// Is matches ErrUnknownFormat.
func (e *FormatError) Is(target error) bool { return target == ErrUnknownFormat }

// ParseError reports a failure at a byte offset within a source stream.
// Fatal errors abort the file; recoverable errors skip one record.
type ParseError struct {
	Offset int64
	Reason string
	Fatal  bool
	Err    error
}

func (e *ParseError) Error() string {
	kind := "recoverable"
	if e.Fatal {
		kind = "fatal"
	}
	msg := fmt.Sprintf("%s parse error at offset %d: %s", kind, e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrParseFatal or ErrParseRecoverable depending on severity.
func (e *ParseError) Is(target error) bool {
	if e.Fatal {
		return target == ErrParseFatal
	}
	return target == ErrParseRecoverable
}

func (e *ParseError) Unwrap() error { return e.Err }

// RecoverableError builds a non-fatal ParseError.
func RecoverableError(offset int64, reason string, err error) *ParseError {
	return &ParseError{Offset: offset, Reason: reason, Err: err}
}

// FatalError builds a fatal ParseError.
func FatalError(offset int64, reason string, err error) *ParseError {
	return &ParseError{Offset: offset, Reason: reason, Fatal: true, Err: err}
}

// EncodingError reports text that had to be decoded lossily.
type EncodingError struct {
	Offset  int64
	Charset string
	Tried   []string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("lossy decode at offset %d: charset %q, tried %s",
		e.Offset, e.Charset, strings.Join(e.Tried, ","))
}

// Is matches ErrEncoding.
func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// SchemaDriftError reports a record extracted by the heuristic fallback.
type SchemaDriftError struct {
	Offset int64
	Path   string
	Keys   []string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("schema drift at offset %d (%s): unrecognised keys %s",
		e.Offset, e.Path, strings.Join(e.Keys, ","))
}

// Is matches ErrSchemaDrift.
func (e *SchemaDriftError) Is(target error) bool { return target == ErrSchemaDrift }

// NormalizationError reports a record dropped during canonicalisation.
type NormalizationError struct {
	Offset int64
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization failed at offset %d: %s", e.Offset, e.Reason)
}

// Is matches ErrNormalization.
func (e *NormalizationError) Is(target error) bool { return target == ErrNormalization }
