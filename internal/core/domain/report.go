package domain

import (
	"errors"
	"time"
)

// WarningKind classifies a non-fatal ingestion diagnostic.
type WarningKind string

// Warning kinds recorded in an IngestionReport.
const (
	WarningParse           WarningKind = "parse"
	WarningEncoding        WarningKind = "encoding"
	WarningCharsetFallback WarningKind = "charset_fallback"
	WarningSchemaDrift     WarningKind = "schema_drift"
	WarningNormalization   WarningKind = "normalization"
	WarningTruncated       WarningKind = "truncated"
	WarningDecode          WarningKind = "decode"
)

// Warning is a single diagnostic attached to a byte offset in a source file.
type Warning struct {
	Kind    WarningKind `json:"kind" yaml:"kind"`
	Offset  int64       `json:"offset" yaml:"offset"`
	Message string      `json:"message" yaml:"message"`
}

// WarningFromError classifies an ingestion error into a Warning.
func WarningFromError(err error) Warning {
	w := Warning{Kind: WarningParse, Message: err.Error()}

	var (
		parseErr *ParseError
		encErr   *EncodingError
		driftErr *SchemaDriftError
		normErr  *NormalizationError
	)
	switch {
	case errors.As(err, &parseErr):
		w.Offset = parseErr.Offset
	case errors.As(err, &encErr):
		w.Kind = WarningEncoding
		w.Offset = encErr.Offset
	case errors.As(err, &driftErr):
		w.Kind = WarningSchemaDrift
		w.Offset = driftErr.Offset
	case errors.As(err, &normErr):
		w.Kind = WarningNormalization
		w.Offset = normErr.Offset
	}
	return w
}

// FileReport is the per-file accounting of an ingestion run.
type FileReport struct {
	Path               string    `json:"path" yaml:"path"`
	ContentHash        string    `json:"content_hash,omitempty" yaml:"content_hash,omitempty"`
	Format             Format    `json:"format,omitempty" yaml:"format,omitempty"`
	Cached             bool      `json:"cached" yaml:"cached"`
	Ingested           int       `json:"ingested" yaml:"ingested"`
	SkippedRecoverable int       `json:"skipped_recoverable" yaml:"skipped_recoverable"`
	DroppedFatal       int       `json:"dropped_fatal" yaml:"dropped_fatal"`
	Duplicates         int       `json:"duplicates" yaml:"duplicates"`
	Warnings           []Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error              string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed returns true if the file as a whole could not be ingested.
func (r *FileReport) Failed() bool {
	return r.Error != ""
}

// AddWarning appends a diagnostic.
func (r *FileReport) AddWarning(w Warning) {
	r.Warnings = append(r.Warnings, w)
}

// IngestionReport summarises one ingestion run across all files.
type IngestionReport struct {
	RunID        string       `json:"run_id" yaml:"run_id"`
	StartedAt    time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time    `json:"finished_at" yaml:"finished_at"`
	Files        []FileReport `json:"files" yaml:"files"`
	Events       int          `json:"events" yaml:"events"`
	Participants int          `json:"participants" yaml:"participants"`
}

// Totals sums the per-file counters.
func (r *IngestionReport) Totals() FileReport {
	var t FileReport
	for i := range r.Files {
		f := &r.Files[i]
		t.Ingested += f.Ingested
		t.SkippedRecoverable += f.SkippedRecoverable
		t.DroppedFatal += f.DroppedFatal
		t.Duplicates += f.Duplicates
		t.Warnings = append(t.Warnings, f.Warnings...)
	}
	return t
}

// Duration returns how long the run took.
func (r *IngestionReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// IngestStatus reports the progress of an in-flight ingestion run.
type IngestStatus struct {
	Running   bool
	RunID     string
	Files     int
	FilesDone int
	Records   int
	Current   string
}
