package domain

import (
	"slices"
	"time"
)

// SnapshotVersion is bumped whenever parsing or canonicalisation changes in a
// way that invalidates cached candidates.
const SnapshotVersion = 1

// Snapshot is the cached parse result of one source file, keyed by the
// SHA-256 of the file's content.
type Snapshot struct {
	ContentHash string
	Version     int
	// Settings is the ParseFingerprint of the settings the file was parsed with.
	Settings    string
	Path        string
	Format      Format
	CreatedAt   time.Time
	Candidates  []Candidate
	Report      FileReport
}

// IsCurrent returns true if the snapshot was produced by this version.
func (s *Snapshot) IsCurrent() bool {
	return s.Version == SnapshotVersion
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.Candidates = make([]Candidate, len(s.Candidates))
	for i := range s.Candidates {
		out.Candidates[i] = s.Candidates[i].Clone()
	}
	out.Report.Warnings = slices.Clone(s.Report.Warnings)
	return &out
}
