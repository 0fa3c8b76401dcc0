package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// IngestSettings controls file discovery and parallelism.
type IngestSettings struct {
	// Workers is the number of files parsed concurrently.
	Workers int

	// Include is a list of glob patterns matched against file names when a
	// directory is ingested. Empty means every regular file.
	Include []string

	// MaxMessageBytes caps the body retained per mailbox message.
	// Longer messages are truncated with a warning.
	MaxMessageBytes int64

	// CacheEnabled reuses parse snapshots for files whose content is unchanged.
	CacheEnabled bool

	// DefaultChannel is used for flat JSON records that do not name a channel.
	DefaultChannel Channel

	// IncludeSystemRoles keeps system and tool turns from chat exports.
	IncludeSystemRoles bool
}

// IdentitySettings controls participant resolution.
type IdentitySettings struct {
	// Self lists addresses or "name:<name>" keys that identify the archive owner.
	Self []string

	// FoldGmail canonicalises gmail.com addresses by dropping dots and +tags.
	FoldGmail bool

	// AutomatedPrefixes are local-part prefixes marking automated senders.
	AutomatedPrefixes []string

	// AutomatedDomains are domains whose senders are automated.
	AutomatedDomains []string
}

// CharsetSettings lists charsets tried when a declared charset fails.
type CharsetSettings struct {
	Fallbacks []string
}

// EngineSettings holds every tunable of the ingestion and aggregation engine.
type EngineSettings struct {
	Ingest   IngestSettings
	Identity IdentitySettings
	Charset  CharsetSettings

	// DedupWindow is the maximum timestamp distance between two events with
	// identical content for them to be treated as duplicates.
	DedupWindow time.Duration

	// GroupWeight is added per pair for every pairwise combination of
	// participants on an event.
	GroupWeight float64

	// Tiers classifies counterparts by interaction total.
	Tiers TierThresholds

	Burst   BurstParams
	Segment SegmentParams
}

// DefaultEngineSettings returns settings with sensible defaults.
func DefaultEngineSettings() EngineSettings {
	return EngineSettings{
		Ingest: IngestSettings{
			Workers:         4,
			MaxMessageBytes: 8 << 20,
			CacheEnabled:    true,
			DefaultChannel:  ChannelChat,
		},
		Identity: IdentitySettings{
			FoldGmail: true,
			AutomatedPrefixes: []string{
				"no-reply", "noreply", "do-not-reply", "donotreply",
				"notifications", "notification", "support", "help",
				"mailer-daemon", "postmaster", "bounce",
			},
		},
		Charset: CharsetSettings{
			Fallbacks: []string{"windows-1252", "iso-8859-1"},
		},
		DedupWindow: 10 * time.Second,
		GroupWeight: 1.0,
		Tiers: TierThresholds{
			Core:      100,
			Recurring: 25,
		},
		Burst: BurstParams{
			Threshold:  2.0,
			Window:     0,
			MinHistory: 3,
			MinCount:   5,
		},
		Segment: SegmentParams{
			MaxGap:             6 * time.Hour,
			MinSimilarity:      0.1,
			RepresentativeSize: 20,
			KeywordsPerSegment: 10,
		},
	}
}

// ParseFingerprint identifies the settings that shape parsed candidates.
// Snapshots written under a different fingerprint are stale.
func (s *EngineSettings) ParseFingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "fold_gmail=%t\nmax_message_bytes=%d\ndefault_channel=%s\nsystem_roles=%t\ncharsets=%s\n",
		s.Identity.FoldGmail, s.Ingest.MaxMessageBytes, s.Ingest.DefaultChannel,
		s.Ingest.IncludeSystemRoles, strings.Join(s.Charset.Fallbacks, ","))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
