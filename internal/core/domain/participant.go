package domain

import (
	"slices"
	"time"
)

// Participant is a resolved identity. Key is the stable identity key
// ("addr:<address>" or "name:<lowercased name>") and ID is derived from it.
type Participant struct {
	ID         string    `json:"id" yaml:"id"`
	Key        string    `json:"key" yaml:"key"`
	Address    string    `json:"address,omitempty" yaml:"address,omitempty"`
	Aliases    []string  `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	FirstSeen  time.Time `json:"first_seen" yaml:"first_seen"`
	LastSeen   time.Time `json:"last_seen" yaml:"last_seen"`
	EventCount int       `json:"event_count" yaml:"event_count"`
	Self       bool      `json:"self,omitempty" yaml:"self,omitempty"`
	Automated  bool      `json:"automated,omitempty" yaml:"automated,omitempty"`
}

// Clone returns a deep copy.
func (p Participant) Clone() Participant {
	p.Aliases = slices.Clone(p.Aliases)
	return p
}

// DisplayName returns the first alias, falling back to the address.
func (p *Participant) DisplayName() string {
	if len(p.Aliases) > 0 {
		return p.Aliases[0]
	}
	if p.Address != "" {
		return p.Address
	}
	return p.Key
}

// RelationshipEdge holds interaction counts between two participants.
// A sorts before B; AToB and BToA are directional and Total is their sum.
type RelationshipEdge struct {
	A                string    `json:"a" yaml:"a"`
	B                string    `json:"b" yaml:"b"`
	AToB             float64   `json:"a_to_b" yaml:"a_to_b"`
	BToA             float64   `json:"b_to_a" yaml:"b_to_a"`
	Total            float64   `json:"total" yaml:"total"`
	Events           int       `json:"events" yaml:"events"`
	ActiveDays       int       `json:"active_days" yaml:"active_days"`
	FirstInteraction time.Time `json:"first_interaction" yaml:"first_interaction"`
	LastInteraction  time.Time `json:"last_interaction" yaml:"last_interaction"`
}

// Other returns the counterpart of id on the edge.
func (e *RelationshipEdge) Other(id string) string {
	if e.A == id {
		return e.B
	}
	return e.A
}

// From returns the count of interactions directed from id to its counterpart.
func (e *RelationshipEdge) From(id string) float64 {
	if e.A == id {
		return e.AToB
	}
	return e.BToA
}

// OrderedPair returns a and b in edge order.
func OrderedPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// ParticipantMetric selects how participants are ranked.
type ParticipantMetric string

// Ranking metrics.
const (
	MetricInteractions ParticipantMetric = "interactions"
	MetricRecency      ParticipantMetric = "recency"
)

// IsValid returns true if the metric is recognised.
func (m ParticipantMetric) IsValid() bool {
	return m == MetricInteractions || m == MetricRecency
}

// RankedParticipant is a participant with its ranking score.
type RankedParticipant struct {
	Participant  Participant `json:"participant" yaml:"participant"`
	Interactions float64     `json:"interactions" yaml:"interactions"`
	Score        float64     `json:"score" yaml:"score"`
}

// TopOptions controls participant ranking.
type TopOptions struct {
	Metric           ParticipantMetric
	Limit            int
	IncludeSelf      bool
	IncludeAutomated bool
}

// RelationshipFilter selects edges for listing.
type RelationshipFilter struct {
	// Participant restricts edges to those touching this participant.
	Participant string

	// MinTotal is the minimum combined interaction count.
	MinTotal float64

	// MinActiveDays is the minimum number of distinct days with interaction.
	MinActiveDays int

	// Limit caps the number of edges returned (0 = unlimited).
	Limit int
}

// Tier classifies a counterpart by interaction volume.
type Tier string

// Relationship tiers.
const (
	TierCore       Tier = "core"
	TierRecurring  Tier = "recurring"
	TierPeripheral Tier = "peripheral"
)

// TierThresholds sets the minimum totals for the upper tiers.
type TierThresholds struct {
	Core      float64
	Recurring float64
}

// Classify returns the tier for a total.
func (t TierThresholds) Classify(total float64) Tier {
	switch {
	case total >= t.Core:
		return TierCore
	case total >= t.Recurring:
		return TierRecurring
	default:
		return TierPeripheral
	}
}

// Reciprocity classifies the balance of a relationship from the owner's side.
type Reciprocity string

// Reciprocity classes.
const (
	ReciprocityMostlyOwner Reciprocity = "mostly_owner"
	ReciprocityBalanced    Reciprocity = "balanced"
	ReciprocityMostlyThem  Reciprocity = "mostly_them"
	ReciprocityNoReceive   Reciprocity = "no_receive"
)

// ClassifyReciprocity compares interactions sent by the owner with those received.
func ClassifyReciprocity(sent, received float64) Reciprocity {
	if received == 0 {
		return ReciprocityNoReceive
	}
	switch r := sent / received; {
	case r > 1.5:
		return ReciprocityMostlyOwner
	case r < 0.67:
		return ReciprocityMostlyThem
	default:
		return ReciprocityBalanced
	}
}

// Counterpart summarises the archive owner's relationship with one
// participant. Sent counts owner-to-counterpart interactions.
type Counterpart struct {
	Participant Participant `json:"participant" yaml:"participant"`
	Sent        float64     `json:"sent" yaml:"sent"`
	Received    float64     `json:"received" yaml:"received"`
	Total       float64     `json:"total" yaml:"total"`
	First       time.Time   `json:"first" yaml:"first"`
	Last        time.Time   `json:"last" yaml:"last"`
	SpanDays    int         `json:"span_days" yaml:"span_days"`
	ActiveDays  int         `json:"active_days" yaml:"active_days"`
	Tier        Tier        `json:"tier" yaml:"tier"`
	Reciprocity Reciprocity `json:"reciprocity" yaml:"reciprocity"`
}
