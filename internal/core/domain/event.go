package domain

import (
	"maps"
	"slices"
	"time"
)

// Role describes how an identity took part in a record.
type Role string

// Identity roles, in the order participants are listed on an event.
const (
	RoleSender    Role = "sender"
	RoleRecipient Role = "recipient"
	RoleCc        Role = "cc"
	RoleBcc       Role = "bcc"
)

// Identity is an unresolved participant reference extracted from a record.
// Address is normalised; Name is the display name as written.
type Identity struct {
	Address string `json:"address,omitempty"`
	Name    string `json:"name,omitempty"`
	Role    Role   `json:"role"`
}

// IsZero returns true if the identity carries neither address nor name.
func (i Identity) IsZero() bool {
	return i.Address == "" && i.Name == ""
}

// ContentRef locates an event's content in its source file so it can be
// re-read on demand instead of being held in memory.
type ContentRef struct {
	Path    string `json:"path"`
	Offset  int64  `json:"offset"`
	Length  int64  `json:"length"`
	Pointer string `json:"pointer,omitempty"`
}

// Candidate is a canonicalised record that has not yet been through identity
// resolution or deduplication. Candidates are produced per file and merged
// into a single timestamp-ordered stream.
type Candidate struct {
	// Shard is the index of the source file within the ingestion run.
	Shard int `json:"-"`

	// Seq is the record's position within its source file.
	Seq int `json:"seq"`

	Timestamp   time.Time         `json:"timestamp"`
	Undated     bool              `json:"undated,omitempty"`
	Channel     Channel           `json:"channel"`
	Identities  []Identity        `json:"identities,omitempty"`
	ContentHash string            `json:"content_hash"`
	Terms       []string          `json:"terms,omitempty"`
	Content     ContentRef        `json:"content"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Confidence  float64           `json:"confidence"`
}

// Clone returns a deep copy.
func (c Candidate) Clone() Candidate {
	c.Identities = slices.Clone(c.Identities)
	c.Terms = slices.Clone(c.Terms)
	c.Metadata = maps.Clone(c.Metadata)
	return c
}

// Before orders candidates by timestamp, then file, then record order.
func (c *Candidate) Before(o *Candidate) bool {
	if !c.Timestamp.Equal(o.Timestamp) {
		return c.Timestamp.Before(o.Timestamp)
	}
	if c.Shard != o.Shard {
		return c.Shard < o.Shard
	}
	return c.Seq < o.Seq
}

// Metadata keys set on events.
const (
	MetaSubject      = "subject"
	MetaMessageID    = "message_id"
	MetaThreadID     = "thread_id"
	MetaLabels       = "labels"
	MetaConversation = "conversation_id"
	MetaBranch       = "branch"
	MetaSequence     = "sequence"
	MetaParentID     = "parent_id"
	MetaRole         = "role"
	MetaURL          = "url"
	MetaProduct      = "product"
	MetaSchema       = "schema"
	MetaUndated      = "undated"
	MetaConfidence   = "confidence"
)

// CanonicalEvent is a deduplicated unit of activity. Events are created once
// by the normaliser and never mutated; accessors hand out copies.
type CanonicalEvent struct {
	ID           string            `json:"id" yaml:"id"`
	Timestamp    time.Time         `json:"timestamp" yaml:"timestamp"`
	Channel      Channel           `json:"channel" yaml:"channel"`
	Participants []string          `json:"participants" yaml:"participants"`
	Content      ContentRef        `json:"content" yaml:"content"`
	ContentHash  string            `json:"content_hash" yaml:"content_hash"`
	Terms        []string          `json:"-" yaml:"-"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Clone returns a deep copy.
func (e CanonicalEvent) Clone() CanonicalEvent {
	e.Participants = slices.Clone(e.Participants)
	e.Terms = slices.Clone(e.Terms)
	e.Metadata = maps.Clone(e.Metadata)
	return e
}

// Sender returns the first participant, which is the sender for mail and
// the author for chat, or "" when the event has no participants.
func (e *CanonicalEvent) Sender() string {
	if len(e.Participants) == 0 {
		return ""
	}
	return e.Participants[0]
}

// HasParticipant returns true if id took part in the event.
func (e *CanonicalEvent) HasParticipant(id string) bool {
	return slices.Contains(e.Participants, id)
}
