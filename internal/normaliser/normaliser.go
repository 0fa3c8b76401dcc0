package normaliser

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

// participantNamespace scopes participant ids derived from identity keys.
var participantNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://archeo.dev/participant"))

// ParticipantID returns the stable id of an identity key.
func ParticipantID(key string) string {
	return uuid.NewSHA1(participantNamespace, []byte(key)).String()
}

// EventID derives an event id from its content hash and timestamp.
func EventID(contentHash string, ts time.Time) string {
	sum := sha256.Sum256([]byte(contentHash + "|" + strconv.FormatInt(ts.UnixNano(), 10)))
	return hex.EncodeToString(sum[:])[:32]
}

// Normaliser resolves identities and removes duplicates from a merged
// candidate stream. It is not safe for concurrent use.
type Normaliser struct {
	settings domain.IdentitySettings
	window   time.Duration
	self     map[string]bool

	participants map[string]*domain.Participant
	order        []string

	// aliases maps a lowercased display name to the address keys using it.
	aliases map[string]map[string]struct{}

	// lastKept is the timestamp of the last kept event per content hash.
	lastKept map[string]time.Time

	events     []domain.CanonicalEvent
	ingested   map[int]int
	duplicates map[int]int
}

// New creates a Normaliser.
func New(identity domain.IdentitySettings, dedupWindow time.Duration) *Normaliser {
	if dedupWindow < 0 {
		dedupWindow = 0
	}
	return &Normaliser{
		settings:     identity,
		window:       dedupWindow,
		self:         selfKeys(identity.Self, identity.FoldGmail),
		participants: make(map[string]*domain.Participant),
		aliases:      make(map[string]map[string]struct{}),
		lastKept:     make(map[string]time.Time),
		ingested:     make(map[int]int),
		duplicates:   make(map[int]int),
	}
}

// Add consumes the next candidate. It returns the new event, or false when
// the candidate duplicates an event kept within the dedup window.
func (n *Normaliser) Add(c *domain.Candidate) (*domain.CanonicalEvent, bool) {
	if last, ok := n.lastKept[c.ContentHash]; ok && absDuration(c.Timestamp.Sub(last)) <= n.window {
		n.duplicates[c.Shard]++
		return nil, false
	}
	n.lastKept[c.ContentHash] = c.Timestamp

	ev := domain.CanonicalEvent{
		ID:          EventID(c.ContentHash, c.Timestamp),
		Timestamp:   c.Timestamp.UTC(),
		Channel:     c.Channel,
		Content:     c.Content,
		ContentHash: c.ContentHash,
		Terms:       c.Terms,
		Metadata:    maps.Clone(c.Metadata),
	}
	seen := make(map[string]bool, len(c.Identities))
	for _, id := range c.Identities {
		p := n.resolve(id)
		if p == nil || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		n.touch(p, c)
		ev.Participants = append(ev.Participants, p.ID)
	}

	n.events = append(n.events, ev)
	n.ingested[c.Shard]++
	return &n.events[len(n.events)-1], true
}

// resolve finds or creates the participant of an identity. Name-only
// identities fold into the one address participant already known by that
// name; distinct participants never merge otherwise. A name seen before its
// address keeps its own participant, so that history stays split.
func (n *Normaliser) resolve(id domain.Identity) *domain.Participant {
	if id.Address == "" {
		name := normaliseName(id.Name)
		if name == "" {
			return nil
		}
		if keys := n.aliases[name]; len(keys) == 1 {
			for key := range keys {
				return n.participants[key]
			}
		}
	}

	key := IdentityKey(id)
	if key == "" {
		return nil
	}
	p, ok := n.participants[key]
	if !ok {
		p = &domain.Participant{
			ID:      ParticipantID(key),
			Key:     key,
			Address: id.Address,
			Self:    n.self[key],
		}
		if id.Address != "" {
			p.Automated = isAutomated(id.Address, n.settings.AutomatedPrefixes, n.settings.AutomatedDomains)
		}
		n.participants[key] = p
		n.order = append(n.order, key)
	}
	n.addAlias(p, id.Name)
	return p
}

func (n *Normaliser) addAlias(p *domain.Participant, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	for _, a := range p.Aliases {
		if strings.EqualFold(a, name) {
			return
		}
	}
	p.Aliases = append(p.Aliases, name)
	if n.self[keyName+normaliseName(name)] {
		p.Self = true
	}
	if p.Address == "" {
		return
	}
	lower := normaliseName(name)
	keys, ok := n.aliases[lower]
	if !ok {
		keys = make(map[string]struct{})
		n.aliases[lower] = keys
	}
	keys[p.Key] = struct{}{}
}

func (n *Normaliser) touch(p *domain.Participant, c *domain.Candidate) {
	p.EventCount++
	if c.Undated {
		return
	}
	if p.FirstSeen.IsZero() || c.Timestamp.Before(p.FirstSeen) {
		p.FirstSeen = c.Timestamp.UTC()
	}
	if c.Timestamp.After(p.LastSeen) {
		p.LastSeen = c.Timestamp.UTC()
	}
}

// Events returns the kept events in the order they were added.
func (n *Normaliser) Events() []domain.CanonicalEvent {
	return n.events
}

// Participants returns every participant in order of first appearance.
func (n *Normaliser) Participants() []domain.Participant {
	out := make([]domain.Participant, 0, len(n.order))
	for _, key := range n.order {
		out = append(out, n.participants[key].Clone())
	}
	return out
}

// Ingested returns the number of events kept from a shard.
func (n *Normaliser) Ingested(shard int) int {
	return n.ingested[shard]
}

// Duplicates returns the number of candidates of a shard dropped as duplicates.
func (n *Normaliser) Duplicates(shard int) int {
	return n.duplicates[shard]
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
