// Package normaliser turns raw records into canonical events.
//
// Canonicalisation runs per file and holds no shared state, so files can be
// processed concurrently. The Normaliser then consumes the merged,
// timestamp-ordered candidate stream sequentially to resolve participants
// and drop duplicates.
package normaliser

import (
	"crypto/sha256"
	"encoding/hex"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
	"github.com/custodia-labs/archeo/internal/terms"
)

// Canonicaliser converts the raw records of one source file into candidates.
type Canonicaliser struct {
	path      string
	shard     int
	foldGmail bool
	terms     *terms.Extractor
}

// Option configures a Canonicaliser.
type Option func(*Canonicaliser)

// WithGmailFolding enables gmail address canonicalisation.
func WithGmailFolding(fold bool) Option {
	return func(c *Canonicaliser) {
		c.foldGmail = fold
	}
}

// WithTermExtractor replaces the default term extractor.
func WithTermExtractor(e *terms.Extractor) Option {
	return func(c *Canonicaliser) {
		if e != nil {
			c.terms = e
		}
	}
}

// NewCanonicaliser creates a canonicaliser for the file at path, which is
// the shard-th file of the ingestion run.
func NewCanonicaliser(path string, shard int, opts ...Option) *Canonicaliser {
	c := &Canonicaliser{
		path:  path,
		shard: shard,
		terms: terms.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Canonicalise builds a candidate from a raw record. seq is the record's
// position within the file. A record with neither a usable timestamp nor a
// usable identity fails with a *domain.NormalizationError.
func (c *Canonicaliser) Canonicalise(rec *domain.RawRecord, seq int) (*domain.Candidate, error) {
	ts, dated := recordTime(rec)

	var ids []domain.Identity
	senders := rec.Values(domain.FieldFrom)
	if len(senders) == 0 {
		senders = rec.Values(domain.FieldEnvelopeFrom)
	}
	ids = append(ids, parseIdentities(senders, domain.RoleSender, rec.Format, c.foldGmail)...)
	ids = append(ids, parseIdentities(rec.Values(domain.FieldTo), domain.RoleRecipient, rec.Format, c.foldGmail)...)
	ids = append(ids, parseIdentities(rec.Values(domain.FieldCc), domain.RoleCc, rec.Format, c.foldGmail)...)
	ids = append(ids, parseIdentities(rec.Values(domain.FieldBcc), domain.RoleBcc, rec.Format, c.foldGmail)...)

	if !dated && len(ids) == 0 {
		return nil, &domain.NormalizationError{
			Offset: rec.Offset,
			Reason: "record has neither a usable timestamp nor a usable identity",
		}
	}

	channel := rec.Channel
	if !channel.IsValid() {
		channel = domain.ChannelChat
	}

	subject := rec.Get(domain.FieldSubject)
	text := subject + "\n" + rec.Body

	cand := &domain.Candidate{
		Shard:       c.shard,
		Seq:         seq,
		Timestamp:   ts,
		Undated:     !dated,
		Channel:     channel,
		Identities:  ids,
		ContentHash: ContentHash(channel, ids, subject, rec.Body),
		Terms:       c.terms.Extract(text),
		Content: domain.ContentRef{
			Path:    c.path,
			Offset:  rec.Offset,
			Length:  rec.Length,
			Pointer: rec.Pointer,
		},
		Metadata:   metadata(rec),
		Confidence: rec.Confidence,
	}
	if !dated {
		cand.Metadata[domain.MetaUndated] = "true"
	}
	return cand, nil
}

// ContentHash is the hex SHA-256 of the channel, the sender and the
// whitespace- and case-normalised subject and body.
func ContentHash(channel domain.Channel, ids []domain.Identity, subject, body string) string {
	var sender string
	for _, id := range ids {
		if id.Role == domain.RoleSender {
			sender = IdentityKey(id)
			break
		}
	}
	h := sha256.New()
	h.Write([]byte(channel))
	h.Write([]byte{0})
	h.Write([]byte(sender))
	h.Write([]byte{0})
	h.Write([]byte(terms.Normalise(subject + "\n" + body)))
	return hex.EncodeToString(h.Sum(nil))
}

// ResolveThreads sets the thread id of each mail candidate to the root of
// its message's thread. It runs once the whole file has been parsed, when
// every reference is known.
func ResolveThreads(cands []domain.Candidate, r driven.ThreadResolver) {
	if r == nil {
		return
	}
	for i := range cands {
		id := cands[i].Metadata[domain.MetaMessageID]
		if id == "" {
			continue
		}
		if root := r.ThreadRoot(id); root != "" {
			cands[i].Metadata[domain.MetaThreadID] = root
		}
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"2 Jan 2006 15:04:05 -0700",
	time.ANSIC,
}

// recordTime returns the record's timestamp in UTC. Without one it returns
// the Unix epoch and false.
func recordTime(rec *domain.RawRecord) (time.Time, bool) {
	for _, field := range []string{domain.FieldDate, domain.FieldEnvelopeDate} {
		if t, ok := parseDate(rec.Get(field)); ok {
			return t, true
		}
	}
	return time.Unix(0, 0).UTC(), false
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := mail.ParseDate(s); err == nil {
		return t.UTC(), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	// Some clients append a zone comment that the parser rejects.
	if i := strings.LastIndexByte(s, '('); i > 0 {
		return parseDate(s[:i])
	}
	return time.Time{}, false
}

func metadata(rec *domain.RawRecord) map[string]string {
	m := make(map[string]string)
	set := func(key, field string) {
		if v := rec.Get(field); v != "" {
			m[key] = v
		}
	}
	set(domain.MetaSubject, domain.FieldSubject)
	set(domain.MetaMessageID, domain.FieldMessageID)
	set(domain.MetaParentID, domain.FieldInReplyTo)
	set(domain.MetaConversation, domain.FieldConversation)
	set(domain.MetaBranch, domain.FieldBranch)
	set(domain.MetaSequence, domain.FieldSequence)
	set(domain.MetaRole, domain.FieldRole)
	set(domain.MetaURL, domain.FieldURL)
	set(domain.MetaProduct, domain.FieldProduct)
	set(domain.MetaSchema, domain.FieldSchema)
	if labels := rec.Values(domain.FieldLabels); len(labels) > 0 {
		m[domain.MetaLabels] = strings.Join(labels, ",")
	}
	if rec.Confidence > 0 && rec.Confidence < 1 {
		m[domain.MetaConfidence] = strconv.FormatFloat(rec.Confidence, 'f', 2, 64)
	}
	return m
}
