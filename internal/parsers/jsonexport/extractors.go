package jsonexport

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
)

// Schema identifiers recorded on extracted records.
const (
	SchemaChatMapping  = "chat.mapping.v2"
	SchemaChatMessages = "chat.messages.v1"
	SchemaSearch       = "activity.search.v1"
	SchemaFlat         = "record.flat.v1"
	SchemaHeuristic    = "heuristic"
)

// Extractor recognises and extracts one export schema.
type Extractor interface {
	// Schema returns the schema identifier.
	Schema() string

	// Match reports whether v has this schema's shape.
	Match(v gjson.Result) bool

	// Extract returns the records of a matching node. Errors are
	// recoverable and describe individual entries that were skipped.
	Extract(n node, opts driven.ParserOptions) ([]*domain.RawRecord, []error)
}

// DefaultExtractors returns the built-in extractors in priority order.
func DefaultExtractors() []Extractor {
	return []Extractor{
		mappingExtractor{},
		messagesExtractor{},
		searchExtractor{},
		flatExtractor{},
	}
}

func setDate(rec *domain.RawRecord, t time.Time) {
	if !t.IsZero() {
		rec.Set(domain.FieldDate, t.Format(time.RFC3339Nano))
	}
}

// counterpart names the other side of a two-party chat role.
func counterpart(role string) string {
	switch role {
	case "user":
		return "assistant"
	case "assistant":
		return "user"
	default:
		return ""
	}
}

func skippedRole(role string, opts driven.ParserOptions) bool {
	if opts.IncludeSystemRoles {
		return false
	}
	switch role {
	case "system", "tool", "function":
		return true
	default:
		return false
	}
}

// mappingExtractor handles conversations stored as a node mapping with
// parent and children links, where edits and regenerations form branches.
type mappingExtractor struct{}

func (mappingExtractor) Schema() string { return SchemaChatMapping }

func (mappingExtractor) Match(v gjson.Result) bool {
	return v.Get("mapping").IsObject()
}

func (e mappingExtractor) Extract(n node, opts driven.ParserOptions) ([]*domain.RawRecord, []error) {
	conv := n.value
	title := firstString(conv, "title")
	convID := firstString(conv, "conversation_id", "id")
	convCreated, _ := firstTime(conv, "create_time", "createTime")

	nodes := make(map[string]*treeNode)
	messages := make(map[string]gjson.Result)
	conv.Get("mapping").ForEach(func(k, v gjson.Result) bool {
		id := k.String()
		tn := &treeNode{id: id, parent: v.Get("parent").String()}
		v.Get("children").ForEach(func(_, c gjson.Result) bool {
			tn.children = append(tn.children, c.String())
			return true
		})
		msg := v.Get("message")
		tn.created, _ = firstTime(msg, "create_time", "createTime")
		if tn.created.IsZero() {
			tn.created, _ = firstTime(v, "create_time")
		}
		nodes[id] = tn
		if msg.IsObject() {
			messages[id] = msg
		}
		return true
	})

	var records []*domain.RawRecord
	for _, vis := range flatten(nodes) {
		msg, ok := messages[vis.id]
		if !ok {
			continue
		}
		role := firstString(msg, "author.role")
		if role == "" {
			role = firstString(msg, "author")
		}
		if skippedRole(role, opts) {
			continue
		}
		text := strings.TrimSpace(contentText(msg.Get("content")))
		if text == "" {
			continue
		}

		rec := n.record(domain.ChannelChat, e.Schema(), "mapping/"+vis.id)
		author := firstString(msg, "author.name")
		if author == "" {
			author = role
		}
		rec.Set(domain.FieldFrom, author)
		rec.Set(domain.FieldTo, counterpart(role))
		if ts := nodes[vis.id].created; !ts.IsZero() {
			setDate(rec, ts)
		} else if !convCreated.IsZero() {
			setDate(rec, convCreated)
			rec.Set(domain.FieldFallbackDate, "true")
		}
		rec.Set(domain.FieldSubject, title)
		rec.Set(domain.FieldMessageID, vis.id)
		rec.Set(domain.FieldInReplyTo, vis.parent)
		rec.Set(domain.FieldConversation, convID)
		rec.Set(domain.FieldBranch, strconv.Itoa(vis.branch))
		rec.Set(domain.FieldSequence, strconv.Itoa(vis.seq))
		rec.Set(domain.FieldRole, role)
		rec.Body = text
		records = append(records, rec)
	}
	return records, nil
}

// messagesExtractor handles linear message lists, either role-authored
// turns or messenger threads with sender names and a participant list.
type messagesExtractor struct{}

func (messagesExtractor) Schema() string { return SchemaChatMessages }

func (messagesExtractor) Match(v gjson.Result) bool {
	msgs := v.Get("messages")
	if !msgs.IsArray() {
		return false
	}
	first := msgs.Get("0")
	if !first.Exists() {
		return v.Get("participants").Exists() || v.Get("title").Exists()
	}
	return first.Get("sender_name").Exists() || first.Get("author").Exists() ||
		first.Get("sender").Exists() || first.Get("content").Exists()
}

func (e messagesExtractor) Extract(n node, opts driven.ParserOptions) ([]*domain.RawRecord, []error) {
	conv := n.value
	title := fixMojibake(firstString(conv, "title", "thread_name"))
	convID := firstString(conv, "conversation_id", "thread_path", "id")
	participants := stringList(conv.Get("participants"))
	for i := range participants {
		participants[i] = fixMojibake(participants[i])
	}

	var (
		records []*domain.RawRecord
		errs    []error
	)
	seq := 0
	n.children(func(key string, msgs node) bool {
		if key != "messages" {
			return true
		}
		msgs.children(func(idx string, m node) bool {
			v := m.value
			role := firstString(v, "author.role", "role")
			if skippedRole(role, opts) {
				return true
			}
			sender := fixMojibake(firstString(v, "sender_name", "author.name", "sender", "author", "from"))
			if sender == "" {
				sender = role
			}
			text := fixMojibake(strings.TrimSpace(contentText(v.Get("content"))))
			if text == "" {
				text = fixMojibake(firstString(v, "text", "body"))
			}
			ts, hasTime := firstTime(v, "timestamp_ms", "create_time", "createTime", "timestamp", "time", "date")
			if !hasTime && text == "" {
				errs = append(errs, domain.RecoverableError(m.offset, "message has neither timestamp nor text", nil))
				return true
			}

			rec := n.record(domain.ChannelChat, e.Schema(), "messages/"+idx)
			rec.Set(domain.FieldFrom, sender)
			var to []string
			for _, p := range participants {
				if p != sender {
					to = append(to, p)
				}
			}
			if len(to) == 0 {
				to = append(to, counterpart(role))
			}
			rec.Set(domain.FieldTo, to...)
			setDate(rec, ts)
			rec.Set(domain.FieldSubject, title)
			rec.Set(domain.FieldConversation, convID)
			rec.Set(domain.FieldMessageID, firstString(v, "id"))
			rec.Set(domain.FieldSequence, strconv.Itoa(seq))
			rec.Set(domain.FieldRole, role)
			rec.Body = text
			records = append(records, rec)
			seq++
			return true
		})
		return false
	})
	return records, errs
}

// searchExtractor handles activity entries with a header, title and time.
type searchExtractor struct{}

func (searchExtractor) Schema() string { return SchemaSearch }

func (searchExtractor) Match(v gjson.Result) bool {
	return v.Get("title").Exists() && v.Get("time").Exists() &&
		(v.Get("header").Exists() || v.Get("products").Exists())
}

var searchPrefixes = []string{"Searched for ", "Visited ", "Viewed ", "Watched "}

func (e searchExtractor) Extract(n node, _ driven.ParserOptions) ([]*domain.RawRecord, []error) {
	v := n.value
	ts, ok := parseTime(v.Get("time"))
	if !ok {
		return nil, []error{domain.RecoverableError(n.offset, "activity entry has an unparseable time", nil)}
	}
	title := firstString(v, "title")
	query := title
	for _, p := range searchPrefixes {
		if strings.HasPrefix(query, p) {
			query = strings.TrimPrefix(query, p)
			break
		}
	}

	rec := n.record(domain.ChannelSearch, e.Schema(), "")
	setDate(rec, ts)
	rec.Set(domain.FieldSubject, title)
	rec.Set(domain.FieldURL, firstString(v, "titleUrl", "url"))
	product := firstString(v, "header")
	if product == "" {
		product = firstString(v, "products.0")
	}
	rec.Set(domain.FieldProduct, product)
	rec.Body = query
	return []*domain.RawRecord{rec}, nil
}

// flatExtractor handles flat records with a timestamp and text.
type flatExtractor struct{}

func (flatExtractor) Schema() string { return SchemaFlat }

func (flatExtractor) Match(v gjson.Result) bool {
	return v.Get("timestamp").Exists() && v.Get("text").Exists()
}

func (e flatExtractor) Extract(n node, opts driven.ParserOptions) ([]*domain.RawRecord, []error) {
	v := n.value
	channel := domain.Channel(firstString(v, "channel"))
	if !channel.IsValid() {
		channel = defaultChannel(opts)
	}
	rec := n.record(channel, e.Schema(), "")
	if ts, ok := parseTime(v.Get("timestamp")); ok {
		setDate(rec, ts)
	}
	rec.Set(domain.FieldFrom, firstString(v, "author", "sender", "from"))
	rec.Set(domain.FieldTo, stringList(v.Get("to"))...)
	rec.Set(domain.FieldSubject, firstString(v, "title", "subject"))
	rec.Set(domain.FieldMessageID, firstString(v, "id"))
	rec.Body = firstString(v, "text")
	return []*domain.RawRecord{rec}, nil
}

func defaultChannel(opts driven.ParserOptions) domain.Channel {
	if opts.DefaultChannel.IsValid() {
		return opts.DefaultChannel
	}
	return domain.ChannelChat
}
