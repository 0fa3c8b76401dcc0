package domain

import "net/textproto"

// Format identifies the container format of a source file.
type Format string

// Supported source formats.
const (
	// FormatMailbox is a Unix mailbox of concatenated RFC 5322 messages.
	FormatMailbox Format = "mbox"

	// FormatJSON is a JSON export of chats, searches or flat records.
	FormatJSON Format = "json"
)

// Channel is the communication medium an event belongs to.
type Channel string

// Known channels.
const (
	ChannelMail   Channel = "mail"
	ChannelSearch Channel = "search"
	ChannelChat   Channel = "chat"
)

// IsValid returns true if the channel is recognised.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelMail, ChannelSearch, ChannelChat:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (c Channel) String() string {
	return string(c)
}

// AllChannels returns every known channel in a stable order.
func AllChannels() []Channel {
	return []Channel{ChannelMail, ChannelSearch, ChannelChat}
}

// Record field names. Parsers of every format fill the same header-style
// keys so the normaliser treats mail, chat and search entries alike.
const (
	FieldFrom         = "From"
	FieldTo           = "To"
	FieldCc           = "Cc"
	FieldBcc          = "Bcc"
	FieldDate         = "Date"
	FieldSubject      = "Subject"
	FieldMessageID    = "Message-Id"
	FieldInReplyTo    = "In-Reply-To"
	FieldReferences   = "References"
	FieldLabels       = "X-Gmail-Labels"
	FieldEnvelopeFrom = "X-Envelope-From"
	FieldEnvelopeDate = "X-Envelope-Date"
	FieldThread       = "X-Thread-Id"
	FieldConversation = "X-Conversation-Id"
	FieldBranch       = "X-Branch"
	FieldSequence     = "X-Sequence"
	FieldRole         = "X-Role"
	FieldURL          = "X-Url"
	FieldProduct      = "X-Product"
	FieldSchema       = "X-Schema"
	FieldFallbackDate = "X-Fallback-Date"
)

// RawRecord is one extracted unit from a source file, before normalisation.
type RawRecord struct {
	// Channel is the medium the record belongs to.
	Channel Channel

	// Format is the container the record was read from.
	Format Format

	// Offset and Length locate the record's bytes in the source file.
	Offset int64
	Length int64

	// Pointer locates the record inside a JSON element ("/" separated).
	Pointer string

	// Fields holds header-style values keyed by the Field* constants.
	Fields map[string][]string

	// Body is the decoded UTF-8 text content.
	Body string

	// Confidence is 1 for schema-matched records and below 1 for heuristic ones.
	Confidence float64

	// Warnings collected while producing this record.
	Warnings []Warning
}

// Get returns the first value for a field, or "".
func (r *RawRecord) Get(field string) string {
	if r.Fields == nil {
		return ""
	}
	v := r.Fields[textproto.CanonicalMIMEHeaderKey(field)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Values returns every value for a field.
func (r *RawRecord) Values(field string) []string {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[textproto.CanonicalMIMEHeaderKey(field)]
}

// Set replaces a field's values. Empty values are ignored.
func (r *RawRecord) Set(field string, values ...string) {
	kept := values[:0:0]
	for _, v := range values {
		if v != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return
	}
	if r.Fields == nil {
		r.Fields = make(map[string][]string)
	}
	r.Fields[textproto.CanonicalMIMEHeaderKey(field)] = kept
}
