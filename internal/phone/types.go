package phone

// MessageType mirrors the Android SMS message box values carried by the
// phone daemon.
type MessageType int32

const (
	TypeAll    MessageType = 0
	TypeInbox  MessageType = 1
	TypeSent   MessageType = 2
	TypeDraft  MessageType = 3
	TypeOutbox MessageType = 4
)

// ConversationSummary is one entry of the conversation list view. Identity
// is ThreadID; a newer summary for the same thread replaces the older one.
type ConversationSummary struct {
	ThreadID       int64
	Addresses      []string
	LastMessage    string
	Timestamp      int64
	Unread         bool
	HasAttachments bool
}

// Message is one SMS/MMS message. Identity is UID within a device scope,
// paired with ThreadID. Display ordering is (Timestamp, UID).
type Message struct {
	UID         int64
	ThreadID    int64
	Body        string
	Addresses   []string
	Timestamp   int64
	Type        MessageType
	Read        bool
	SubID       int64
	Attachments []Attachment
}

// Attachment is a reference to an MMS attachment part held by the phone.
type Attachment struct {
	PartID           int64
	MimeType         string
	Base64Thumbnail  string
	UniqueIdentifier string
}

// Inbound reports whether the message was received from another party.
func (m *Message) Inbound() bool {
	return m.Type == TypeInbox
}

// PrimaryAddress returns the first address, or empty if none.
func (m *Message) PrimaryAddress() string {
	if len(m.Addresses) == 0 {
		return ""
	}
	return m.Addresses[0]
}

// Summary collapses a message into the conversation summary it implies.
func (m *Message) Summary() ConversationSummary {
	return ConversationSummary{
		ThreadID:       m.ThreadID,
		Addresses:      m.Addresses,
		LastMessage:    m.Body,
		Timestamp:      m.Timestamp,
		Unread:         !m.Read,
		HasAttachments: len(m.Attachments) > 0,
	}
}
