package store

import (
	"strings"

	"github.com/mvasconc/phonelink/internal/phone"
)

// Conversation is an archived conversation summary. Addresses are stored
// joined with "," since phone numbers never contain commas.
type Conversation struct {
	ThreadID       int64
	Addresses      string
	LastMessage    string
	Timestamp      int64
	Unread         bool
	HasAttachments bool
}

// Message is an archived message row.
type Message struct {
	ID        int64
	ThreadID  int64
	UID       int64
	Body      string
	Addresses string
	Timestamp int64
	Type      int32
	Read      bool
	SubID     int64
}

// Contact is an archived address-to-name mapping.
type Contact struct {
	Address string
	Name    string
}

// OutboxEntry is a pending outgoing message. ThreadID 0 with a non-empty
// Address means a new-conversation send.
type OutboxEntry struct {
	ID           int64
	ClientID     string
	ThreadID     int64
	Address      string
	Body         string
	Status       string // queued, sending, sent, failed
	ErrorMessage string
}

// ConversationFromSummary converts a live summary into its archive row.
func ConversationFromSummary(c phone.ConversationSummary) *Conversation {
	return &Conversation{
		ThreadID:       c.ThreadID,
		Addresses:      strings.Join(c.Addresses, ","),
		LastMessage:    c.LastMessage,
		Timestamp:      c.Timestamp,
		Unread:         c.Unread,
		HasAttachments: c.HasAttachments,
	}
}

// Summary converts an archive row back into a live summary.
func (c *Conversation) Summary() phone.ConversationSummary {
	return phone.ConversationSummary{
		ThreadID:       c.ThreadID,
		Addresses:      splitAddresses(c.Addresses),
		LastMessage:    c.LastMessage,
		Timestamp:      c.Timestamp,
		Unread:         c.Unread,
		HasAttachments: c.HasAttachments,
	}
}

// MessageFromPhone converts a live message into its archive row.
// Attachment payloads are not archived, only the message text and metadata.
func MessageFromPhone(m *phone.Message) *Message {
	return &Message{
		ThreadID:  m.ThreadID,
		UID:       m.UID,
		Body:      m.Body,
		Addresses: strings.Join(m.Addresses, ","),
		Timestamp: m.Timestamp,
		Type:      int32(m.Type),
		Read:      m.Read,
		SubID:     m.SubID,
	}
}

// Phone converts an archive row back into a live message.
func (m *Message) Phone() phone.Message {
	return phone.Message{
		UID:       m.UID,
		ThreadID:  m.ThreadID,
		Body:      m.Body,
		Addresses: splitAddresses(m.Addresses),
		Timestamp: m.Timestamp,
		Type:      phone.MessageType(m.Type),
		Read:      m.Read,
		SubID:     m.SubID,
	}
}

func splitAddresses(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
