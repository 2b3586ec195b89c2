package store

import (
	"database/sql"
	"time"
)

// UpsertConversation inserts or updates a conversation row. Stale writes
// are rejected at the SQL level: an existing row with a newer timestamp
// wins.
func (db *DB) UpsertConversation(c *Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (thread_id, addresses, last_message, timestamp, unread, has_attachments, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			addresses = excluded.addresses,
			last_message = excluded.last_message,
			timestamp = excluded.timestamp,
			unread = excluded.unread,
			has_attachments = excluded.has_attachments,
			updated_at = excluded.updated_at
		WHERE excluded.timestamp >= conversations.timestamp`,
		c.ThreadID, c.Addresses, c.LastMessage, c.Timestamp, c.Unread, c.HasAttachments, now)
	return err
}

// ListConversations returns conversations sorted by last activity
// descending.
func (db *DB) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT thread_id, addresses, last_message, timestamp, unread, has_attachments
		FROM conversations
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ThreadID, &c.Addresses, &c.LastMessage, &c.Timestamp, &c.Unread, &c.HasAttachments); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a single conversation, or nil when absent.
func (db *DB) GetConversation(threadID int64) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT thread_id, addresses, last_message, timestamp, unread, has_attachments
		FROM conversations
		WHERE thread_id = ?`, threadID).
		Scan(&c.ThreadID, &c.Addresses, &c.LastMessage, &c.Timestamp, &c.Unread, &c.HasAttachments)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
