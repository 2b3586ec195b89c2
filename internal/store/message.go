package store

import "time"

// UpsertMessage inserts or updates a message (idempotent on thread_id + uid).
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (thread_id, uid, body, addresses, timestamp, type, read, sub_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id, uid) DO UPDATE SET
			body = excluded.body,
			read = excluded.read,
			type = excluded.type`,
		m.ThreadID, m.UID, m.Body, m.Addresses, m.Timestamp, m.Type, m.Read, m.SubID, now)
	return err
}

// ListMessages returns messages for a thread using keyset pagination by
// timestamp, newest first.
func (db *DB) ListMessages(threadID, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, thread_id, uid, body, addresses, timestamp, type, read, sub_id
		FROM messages
		WHERE thread_id = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?`, threadID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.UID, &m.Body, &m.Addresses, &m.Timestamp, &m.Type, &m.Read, &m.SubID); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
