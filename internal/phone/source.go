package phone

import "context"

// Source is the boundary to the external phone daemon for one connection.
// Snapshot reads are synchronous against the daemon's local cache; every
// Request* call is fire-and-forget, with effects observable only through
// bus signals, if at all. None of the requests carry a completion promise.
type Source interface {
	// SnapshotConversations returns whatever conversation summaries the
	// daemon currently caches for the device. No freshness guarantee.
	SnapshotConversations(ctx context.Context, deviceID string) ([]ConversationSummary, error)

	// RequestRefreshAll asks the daemon to re-request every conversation
	// thread from the phone. Results arrive as conv.* signals.
	RequestRefreshAll(ctx context.Context, deviceID string) error

	// RequestPriming asks the daemon to fetch the thread's history over the
	// network. Its only useful effect is populating the daemon-side cache
	// later needed for reply address lookup; success is unobservable.
	RequestPriming(ctx context.Context, deviceID string, threadID int64) error

	// RequestRead asks the daemon to read the thread from its local store.
	// Results arrive as one msg.updated signal per stored message followed
	// by msg.load_complete whose count reflects local store size only.
	RequestRead(ctx context.Context, deviceID string, threadID int64, offset, count int64) error

	// Reply sends a message into an existing thread; the daemon resolves
	// the destination addresses from its primed conversation cache.
	Reply(ctx context.Context, deviceID string, threadID int64, body string) error

	// SendNew sends a message to an explicit address, creating or joining
	// a conversation on the phone side.
	SendNew(ctx context.Context, deviceID, address, body string) error
}
