// Package sync contains the deadline-driven session state machines that
// turn the phone daemon's unordered, duplicated, best-effort signals into
// terminating, UI-consumable update streams.
package sync

import "github.com/mvasconc/phonelink/internal/phone"

// UpdateKind discriminates the session update stream values.
type UpdateKind int

const (
	// UpdateConversation carries one conversation summary.
	UpdateConversation UpdateKind = iota
	// UpdateMessage carries one accepted thread message.
	UpdateMessage
	// UpdateSyncComplete terminates a session's stream.
	UpdateSyncComplete
	// UpdateLoadSkipped reports a pagination request rejected by the
	// guard. Not an error: the caller should ignore the redundant trigger.
	UpdateLoadSkipped
)

// Update is one element of a session's update stream.
type Update struct {
	Kind         UpdateKind
	Conversation *phone.ConversationSummary
	Message      *phone.Message
	Complete     *Completion
}

// Completion summarizes a finished session. TimedOut is set only when the
// hard safety timeout expired; a session that went quiet inside its normal
// deadlines reports TimedOut false even with zero items, so callers can
// tell "empty but confirmed" from "gave up waiting".
type Completion struct {
	Items int
	// LocalCount is the daemon-reported local store size for thread
	// sessions. Diagnostics only: it reflects the daemon's cache, not how
	// many messages the phone holds.
	LocalCount int64
	TimedOut   bool
	// Discarded counts stale and duplicate signals dropped during the
	// session.
	Discarded int
}
