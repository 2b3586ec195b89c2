package bus

import "time"

// Signal kinds published by the phone adapter. Subscriptions match by
// prefix, so "conv." selects all conversation signals.
const (
	KindConversationCreated = "conv.created"
	KindConversationUpdated = "conv.updated"
	KindSnapshotComplete    = "conv.snapshot_complete"
	KindMessageUpdated      = "msg.updated"
	KindLoadComplete        = "msg.load_complete"
	KindFileReceived        = "share.received"
	KindCallReceived        = "call.received"
	KindStatusChanged       = "daemon.status_changed"
)

// Signal is a typed notification delivered through the bus. DeviceID and
// ThreadID identify which device/thread the signal belongs to; consumers
// must filter on them rather than trusting the subscription prefix alone,
// because the underlying channel is shared across devices and threads.
type Signal struct {
	Kind      string
	DeviceID  string
	ThreadID  int64
	Timestamp time.Time
	Payload   any
}

// LoadComplete is the payload of a KindLoadComplete signal. LocalCount is
// the number of messages the phone daemon found in its local store; it says
// nothing about how many messages the phone itself holds.
type LoadComplete struct {
	LocalCount int64
}

// FileReceived is the payload of a KindFileReceived signal.
type FileReceived struct {
	URL  string
	Name string
}

// CallReceived is the payload of a KindCallReceived signal.
type CallReceived struct {
	Event       string // ringing, missedCall, talking
	PhoneNumber string
	ContactName string
}
