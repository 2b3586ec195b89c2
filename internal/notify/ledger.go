package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"
)

// Ledger is a single-slot, cross-process notification dedup record. Every
// consumer process that wants to show a notification first claims the slot
// under an exclusive file lock; a claim matching the current slot's key
// within the window is suppressed. The file holds exactly one key and
// timestamp, so only back-to-back duplicates are deduplicated, which is
// the only collision pattern concurrent consumers actually produce.
type Ledger struct {
	path   string
	window time.Duration
}

// NewLedger creates a ledger over the shared slot file. The file is
// created on first claim.
func NewLedger(path string, window time.Duration) *Ledger {
	return &Ledger{path: path, window: window}
}

// ShouldShow reports whether a notification for key should be shown now,
// claiming the slot if so. The read, the decision and the write happen
// inside one flock critical section so concurrent processes agree on a
// single winner. Any I/O or locking failure fails open: a duplicate
// notification is a lesser harm than a silently dropped one.
func (l *Ledger) ShouldShow(key string, now time.Time) bool {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return true
	}
	defer func() { _ = f.Close() }()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return true
	}
	defer func() { _ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN) }()

	data, _ := io.ReadAll(f)
	if k, ts, ok := parseSlot(string(data)); ok && k == key {
		// A slot written slightly in the future (clock skew between
		// processes) still counts as live.
		if d := now.Sub(ts); d < l.window && d > -l.window {
			return false
		}
	}

	if err := f.Truncate(0); err != nil {
		return true
	}
	if _, err := f.Seek(0, 0); err != nil {
		return true
	}
	_, _ = fmt.Fprintf(f, "key=%s\ntime=%s\n", key, now.UTC().Format(time.RFC3339Nano))
	return true
}

func parseSlot(content string) (string, time.Time, bool) {
	var key, tsRaw string
	for _, line := range strings.Split(content, "\n") {
		if after, ok := strings.CutPrefix(line, "key="); ok {
			key = after
		}
		if after, ok := strings.CutPrefix(line, "time="); ok {
			tsRaw = after
		}
	}
	if key == "" || tsRaw == "" {
		return "", time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		return "", time.Time{}, false
	}
	return key, ts, true
}
