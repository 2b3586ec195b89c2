// Package cache holds the per-device conversation and message caches owned
// by the application state. Sync sessions never mutate it directly beyond
// the merge methods here, so cache-seeded and signal-seeded data are
// indistinguishable to consumers.
package cache

import (
	"sort"
	"sync"

	"github.com/mvasconc/phonelink/internal/phone"
)

// Store is the cache for one device at a time. Switching devices clears
// everything; closing and reopening a view for the same device does not.
type Store struct {
	mu            sync.RWMutex
	deviceID      string
	conversations map[int64]phone.ConversationSummary
	threads       map[int64]*thread
}

type thread struct {
	known map[int64]struct{}
	msgs  []phone.Message
}

// New creates an empty store bound to no device.
func New() *Store {
	return &Store{
		conversations: make(map[int64]phone.ConversationSummary),
		threads:       make(map[int64]*thread),
	}
}

// DeviceID returns the device the cache currently serves.
func (s *Store) DeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceID
}

// SwitchDevice rebinds the cache to a device, clearing all cached state if
// the device changed.
func (s *Store) SwitchDevice(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deviceID == deviceID {
		return
	}
	s.deviceID = deviceID
	s.conversations = make(map[int64]phone.ConversationSummary)
	s.threads = make(map[int64]*thread)
}

// MergeConversation applies the list merge rule: a summary replaces the
// cached one for the same thread when its timestamp is newer or equal
// (last write wins on ties). Returns false when the update is stale.
func (s *Store) MergeConversation(c phone.ConversationSummary) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.conversations[c.ThreadID]; ok && existing.Timestamp > c.Timestamp {
		return false
	}
	s.conversations[c.ThreadID] = c
	return true
}

// Conversations returns cached summaries sorted newest first.
func (s *Store) Conversations() []phone.ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]phone.ConversationSummary, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ThreadID < out[j].ThreadID
	})
	return out
}

// MergeMessage inserts a message into its thread in (timestamp, uid) order.
// Returns false when the uid is already known for the thread.
func (s *Store) MergeMessage(m phone.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[m.ThreadID]
	if !ok {
		t = &thread{known: make(map[int64]struct{})}
		s.threads[m.ThreadID] = t
	}
	if _, dup := t.known[m.UID]; dup {
		return false
	}
	t.known[m.UID] = struct{}{}

	i := sort.Search(len(t.msgs), func(i int) bool {
		if t.msgs[i].Timestamp != m.Timestamp {
			return t.msgs[i].Timestamp > m.Timestamp
		}
		return t.msgs[i].UID > m.UID
	})
	t.msgs = append(t.msgs, phone.Message{})
	copy(t.msgs[i+1:], t.msgs[i:])
	t.msgs[i] = m
	return true
}

// HasMessage reports whether the thread already holds the given uid. The
// pagination guard filters inbound batches against this full known-id set,
// not just a session's own seen set.
func (s *Store) HasMessage(threadID, uid int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadID]
	if !ok {
		return false
	}
	_, known := t.known[uid]
	return known
}

// Messages returns the thread's messages in display order.
func (s *Store) Messages(threadID int64) []phone.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadID]
	if !ok {
		return nil
	}
	out := make([]phone.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}
