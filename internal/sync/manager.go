package sync

import (
	"context"
	gosync "sync"

	"github.com/mvasconc/phonelink/internal/bus"
	"github.com/mvasconc/phonelink/internal/cache"
	"github.com/mvasconc/phonelink/internal/config"
	"github.com/mvasconc/phonelink/internal/phone"
	"go.uber.org/zap"
)

// Manager tracks live sessions so that pagination cannot stampede a
// thread that is still being populated.
type Manager struct {
	source   phone.Source
	bus      *bus.Bus
	cache    *cache.Store
	timeouts config.Timeouts
	logger   *zap.Logger

	mu      gosync.Mutex
	threads map[int64]*ThreadSession
}

func NewManager(source phone.Source, b *bus.Bus, c *cache.Store, t config.Timeouts, logger *zap.Logger) *Manager {
	return &Manager{
		source:   source,
		bus:      b,
		cache:    c,
		timeouts: t,
		logger:   logger,
		threads:  make(map[int64]*ThreadSession),
	}
}

// OpenList starts a conversation list session. The session derives its
// warm/cold response deadline from whether the daemon snapshot is empty.
func (m *Manager) OpenList(ctx context.Context, deviceID string) *ListSession {
	return StartList(ctx, ListOpts{
		DeviceID: deviceID,
		Source:   m.source,
		Bus:      m.bus,
		Cache:    m.cache,
		Timeouts: m.timeouts,
		Logger:   m.logger,
	})
}

// OpenThread starts the initial message load for a conversation. Any
// previous session for the same thread is closed first; opening a thread
// view is an explicit user action and supersedes whatever was in flight.
func (m *Manager) OpenThread(ctx context.Context, deviceID string, threadID int64) *ThreadSession {
	s := StartThread(ctx, ThreadOpts{
		DeviceID: deviceID,
		ThreadID: threadID,
		Source:   m.source,
		Bus:      m.bus,
		Cache:    m.cache,
		Timeouts: m.timeouts,
		Logger:   m.logger,
		Offset:   0,
		Count:    int64(m.timeouts.MessagesPerPage),
	})
	m.mu.Lock()
	if prev, ok := m.threads[threadID]; ok {
		prev.Close()
	}
	m.threads[threadID] = s
	m.mu.Unlock()
	return s
}

// RequestOlder requests an older page of messages for a thread. If a
// session for the thread is still listening, no daemon request is made and
// the returned session carries a single load-skipped update; retrying a
// moment later is cheap, while a duplicate read request doubles daemon
// traffic for no new data.
func (m *Manager) RequestOlder(ctx context.Context, deviceID string, threadID int64, offset int64) *ThreadSession {
	m.mu.Lock()
	prev, ok := m.threads[threadID]
	if ok && prev.Listening() {
		m.mu.Unlock()
		m.logger.Info("pagination skipped, thread session still active",
			zap.Int64("thread", threadID))
		return skippedSession()
	}
	s := StartThread(ctx, ThreadOpts{
		DeviceID: deviceID,
		ThreadID: threadID,
		Source:   m.source,
		Bus:      m.bus,
		Cache:    m.cache,
		Timeouts: m.timeouts,
		Logger:   m.logger,
		Offset:   offset,
		Count:    int64(m.timeouts.MessagesPerPage),
		Backfill: true,
	})
	m.threads[threadID] = s
	m.mu.Unlock()
	return s
}

// CloseAll tears down every tracked thread session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.threads {
		s.Close()
		delete(m.threads, id)
	}
}

// skippedSession builds an already-finished session whose stream holds
// exactly one load-skipped update.
func skippedSession() *ThreadSession {
	s := &ThreadSession{
		updates: make(chan Update, 1),
		cancel:  func() {},
	}
	s.updates <- Update{Kind: UpdateLoadSkipped}
	close(s.updates)
	return s
}
