package archive

import (
	"context"
	"strconv"
	"time"

	"github.com/mvasconc/phonelink/internal/bus"
	"github.com/mvasconc/phonelink/internal/cache"
	"github.com/mvasconc/phonelink/internal/phone"
	"github.com/mvasconc/phonelink/internal/store"
	"go.uber.org/zap"
)

// Engine persists live phone signals into the archive database so the next
// start can show a warm conversation list before the phone answers. It
// subscribes to the conversation and message namespaces and upserts rows
// idempotently; redelivered signals are absorbed by the store's conflict
// clauses.
type Engine struct {
	db       *store.DB
	bus      *bus.Bus
	deviceID string
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewEngine creates an archive engine for one device.
func NewEngine(db *store.DB, b *bus.Bus, deviceID string, logger *zap.Logger) *Engine {
	return &Engine{
		db:       db,
		bus:      b,
		deviceID: deviceID,
		logger:   logger,
	}
}

// Start subscribes to live signals and begins persisting them.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	convCh, unsubConv := e.bus.Subscribe("conv.", 256)
	msgCh, unsubMsg := e.bus.Subscribe("msg.", 256)

	go func() {
		defer unsubConv()
		defer unsubMsg()
		for {
			select {
			case sig := <-convCh:
				e.handleConversation(sig)
			case sig := <-msgCh:
				e.handleMessage(sig)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// WarmSnapshot returns the archived conversation list for seeding the
// in-memory cache on boot.
func (e *Engine) WarmSnapshot(limit int) ([]phone.ConversationSummary, error) {
	rows, err := e.db.ListConversations(limit, 0)
	if err != nil {
		return nil, err
	}
	out := make([]phone.ConversationSummary, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Summary())
	}
	return out, nil
}

// SeedCache merges the archived snapshot into the in-memory cache.
func (e *Engine) SeedCache(c *cache.Store, limit int) (int, error) {
	snapshot, err := e.WarmSnapshot(limit)
	if err != nil {
		return 0, err
	}
	merged := 0
	for _, conv := range snapshot {
		if c.MergeConversation(conv) {
			merged++
		}
	}
	return merged, nil
}

// SeedThread merges a thread's archived messages into the in-memory cache
// so a thread open shows history before the phone answers.
func (e *Engine) SeedThread(c *cache.Store, threadID int64, limit int) (int, error) {
	rows, err := e.db.ListMessages(threadID, 0, limit)
	if err != nil {
		return 0, err
	}
	merged := 0
	for i := range rows {
		if c.MergeMessage(rows[i].Phone()) {
			merged++
		}
	}
	return merged, nil
}

const lastListSyncKey = "last_list_sync"

// LastListSync returns the time of the last phone-confirmed conversation
// snapshot, or zero time when none has completed yet.
func (e *Engine) LastListSync() (time.Time, error) {
	v, err := e.db.GetSyncState(lastListSyncKey)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

func (e *Engine) handleConversation(sig bus.Signal) {
	if sig.DeviceID != e.deviceID {
		return
	}
	switch sig.Kind {
	case bus.KindConversationCreated, bus.KindConversationUpdated:
		sum, ok := sig.Payload.(phone.ConversationSummary)
		if !ok {
			return
		}
		if err := e.db.UpsertConversation(store.ConversationFromSummary(sum)); err != nil {
			e.logger.Error("failed to archive conversation",
				zap.Error(err), zap.Int64("thread", sum.ThreadID))
		}
	case bus.KindSnapshotComplete:
		// Checkpoint the confirmed snapshot so the next start can report
		// how stale the archive is.
		ts := sig.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		ms := strconv.FormatInt(ts.UnixMilli(), 10)
		if err := e.db.SetSyncState(lastListSyncKey, ms); err != nil {
			e.logger.Error("failed to checkpoint list sync", zap.Error(err))
		}
	}
}

func (e *Engine) handleMessage(sig bus.Signal) {
	if sig.DeviceID != e.deviceID || sig.Kind != bus.KindMessageUpdated {
		return
	}
	msg, ok := sig.Payload.(*phone.Message)
	if !ok {
		return
	}
	if err := e.db.UpsertMessage(store.MessageFromPhone(msg)); err != nil {
		e.logger.Error("failed to archive message",
			zap.Error(err), zap.Int64("uid", msg.UID))
	}
}
