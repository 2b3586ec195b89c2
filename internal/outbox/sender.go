package outbox

import (
	"context"
	"time"

	"github.com/mvasconc/phonelink/internal/config"
	"github.com/mvasconc/phonelink/internal/phone"
	"github.com/mvasconc/phonelink/internal/store"
	"go.uber.org/zap"
)

// Sender drains the outbox and hands messages to the phone daemon. The
// daemon offers no delivery acknowledgement, so a successful hand-off is
// terminal for the entry; the echoed message appears later through the
// normal signal path. After each send a delayed read request is fired so
// the echo shows up without waiting for the user to reopen the thread.
type Sender struct {
	db       *store.DB
	source   phone.Source
	deviceID string
	timeouts config.Timeouts
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, source phone.Source, deviceID string, t config.Timeouts, logger *zap.Logger) *Sender {
	return &Sender{
		db:       db,
		source:   source,
		deviceID: deviceID,
		timeouts: t,
		logger:   logger,
	}
}

// Start begins polling the outbox for pending messages. Entries a
// previous run left in 'sending' are re-queued first.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	if n, err := s.db.RequeueStuckOutbox(); err != nil {
		s.logger.Warn("failed to requeue interrupted sends", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("requeued interrupted sends", zap.Int64("count", n))
	}
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	interval := s.timeouts.OutboxPollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if err := s.db.MarkOutboxSending(entry.ClientID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_id", entry.ClientID))
			continue
		}

		if err := s.send(ctx, entry); err != nil {
			s.logger.Error("failed to send message", zap.Error(err), zap.String("client_id", entry.ClientID))
			_ = s.db.MarkOutboxFailed(entry.ClientID, err.Error())
			continue
		}

		if err := s.db.MarkOutboxSent(entry.ClientID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_id", entry.ClientID))
		}
		s.logger.Info("message handed to daemon",
			zap.String("client_id", entry.ClientID),
			zap.Int64("thread", entry.ThreadID))

		s.scheduleEchoRefresh(ctx, entry.ThreadID)
	}
}

func (s *Sender) send(ctx context.Context, entry store.OutboxEntry) error {
	if entry.ThreadID != 0 {
		return s.source.Reply(ctx, s.deviceID, entry.ThreadID, entry.Body)
	}
	return s.source.SendNew(ctx, s.deviceID, entry.Address, entry.Body)
}

// scheduleEchoRefresh fires a delayed read request so the sent message's
// echo arrives shortly after the phone has stored it. For new-conversation
// sends the thread id is unknown, so the whole list is refreshed instead.
func (s *Sender) scheduleEchoRefresh(ctx context.Context, threadID int64) {
	delay := s.timeouts.PostSendRefresh
	if delay <= 0 {
		delay = 2 * time.Second
	}
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		var err error
		if threadID != 0 {
			err = s.source.RequestRead(ctx, s.deviceID, threadID, 0, int64(s.timeouts.MessagesPerPage))
		} else {
			err = s.source.RequestRefreshAll(ctx, s.deviceID)
		}
		if err != nil {
			s.logger.Warn("post-send refresh failed", zap.Error(err), zap.Int64("thread", threadID))
		}
	}()
}
