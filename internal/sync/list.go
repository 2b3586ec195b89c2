package sync

import (
	"context"

	"github.com/google/uuid"
	"github.com/mvasconc/phonelink/internal/bus"
	"github.com/mvasconc/phonelink/internal/cache"
	"github.com/mvasconc/phonelink/internal/clock"
	"github.com/mvasconc/phonelink/internal/config"
	"github.com/mvasconc/phonelink/internal/phone"
	"go.uber.org/zap"
)

// ListOpts configures a conversation list session.
type ListOpts struct {
	DeviceID string
	Source   phone.Source
	Bus      *bus.Bus
	Cache    *cache.Store
	Timeouts config.Timeouts
	Logger   *zap.Logger
}

// ListSession drives conversation list population for one open view.
// It emits cached summaries immediately, fires the refresh request, then
// merges live signals until a deadline or the snapshot-complete marker
// finishes the sync.
type ListSession struct {
	id      uuid.UUID
	opts    ListOpts
	updates chan Update
	cancel  context.CancelFunc
}

// StartList opens a list session. The signal subscription is registered
// before the snapshot read and the refresh request so no early signal is
// lost.
func StartList(ctx context.Context, o ListOpts) *ListSession {
	ctx, cancel := context.WithCancel(ctx)
	s := &ListSession{
		id:      uuid.New(),
		opts:    o,
		updates: make(chan Update, 256),
		cancel:  cancel,
	}
	ch, unsub := o.Bus.Subscribe("conv.", 256)
	go s.run(ctx, ch, unsub)
	return s
}

// Updates returns the session's update stream. It is closed after the
// terminal SyncComplete update, or without one if the session is closed.
func (s *ListSession) Updates() <-chan Update {
	return s.updates
}

// Close cancels the session. Pending deadlines are disarmed and no further
// updates are emitted.
func (s *ListSession) Close() {
	s.cancel()
}

func (s *ListSession) run(ctx context.Context, ch <-chan bus.Signal, unsub func()) {
	defer unsub()
	defer close(s.updates)

	o := s.opts
	log := o.Logger.With(zap.String("session", s.id.String()), zap.String("device", o.DeviceID))

	hard := clock.New()
	response := clock.New()
	activity := clock.New()
	defer hard.Disarm()
	defer response.Disarm()
	defer activity.Disarm()

	items := 0
	discarded := 0

	// Cached-first display: emit whatever the daemon already holds. This
	// proves nothing about the remote end, so the activity deadline stays
	// unarmed.
	snapshot, err := o.Source.SnapshotConversations(ctx, o.DeviceID)
	if err != nil {
		log.Warn("snapshot read failed, treating cache as cold", zap.Error(err))
	}
	warm := len(snapshot) > 0
	for _, c := range snapshot {
		if !o.Cache.MergeConversation(c) {
			discarded++
			continue
		}
		conv := c
		if !s.emit(ctx, Update{Kind: UpdateConversation, Conversation: &conv}) {
			return
		}
		items++
	}

	if err := o.Source.RequestRefreshAll(ctx, o.DeviceID); err != nil {
		log.Warn("refresh request failed, relying on cached data", zap.Error(err))
	}

	hard.Arm(o.Timeouts.ListHard)
	if warm {
		response.Arm(o.Timeouts.ListResponseWarm)
	} else {
		response.Arm(o.Timeouts.ListResponseCold)
	}
	log.Info("list sync listening", zap.Int("cached", items), zap.Bool("warm", warm))

	// Set once the daemon confirms the snapshot; a hard timeout after
	// confirmation is "quiet", not "failed".
	snapshotSeen := false
	finish := func(timedOut bool) {
		s.emit(ctx, Update{Kind: UpdateSyncComplete, Complete: &Completion{
			Items:     items,
			TimedOut:  timedOut,
			Discarded: discarded,
		}})
		log.Info("list sync complete",
			zap.Int("items", items),
			zap.Int("discarded", discarded),
			zap.Bool("timed_out", timedOut))
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-hard.C():
			// Safety ceiling. Without a snapshot confirmation this is the
			// explicit gave-up state of the session.
			finish(!snapshotSeen)
			return

		case <-response.C():
			// The phone never started responding. Not an error: complete
			// with whatever the cache gave us.
			log.Info("list sync: no live signal within response deadline")
			finish(false)
			return

		case <-activity.C():
			// Live signals stopped arriving.
			finish(false)
			return

		case sig := <-ch:
			if sig.DeviceID != o.DeviceID {
				// Shared broadcast channel; other devices' traffic is not
				// progress and must not touch any deadline.
				continue
			}
			switch sig.Kind {
			case bus.KindConversationCreated, bus.KindConversationUpdated:
				sum, ok := sig.Payload.(phone.ConversationSummary)
				if !ok {
					continue
				}
				// Any live matching signal supersedes the response
				// deadline and rearms the activity deadline, even when
				// the summary itself turns out to be stale.
				response.Disarm()
				activity.Arm(o.Timeouts.ListActivity)

				if !o.Cache.MergeConversation(sum) {
					discarded++
					continue
				}
				conv := sum
				if !s.emit(ctx, Update{Kind: UpdateConversation, Conversation: &conv}) {
					return
				}
				items++

			case bus.KindSnapshotComplete:
				snapshotSeen = true
				if !activity.Armed() {
					// Nothing is streaming; the snapshot marker is the
					// completion signal.
					finish(false)
					return
				}
				// A stream is in flight: let the activity deadline decide
				// when it has actually gone quiet.
			}
		}
	}
}

// emit delivers an update unless the session has been canceled.
func (s *ListSession) emit(ctx context.Context, u Update) bool {
	select {
	case s.updates <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
