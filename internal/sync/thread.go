package sync

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mvasconc/phonelink/internal/bus"
	"github.com/mvasconc/phonelink/internal/cache"
	"github.com/mvasconc/phonelink/internal/clock"
	"github.com/mvasconc/phonelink/internal/config"
	"github.com/mvasconc/phonelink/internal/phone"
	"go.uber.org/zap"
)

// ThreadOpts configures a thread message session.
type ThreadOpts struct {
	DeviceID string
	ThreadID int64
	Source   phone.Source
	Bus      *bus.Bus
	Cache    *cache.Store
	Timeouts config.Timeouts
	Logger   *zap.Logger

	// Offset/Count select the message window to request from the daemon.
	Offset int64
	Count  int64

	// Backfill marks a pagination session: the priming request is skipped
	// (the initial load already fired it) and inbound messages are also
	// filtered against the thread's full known-id set in the cache.
	Backfill bool
}

// ThreadSession drives message population for one conversation view.
//
// Two request paths run against the daemon: the priming request, whose only
// effect is filling the daemon-side cache later needed for reply address
// lookup, and the read request, which replays the daemon's local store as
// one signal per message followed by a load-complete marker. The marker's
// count reflects local store size only and is never treated as proof that
// the phone has nothing more to send; after it, the session keeps a bounded
// window open for the phone's own response.
type ThreadSession struct {
	id        uuid.UUID
	opts      ThreadOpts
	updates   chan Update
	cancel    context.CancelFunc
	listening atomic.Bool
}

// StartThread opens a thread session. The subscription is registered and
// the priming request fired before the read request, so the daemon cache
// has the longest possible head start before a reply is attempted.
func StartThread(ctx context.Context, o ThreadOpts) *ThreadSession {
	ctx, cancel := context.WithCancel(ctx)
	if o.Count <= 0 {
		o.Count = int64(o.Timeouts.MessagesPerPage)
	}
	s := &ThreadSession{
		id:      uuid.New(),
		opts:    o,
		updates: make(chan Update, 256),
		cancel:  cancel,
	}
	s.listening.Store(true)
	ch, unsub := o.Bus.Subscribe("msg.", 256)
	go s.run(ctx, ch, unsub)
	return s
}

// Updates returns the session's update stream.
func (s *ThreadSession) Updates() <-chan Update {
	return s.updates
}

// Close cancels the session outright; in-flight daemon requests are
// abandoned and their eventual signals ignored.
func (s *ThreadSession) Close() {
	s.cancel()
}

// Listening reports whether the session is still collecting signals. The
// pagination guard refuses backfill while this is true.
func (s *ThreadSession) Listening() bool {
	return s.listening.Load()
}

func (s *ThreadSession) run(ctx context.Context, ch <-chan bus.Signal, unsub func()) {
	defer unsub()
	defer close(s.updates)
	defer s.listening.Store(false)

	o := s.opts
	log := o.Logger.With(
		zap.String("session", s.id.String()),
		zap.String("device", o.DeviceID),
		zap.Int64("thread", o.ThreadID))

	if !o.Backfill {
		// Priming success is unobservable; log and move on. Correctness
		// never depends on it.
		if err := o.Source.RequestPriming(ctx, o.DeviceID, o.ThreadID); err != nil {
			log.Warn("priming request failed", zap.Error(err))
		}
	}
	if err := o.Source.RequestRead(ctx, o.DeviceID, o.ThreadID, o.Offset, o.Count); err != nil {
		log.Warn("read request failed, waiting on signals only", zap.Error(err))
	}

	hard := clock.New()
	phoneWait := clock.New()
	activity := clock.New()
	defer hard.Disarm()
	defer phoneWait.Disarm()
	defer activity.Disarm()
	hard.Arm(o.Timeouts.ThreadHard)

	seen := make(map[int64]struct{})
	items := 0
	discarded := 0
	localDone := false
	phoneSeen := false
	var localCount int64

	finish := func(timedOut bool) {
		s.emit(ctx, Update{Kind: UpdateSyncComplete, Complete: &Completion{
			Items:      items,
			LocalCount: localCount,
			TimedOut:   timedOut,
			Discarded:  discarded,
		}})
		log.Info("thread sync complete",
			zap.Int("items", items),
			zap.Int64("local_count", localCount),
			zap.Int("discarded", discarded),
			zap.Bool("timed_out", timedOut))
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-hard.C():
			// Absolute safety net for both phases. Without the local
			// store marker this is the session's gave-up state.
			finish(!localDone)
			return

		case <-phoneWait.C():
			// Local store replay finished and the phone never started
			// responding within its window.
			log.Info("thread sync: phone never responded after load complete")
			finish(false)
			return

		case <-activity.C():
			// The phone's stream has gone quiet.
			finish(false)
			return

		case sig := <-ch:
			// Identity filter at the boundary: the subscription pattern
			// alone does not scope the shared channel. Unrelated signals
			// must not reset any deadline.
			if sig.DeviceID != o.DeviceID || sig.ThreadID != o.ThreadID {
				continue
			}
			switch sig.Kind {
			case bus.KindMessageUpdated:
				msg, ok := sig.Payload.(*phone.Message)
				if !ok {
					continue
				}
				// Matching signal: drive the phase-2 deadlines before
				// dedup, so redelivered duplicates still count as "the
				// phone is alive".
				if localDone {
					if !phoneSeen {
						// Phase 2b permanently supersedes 2a.
						phoneSeen = true
						phoneWait.Disarm()
					}
					activity.Arm(o.Timeouts.ThreadActivity)
				}

				if _, dup := seen[msg.UID]; dup {
					discarded++
					continue
				}
				if o.Backfill && o.Cache.HasMessage(o.ThreadID, msg.UID) {
					discarded++
					continue
				}
				seen[msg.UID] = struct{}{}
				o.Cache.MergeMessage(*msg)
				if !s.emit(ctx, Update{Kind: UpdateMessage, Message: msg}) {
					return
				}
				items++

			case bus.KindLoadComplete:
				lc, ok := sig.Payload.(bus.LoadComplete)
				if !ok {
					continue
				}
				// Only the first marker arms the phone wait; a redelivered
				// one must not extend the window.
				if localDone {
					continue
				}
				localDone = true
				localCount = lc.LocalCount
				if !phoneSeen {
					phoneWait.Arm(o.Timeouts.ThreadPhoneWait)
				}
				log.Info("local store replay complete, waiting for phone",
					zap.Int64("local_count", localCount))
			}
		}
	}
}

func (s *ThreadSession) emit(ctx context.Context, u Update) bool {
	select {
	case s.updates <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
