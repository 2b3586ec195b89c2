package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/mvasconc/phonelink/internal/bus"
	"github.com/mvasconc/phonelink/internal/contacts"
	"github.com/mvasconc/phonelink/internal/phone"
	"go.uber.org/zap"
)

// Watcher turns inbound phone signals into desktop notifications. Every
// candidate passes through the shared ledger first, so a second consumer
// process watching the same device stays silent for the same event.
type Watcher struct {
	bus      *bus.Bus
	ledger   *Ledger
	poster   Poster
	resolver contacts.Resolver
	deviceID string
	logger   *zap.Logger
	cancel   context.CancelFunc
}

func NewWatcher(b *bus.Bus, ledger *Ledger, poster Poster, resolver contacts.Resolver, deviceID string, logger *zap.Logger) *Watcher {
	return &Watcher{
		bus:      b,
		ledger:   ledger,
		poster:   poster,
		resolver: resolver,
		deviceID: deviceID,
		logger:   logger,
	}
}

// Start subscribes to inbound signal namespaces.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	msgCh, unsubMsg := w.bus.Subscribe("msg.", 256)
	shareCh, unsubShare := w.bus.Subscribe("share.", 64)
	callCh, unsubCall := w.bus.Subscribe("call.", 64)

	go func() {
		defer unsubMsg()
		defer unsubShare()
		defer unsubCall()
		for {
			select {
			case sig := <-msgCh:
				w.handleMessage(sig)
			case sig := <-shareCh:
				w.handleShare(sig)
			case sig := <-callCh:
				w.handleCall(sig)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watcher) handleMessage(sig bus.Signal) {
	if sig.DeviceID != w.deviceID || sig.Kind != bus.KindMessageUpdated {
		return
	}
	msg, ok := sig.Payload.(*phone.Message)
	if !ok || !msg.Inbound() || msg.Read {
		return
	}
	key := fmt.Sprintf("sms:%d:%d", msg.ThreadID, msg.Timestamp)
	if !w.ledger.ShouldShow(key, time.Now()) {
		return
	}
	w.post(contacts.DisplayName(w.resolver, msg.Addresses), msg.Body)
}

func (w *Watcher) handleShare(sig bus.Signal) {
	if sig.DeviceID != w.deviceID || sig.Kind != bus.KindFileReceived {
		return
	}
	file, ok := sig.Payload.(bus.FileReceived)
	if !ok {
		return
	}
	if !w.ledger.ShouldShow("file:"+file.URL, time.Now()) {
		return
	}
	w.post("File received", file.Name)
}

func (w *Watcher) handleCall(sig bus.Signal) {
	if sig.DeviceID != w.deviceID || sig.Kind != bus.KindCallReceived {
		return
	}
	call, ok := sig.Payload.(bus.CallReceived)
	if !ok || call.Event != "ringing" {
		return
	}
	key := fmt.Sprintf("call:%s:%s", call.Event, call.PhoneNumber)
	if !w.ledger.ShouldShow(key, time.Now()) {
		return
	}
	name := call.ContactName
	if name == "" {
		name = w.resolver.Resolve(call.PhoneNumber)
	}
	w.post("Incoming call", name)
}

func (w *Watcher) post(summary, body string) {
	if err := w.poster.Post(summary, body); err != nil {
		w.logger.Warn("failed to post notification", zap.Error(err))
	}
}
