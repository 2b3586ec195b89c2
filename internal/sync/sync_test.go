package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/mvasconc/phonelink/internal/bus"
	"github.com/mvasconc/phonelink/internal/cache"
	"github.com/mvasconc/phonelink/internal/config"
	"github.com/mvasconc/phonelink/internal/phone"
	"go.uber.org/zap"
)

const testDevice = "dev_1"

func testTimeouts() config.Timeouts {
	return config.Timeouts{
		ListResponseCold: 120 * time.Millisecond,
		ListResponseWarm: 60 * time.Millisecond,
		ListActivity:     50 * time.Millisecond,
		ListHard:         400 * time.Millisecond,
		ThreadHard:       400 * time.Millisecond,
		ThreadPhoneWait:  120 * time.Millisecond,
		ThreadActivity:   50 * time.Millisecond,
		MessagesPerPage:  10,
	}
}

type fakeSource struct {
	mu       gosync.Mutex
	snapshot []phone.ConversationSummary
	calls    []string
}

func (f *fakeSource) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeSource) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSource) SnapshotConversations(ctx context.Context, deviceID string) ([]phone.ConversationSummary, error) {
	f.record("snapshot")
	return f.snapshot, nil
}

func (f *fakeSource) RequestRefreshAll(ctx context.Context, deviceID string) error {
	f.record("refresh")
	return nil
}

func (f *fakeSource) RequestPriming(ctx context.Context, deviceID string, threadID int64) error {
	f.record(fmt.Sprintf("prime:%d", threadID))
	return nil
}

func (f *fakeSource) RequestRead(ctx context.Context, deviceID string, threadID, offset, count int64) error {
	f.record(fmt.Sprintf("read:%d:%d:%d", threadID, offset, count))
	return nil
}

func (f *fakeSource) Reply(ctx context.Context, deviceID string, threadID int64, body string) error {
	f.record(fmt.Sprintf("reply:%d", threadID))
	return nil
}

func (f *fakeSource) SendNew(ctx context.Context, deviceID, address, body string) error {
	f.record("send:" + address)
	return nil
}

func testEnv(t *testing.T) (*fakeSource, *bus.Bus, *cache.Store) {
	t.Helper()
	src := &fakeSource{}
	b := bus.New()
	c := cache.New()
	c.SwitchDevice(testDevice)
	return src, b, c
}

func conv(threadID, ts int64) phone.ConversationSummary {
	return phone.ConversationSummary{
		ThreadID:  threadID,
		Addresses: []string{"+15550001"},
		Timestamp: ts,
	}
}

func msg(threadID, uid, ts int64) *phone.Message {
	return &phone.Message{
		UID:       uid,
		ThreadID:  threadID,
		Body:      fmt.Sprintf("msg %d", uid),
		Addresses: []string{"+15550001"},
		Timestamp: ts,
		Type:      phone.TypeInbox,
	}
}

func convSignal(kind string, c phone.ConversationSummary) bus.Signal {
	return bus.Signal{Kind: kind, DeviceID: testDevice, ThreadID: c.ThreadID, Payload: c}
}

func msgSignal(m *phone.Message) bus.Signal {
	return bus.Signal{Kind: bus.KindMessageUpdated, DeviceID: testDevice, ThreadID: m.ThreadID, Payload: m}
}

func loadCompleteSignal(threadID, count int64) bus.Signal {
	return bus.Signal{
		Kind:     bus.KindLoadComplete,
		DeviceID: testDevice,
		ThreadID: threadID,
		Payload:  bus.LoadComplete{LocalCount: count},
	}
}

// collect drains updates until the terminal SyncComplete or the deadline.
func collect(t *testing.T, ch <-chan Update, within time.Duration) ([]Update, *Completion) {
	t.Helper()
	deadline := time.After(within)
	var ups []Update
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				t.Fatalf("updates closed without completion")
			}
			if u.Kind == UpdateSyncComplete {
				return ups, u.Complete
			}
			ups = append(ups, u)
		case <-deadline:
			t.Fatalf("no completion within %v (got %d updates)", within, len(ups))
		}
	}
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}
