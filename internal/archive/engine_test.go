package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvasconc/phonelink/internal/bus"
	"github.com/mvasconc/phonelink/internal/cache"
	"github.com/mvasconc/phonelink/internal/phone"
	"github.com/mvasconc/phonelink/internal/store"
	"go.uber.org/zap"
)

func testEngine(t *testing.T) (*Engine, *bus.Bus, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	e := NewEngine(db, b, "dev_1", zap.NewNop())
	e.Start(context.Background())
	t.Cleanup(e.Stop)
	return e, b, db
}

// waitFor polls until the probe succeeds or the deadline passes.
func waitFor(t *testing.T, probe func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if probe() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestArchivesConversationSignals(t *testing.T) {
	_, b, db := testEngine(t)

	b.Publish(bus.Signal{
		Kind:     bus.KindConversationUpdated,
		DeviceID: "dev_1",
		ThreadID: 7,
		Payload: phone.ConversationSummary{
			ThreadID:    7,
			Addresses:   []string{"+15550001"},
			LastMessage: "hello",
			Timestamp:   1000,
		},
	})

	waitFor(t, func() bool {
		c, err := db.GetConversation(7)
		return err == nil && c != nil && c.LastMessage == "hello"
	})
}

func TestArchivesMessageSignals(t *testing.T) {
	_, b, db := testEngine(t)

	b.Publish(bus.Signal{
		Kind:     bus.KindMessageUpdated,
		DeviceID: "dev_1",
		ThreadID: 7,
		Payload: &phone.Message{
			UID:       42,
			ThreadID:  7,
			Body:      "archived",
			Timestamp: 1000,
			Type:      phone.TypeInbox,
		},
	})

	waitFor(t, func() bool {
		msgs, err := db.ListMessages(7, 0, 10)
		return err == nil && len(msgs) == 1 && msgs[0].UID == 42
	})
}

func TestIgnoresOtherDevices(t *testing.T) {
	_, b, db := testEngine(t)

	b.Publish(bus.Signal{
		Kind:     bus.KindConversationUpdated,
		DeviceID: "other",
		ThreadID: 9,
		Payload:  phone.ConversationSummary{ThreadID: 9, Timestamp: 1000},
	})
	// A matching signal afterwards proves the first was processed and
	// skipped rather than still queued.
	b.Publish(bus.Signal{
		Kind:     bus.KindConversationUpdated,
		DeviceID: "dev_1",
		ThreadID: 7,
		Payload:  phone.ConversationSummary{ThreadID: 7, Timestamp: 1000},
	})

	waitFor(t, func() bool {
		c, err := db.GetConversation(7)
		return err == nil && c != nil
	})
	foreign, err := db.GetConversation(9)
	if err != nil {
		t.Fatal(err)
	}
	if foreign != nil {
		t.Error("foreign device conversation was archived")
	}
}

func TestSeedCache(t *testing.T) {
	e, _, db := testEngine(t)

	for i := int64(1); i <= 3; i++ {
		if err := db.UpsertConversation(&store.Conversation{ThreadID: i, Timestamp: i * 1000}); err != nil {
			t.Fatal(err)
		}
	}

	c := cache.New()
	c.SwitchDevice("dev_1")
	merged, err := e.SeedCache(c, 50)
	if err != nil {
		t.Fatal(err)
	}
	if merged != 3 {
		t.Fatalf("merged = %d, want 3", merged)
	}
	convs := c.Conversations()
	if len(convs) != 3 || convs[0].ThreadID != 3 {
		t.Fatalf("cache not seeded newest-first: %+v", convs)
	}
}

func TestSnapshotCompleteCheckpoints(t *testing.T) {
	e, b, _ := testEngine(t)

	if last, err := e.LastListSync(); err != nil || !last.IsZero() {
		t.Fatalf("fresh archive checkpoint = %v, %v; want zero", last, err)
	}

	at := time.UnixMilli(1700000000000)
	b.Publish(bus.Signal{
		Kind:      bus.KindSnapshotComplete,
		DeviceID:  "dev_1",
		Timestamp: at,
	})

	waitFor(t, func() bool {
		last, err := e.LastListSync()
		return err == nil && last.Equal(at)
	})
}

func TestCheckpointIgnoresOtherDevices(t *testing.T) {
	e, b, _ := testEngine(t)

	b.Publish(bus.Signal{
		Kind:      bus.KindSnapshotComplete,
		DeviceID:  "other",
		Timestamp: time.Now(),
	})
	b.Publish(bus.Signal{
		Kind:     bus.KindConversationUpdated,
		DeviceID: "dev_1",
		ThreadID: 7,
		Payload:  phone.ConversationSummary{ThreadID: 7, Timestamp: 1000},
	})

	waitFor(t, func() bool {
		c, err := e.db.GetConversation(7)
		return err == nil && c != nil
	})
	last, err := e.LastListSync()
	if err != nil {
		t.Fatal(err)
	}
	if !last.IsZero() {
		t.Errorf("foreign device snapshot checkpointed at %v", last)
	}
}

func TestSeedThread(t *testing.T) {
	e, _, db := testEngine(t)

	for i := int64(1); i <= 3; i++ {
		m := &store.Message{ThreadID: 7, UID: i, Body: "m", Timestamp: i * 1000, Type: int32(phone.TypeInbox)}
		if err := db.UpsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.UpsertMessage(&store.Message{ThreadID: 8, UID: 9, Timestamp: 500}); err != nil {
		t.Fatal(err)
	}

	c := cache.New()
	c.SwitchDevice("dev_1")
	merged, err := e.SeedThread(c, 7, 50)
	if err != nil {
		t.Fatal(err)
	}
	if merged != 3 {
		t.Fatalf("merged = %d, want 3", merged)
	}
	if len(c.Messages(8)) != 0 {
		t.Error("foreign thread leaked into the seed")
	}
	msgs := c.Messages(7)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
}
