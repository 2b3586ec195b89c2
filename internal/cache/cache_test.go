package cache

import (
	"testing"

	"github.com/mvasconc/phonelink/internal/phone"
)

func TestMergeConversationNewestWins(t *testing.T) {
	s := New()
	s.SwitchDevice("dev1")

	if !s.MergeConversation(phone.ConversationSummary{ThreadID: 1, LastMessage: "old", Timestamp: 100}) {
		t.Fatal("first merge rejected")
	}
	if !s.MergeConversation(phone.ConversationSummary{ThreadID: 1, LastMessage: "new", Timestamp: 200}) {
		t.Fatal("newer merge rejected")
	}
	if s.MergeConversation(phone.ConversationSummary{ThreadID: 1, LastMessage: "stale", Timestamp: 150}) {
		t.Error("stale merge accepted")
	}

	convs := s.Conversations()
	if len(convs) != 1 {
		t.Fatalf("got %d conversations, want 1", len(convs))
	}
	if convs[0].LastMessage != "new" {
		t.Errorf("last message = %q, want new", convs[0].LastMessage)
	}
}

func TestMergeConversationCommutative(t *testing.T) {
	// Any arrival order of the same updates must converge on the greatest
	// timestamp.
	updates := []phone.ConversationSummary{
		{ThreadID: 7, LastMessage: "a", Timestamp: 50},
		{ThreadID: 7, LastMessage: "b", Timestamp: 300},
		{ThreadID: 7, LastMessage: "c", Timestamp: 100},
	}
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}, {2, 0, 1}}
	for _, order := range orders {
		s := New()
		s.SwitchDevice("dev1")
		for _, i := range order {
			s.MergeConversation(updates[i])
		}
		got := s.Conversations()[0]
		if got.LastMessage != "b" || got.Timestamp != 300 {
			t.Errorf("order %v converged on %q@%d, want b@300", order, got.LastMessage, got.Timestamp)
		}
	}
}

func TestMergeConversationTieLastWriteWins(t *testing.T) {
	s := New()
	s.SwitchDevice("dev1")
	s.MergeConversation(phone.ConversationSummary{ThreadID: 1, LastMessage: "first", Timestamp: 100})
	if !s.MergeConversation(phone.ConversationSummary{ThreadID: 1, LastMessage: "second", Timestamp: 100}) {
		t.Fatal("equal-timestamp merge rejected")
	}
	if got := s.Conversations()[0].LastMessage; got != "second" {
		t.Errorf("last message = %q, want second (last write wins on tie)", got)
	}
}

func TestMergeMessageOrderingAndDedup(t *testing.T) {
	s := New()
	s.SwitchDevice("dev1")

	msgs := []phone.Message{
		{UID: 3, ThreadID: 1, Timestamp: 300},
		{UID: 1, ThreadID: 1, Timestamp: 100},
		{UID: 5, ThreadID: 1, Timestamp: 200},
		{UID: 4, ThreadID: 1, Timestamp: 200},
	}
	for _, m := range msgs {
		if !s.MergeMessage(m) {
			t.Fatalf("merge of uid %d rejected", m.UID)
		}
	}
	if s.MergeMessage(phone.Message{UID: 3, ThreadID: 1, Timestamp: 300}) {
		t.Error("duplicate uid accepted")
	}

	got := s.Messages(1)
	wantUIDs := []int64{1, 4, 5, 3} // ts order, uid tie-break at ts=200
	if len(got) != len(wantUIDs) {
		t.Fatalf("got %d messages, want %d", len(got), len(wantUIDs))
	}
	for i, want := range wantUIDs {
		if got[i].UID != want {
			t.Errorf("position %d: uid = %d, want %d", i, got[i].UID, want)
		}
	}
}

func TestHasMessage(t *testing.T) {
	s := New()
	s.SwitchDevice("dev1")
	s.MergeMessage(phone.Message{UID: 9, ThreadID: 2, Timestamp: 10})

	if !s.HasMessage(2, 9) {
		t.Error("HasMessage(2, 9) = false, want true")
	}
	if s.HasMessage(2, 10) {
		t.Error("HasMessage(2, 10) = true, want false")
	}
	if s.HasMessage(3, 9) {
		t.Error("HasMessage(3, 9) = true, want false (other thread)")
	}
}

func TestSwitchDeviceClears(t *testing.T) {
	s := New()
	s.SwitchDevice("dev1")
	s.MergeConversation(phone.ConversationSummary{ThreadID: 1, Timestamp: 100})
	s.MergeMessage(phone.Message{UID: 1, ThreadID: 1, Timestamp: 100})

	// Same device: cache survives.
	s.SwitchDevice("dev1")
	if len(s.Conversations()) != 1 {
		t.Error("cache cleared on reopen of same device")
	}

	// Different device: cache cleared.
	s.SwitchDevice("dev2")
	if len(s.Conversations()) != 0 || s.HasMessage(1, 1) {
		t.Error("cache not cleared on device switch")
	}
}
