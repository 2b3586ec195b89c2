package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conv.", 10)
	defer unsub()

	b.Publish(Signal{Kind: KindConversationCreated, DeviceID: "dev1", ThreadID: 42, Timestamp: time.Now()})

	select {
	case sig := <-ch:
		if sig.Kind != KindConversationCreated {
			t.Errorf("got kind %q, want %q", sig.Kind, KindConversationCreated)
		}
		if sig.ThreadID != 42 {
			t.Errorf("got thread %d, want 42", sig.ThreadID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for signal")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	convCh, unsub1 := b.Subscribe("conv.", 10)
	defer unsub1()
	msgCh, unsub2 := b.Subscribe("msg.", 10)
	defer unsub2()

	b.Publish(Signal{Kind: KindMessageUpdated, Timestamp: time.Now()})

	select {
	case sig := <-msgCh:
		if sig.Kind != KindMessageUpdated {
			t.Errorf("got kind %q, want %q", sig.Kind, KindMessageUpdated)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for msg signal")
	}

	select {
	case sig := <-convCh:
		t.Errorf("conv subscriber received unrelated signal %q", sig.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("msg.", 10)
	unsub()

	b.Publish(Signal{Kind: KindMessageUpdated, Timestamp: time.Now()})

	select {
	case sig := <-ch:
		t.Errorf("received signal %q after unsubscribe", sig.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFullSubscriberDoesNotBlock(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("msg.", 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Signal{Kind: KindMessageUpdated, Timestamp: time.Now()})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}
