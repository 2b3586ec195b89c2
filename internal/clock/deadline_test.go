package clock

import (
	"testing"
	"time"
)

func TestDeadlineFires(t *testing.T) {
	dl := New()
	dl.Arm(20 * time.Millisecond)

	select {
	case <-dl.C():
	case <-time.After(time.Second):
		t.Fatal("deadline never fired")
	}
}

func TestDeadlineReset(t *testing.T) {
	dl := New()
	dl.Arm(50 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	// Rearming pushes the expiry out past the original deadline.
	dl.Arm(100 * time.Millisecond)

	select {
	case <-dl.C():
		t.Fatal("deadline fired at the original expiry despite rearm")
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case <-dl.C():
	case <-time.After(time.Second):
		t.Fatal("rearmed deadline never fired")
	}
}

func TestDeadlineDisarm(t *testing.T) {
	dl := New()
	dl.Arm(20 * time.Millisecond)
	dl.Disarm()

	if dl.Armed() {
		t.Error("deadline reports armed after Disarm")
	}

	select {
	case <-dl.C():
		t.Fatal("disarmed deadline fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDeadlineRearmAfterFire(t *testing.T) {
	dl := New()
	dl.Arm(10 * time.Millisecond)
	<-dl.C()

	dl.Arm(10 * time.Millisecond)
	select {
	case <-dl.C():
	case <-time.After(time.Second):
		t.Fatal("deadline did not fire after rearm")
	}
}
