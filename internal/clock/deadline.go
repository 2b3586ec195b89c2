// Package clock provides a resettable one-shot deadline timer used by the
// sync engines. A Deadline is armed to an absolute point in time, may be
// rearmed at any moment, and fires at most once per arming on its channel.
package clock

import "time"

// Deadline is a monotonic one-shot timer. The zero value is not usable;
// call New. Not safe for concurrent use: each session owns its deadlines
// and drives them from a single goroutine.
type Deadline struct {
	timer *time.Timer
	armed bool
	when  time.Time
}

// New returns a disarmed deadline.
func New() *Deadline {
	t := time.NewTimer(0)
	if !t.Stop() {
		<-t.C
	}
	return &Deadline{timer: t}
}

// Arm sets the deadline to fire after d. Rearms if already armed.
func (dl *Deadline) Arm(d time.Duration) {
	dl.ArmAt(time.Now().Add(d))
}

// ArmAt sets the deadline to fire at t. Rearms if already armed.
func (dl *Deadline) ArmAt(t time.Time) {
	dl.drain()
	dl.timer.Reset(time.Until(t))
	dl.armed = true
	dl.when = t
}

// Disarm stops the deadline. The channel will not fire until rearmed.
func (dl *Deadline) Disarm() {
	dl.drain()
	dl.armed = false
	dl.when = time.Time{}
}

// C returns the channel the deadline fires on. The consumer must call
// Disarm or rearm after a receive; the timer does not repeat.
func (dl *Deadline) C() <-chan time.Time {
	return dl.timer.C
}

// Armed reports whether the deadline is currently armed.
func (dl *Deadline) Armed() bool {
	return dl.armed
}

// When returns the time the deadline is armed to fire at, or the zero time
// if disarmed.
func (dl *Deadline) When() time.Time {
	return dl.when
}

func (dl *Deadline) drain() {
	if !dl.timer.Stop() {
		select {
		case <-dl.timer.C:
		default:
		}
	}
}
