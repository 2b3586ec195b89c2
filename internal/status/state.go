package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mvasconc/phonelink/internal/bus"
)

// State represents a daemon runtime state.
type State string

const (
	Booting      State = "BOOTING"
	Connecting   State = "CONNECTING"
	Watching     State = "WATCHING"
	Reconnecting State = "RECONNECTING"
	Degraded     State = "DEGRADED"
	Error        State = "ERROR"
)

// validTransitions defines allowed state transitions. Degraded means the
// bus connection is up but the paired device is unreachable.
var validTransitions = map[State][]State{
	Booting:      {Connecting, Error},
	Connecting:   {Watching, Degraded, Reconnecting, Error},
	Watching:     {Reconnecting, Degraded, Error},
	Reconnecting: {Connecting, Watching, Degraded, Error},
	Degraded:     {Connecting, Watching, Reconnecting, Error},
	Error:        {Booting},
}

// Machine tracks and enforces daemon runtime state transitions.
type Machine struct {
	mu       sync.RWMutex
	current  State
	deviceID string
	bus      *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus, deviceID string) *Machine {
	return &Machine{
		current:  Booting,
		deviceID: deviceID,
		bus:      b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Signal{
			Kind:      bus.KindStatusChanged,
			DeviceID:  m.deviceID,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change signals.
type StatusChange struct {
	From State
	To   State
}
