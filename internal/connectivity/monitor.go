// Package connectivity tracks whether the storefront backend is reachable.
//
// Monitor is a two-state machine (online, offline) driven only by Signal.
// Repeated signals for the current state are dropped, so each outage produces
// exactly one OfflineModeEntered and one OnlineModeEntered. Prober is one
// signal source: it probes the backend on an interval and converts sustained
// failures or a recovery into Signal calls.
package connectivity

import (
	"sync"

	"github.com/five82/shopfront/internal/events"
)

// Monitor holds the process-wide online flag.
type Monitor struct {
	// signalMu orders a transition and its event against other transitions.
	signalMu sync.Mutex

	mu             sync.Mutex
	online         bool
	hasBeenOffline bool
	bus            *events.Bus
	onRestore      []func()
}

// NewMonitor starts in the given state. Callers that cannot sample the
// environment should pass true.
func NewMonitor(online bool, bus *events.Bus) *Monitor {
	return &Monitor{online: online, hasBeenOffline: !online, bus: bus}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// HasBeenOffline reports whether the session has seen an outage. The UI uses
// it to suppress a "back online" notice on first load.
func (m *Monitor) HasBeenOffline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasBeenOffline
}

// OnRestore registers fn to run after every offline to online transition.
// Hooks run on the signalling goroutine after the event is emitted.
func (m *Monitor) OnRestore(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRestore = append(m.onRestore, fn)
}

// Signal feeds an environment observation. It returns true when the state
// changed. Concurrent signals are applied one at a time, each emitting its
// event before the next transition, so subscribers see events in state
// order. Restore hooks run after the transition is released.
func (m *Monitor) Signal(online bool) bool {
	m.signalMu.Lock()
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		m.signalMu.Unlock()
		return false
	}
	m.online = online
	if !online {
		m.hasBeenOffline = true
	}
	hooks := append([]func(){}, m.onRestore...)
	m.mu.Unlock()

	if !online {
		m.emit(events.Offline())
		m.signalMu.Unlock()
		return true
	}
	m.emit(events.Online())
	m.signalMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	return true
}

func (m *Monitor) emit(ev events.Event) {
	if m.bus != nil {
		m.bus.Emit(ev)
	}
}
