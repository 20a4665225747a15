package cartview

import (
	"sync"
	"time"

	"github.com/five82/shopfront/internal/cartapi"
	"github.com/five82/shopfront/internal/events"
)

// Snapshot is a point-in-time copy of the view state.
type Snapshot struct {
	State
	LastUpdated time.Time
}

// Store coordinates concurrent dispatches and reads.
type Store struct {
	mu          sync.RWMutex
	state       State
	lastUpdated time.Time
}

// NewStore starts from the given cart and connectivity.
func NewStore(items []cartapi.CartItem, online bool) *Store {
	return &Store{state: State{Items: cartapi.CloneItems(items), Online: online}}
}

// Dispatch reduces a into the current state.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, a)
	s.lastUpdated = time.Now()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{State: s.state, LastUpdated: s.lastUpdated}
	snap.Items = cartapi.CloneItems(s.state.Items)
	return snap
}

// Bind feeds cart and connectivity events from bus into the store. The
// returned func unsubscribes.
func (s *Store) Bind(bus *events.Bus) func() {
	subs := []events.Subscription{
		bus.On(events.CartUpdated, func(ev events.Event) {
			s.Dispatch(Action{Type: SetSnapshot, Items: ev.Items})
		}),
		bus.On(events.OnlineModeEntered, func(events.Event) {
			s.Dispatch(Action{Type: SetOnlineStatus, Online: true})
		}),
		bus.On(events.OfflineModeEntered, func(events.Event) {
			s.Dispatch(Action{Type: SetOnlineStatus, Online: false})
		}),
	}
	return func() {
		for _, sub := range subs {
			bus.Off(sub)
		}
	}
}
