// Package events is an in-process publish/subscribe bus with a fixed event
// vocabulary.
package events

import (
	"fmt"
	"sync"

	"github.com/five82/shopfront/internal/cartapi"
	"github.com/five82/shopfront/internal/report"
)

// Kind enumerates the events the bus carries.
type Kind int

const (
	CartUpdated Kind = iota + 1
	ProductsUpdated
	OnlineModeEntered
	OfflineModeEntered
	ChangeDropped
)

func (k Kind) String() string {
	switch k {
	case CartUpdated:
		return "cart_updated"
	case ProductsUpdated:
		return "products_updated"
	case OnlineModeEntered:
		return "online_mode"
	case OfflineModeEntered:
		return "offline_mode"
	case ChangeDropped:
		return "change_dropped"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DroppedChange describes a queued mutation abandoned after too many failed
// replays.
type DroppedChange struct {
	ChangeID  string
	Kind      string
	ItemID    string
	Attempts  int
	LastError string
}

// Event is a tagged union: the payload field that matters is fixed by Kind.
type Event struct {
	Kind     Kind
	Items    []cartapi.CartItem // CartUpdated
	Products []cartapi.Product  // ProductsUpdated
	Dropped  *DroppedChange     // ChangeDropped
}

// Cart builds a CartUpdated event.
func Cart(items []cartapi.CartItem) Event {
	return Event{Kind: CartUpdated, Items: cartapi.CloneItems(items)}
}

// Products builds a ProductsUpdated event.
func Products(products []cartapi.Product) Event {
	dup := make([]cartapi.Product, len(products))
	copy(dup, products)
	return Event{Kind: ProductsUpdated, Products: dup}
}

// Online builds an OnlineModeEntered event.
func Online() Event { return Event{Kind: OnlineModeEntered} }

// Offline builds an OfflineModeEntered event.
func Offline() Event { return Event{Kind: OfflineModeEntered} }

// Dropped builds a ChangeDropped event.
func Dropped(d DroppedChange) Event { return Event{Kind: ChangeDropped, Dropped: &d} }

// Handler receives events.
type Handler func(Event)

// Subscription identifies one registration. Pass it to Off to unregister.
type Subscription struct {
	kind Kind
	id   uint64
}

type registration struct {
	id      uint64
	handler Handler
}

// Bus dispatches events to handlers. The zero value is not usable; call New.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Kind][]registration
	reporter report.Reporter
}

// New returns an empty bus. reporter receives handler panics; nil discards them.
func New(reporter report.Reporter) *Bus {
	if reporter == nil {
		reporter = report.Nop{}
	}
	return &Bus{handlers: make(map[Kind][]registration), reporter: reporter}
}

// On registers handler for kind.
func (b *Bus) On(kind Kind, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[kind] = append(b.handlers[kind], registration{id: b.nextID, handler: handler})
	return Subscription{kind: kind, id: b.nextID}
}

// Off removes the registration. Unknown or already removed subscriptions are
// ignored.
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.handlers[sub.kind]
	for i, reg := range regs {
		if reg.id == sub.id {
			next := make([]registration, 0, len(regs)-1)
			next = append(next, regs[:i]...)
			next = append(next, regs[i+1:]...)
			b.handlers[sub.kind] = next
			return
		}
	}
}

// Emit calls every handler registered for ev.Kind at the time of the call, in
// registration order, on the calling goroutine. A panicking handler is
// reported and skipped.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	regs := b.handlers[ev.Kind]
	b.mu.RUnlock()

	for _, reg := range regs {
		b.call(reg, ev)
	}
}

// Count returns the number of handlers registered for kind.
func (b *Bus) Count(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}

func (b *Bus) call(reg registration, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.reporter.Report(report.Report{
				Severity: report.SeverityError,
				Kind:     report.KindHandlerPanic,
				Message:  "event handler panicked",
				Err:      fmt.Errorf("%v", r),
				Fields:   map[string]any{"event": ev.Kind.String(), "handler": reg.id},
			})
		}
	}()
	reg.handler(ev)
}
