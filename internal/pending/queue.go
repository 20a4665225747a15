// Package pending is the durable FIFO log of cart mutations awaiting replay
// against the remote cart.
//
// Every change to the log is persisted immediately through storage.Store, so a
// restart picks up where the previous session stopped. Drain replays a
// snapshot of the log in creation order. A change that fails replay goes back
// into the log with its retry counter bumped, and is dropped once the counter
// reaches the cap. Drops are reported and published as ChangeDropped events
// because they are permanent losses of user edits.
package pending

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/shopfront/internal/events"
	"github.com/five82/shopfront/internal/report"
	"github.com/five82/shopfront/internal/storage"
)

// DefaultMaxRetries is the number of failed replays after which a change is
// dropped.
const DefaultMaxRetries = 3

// ErrDrainInProgress is returned by Drain while another Drain is running.
var ErrDrainInProgress = errors.New("pending: drain already in progress")

// ApplyFunc replays one change. A nil error removes it from the log.
type ApplyFunc func(ctx context.Context, change Change) error

// DrainResult summarizes one Drain pass.
type DrainResult struct {
	Applied int
	Retried []Change
	Dropped []Change
}

// Options configure a Queue.
type Options struct {
	Store      *storage.Store
	Bus        *events.Bus
	Reporter   report.Reporter
	MaxRetries int              // zero uses DefaultMaxRetries
	Now        func() time.Time // nil uses time.Now
}

// Queue is safe for concurrent use.
type Queue struct {
	mu         sync.Mutex
	entries    []Change
	draining   atomic.Bool
	store      *storage.Store
	bus        *events.Bus
	reporter   report.Reporter
	maxRetries int
	now        func() time.Time
}

// New builds a queue and loads any persisted entries.
func New(opts Options) *Queue {
	q := &Queue{
		store:      opts.Store,
		bus:        opts.Bus,
		reporter:   opts.Reporter,
		maxRetries: opts.MaxRetries,
		now:        opts.Now,
	}
	if q.store == nil {
		q.store = storage.New(nil, "", nil)
	}
	if q.reporter == nil {
		q.reporter = report.Nop{}
	}
	if q.maxRetries <= 0 {
		q.maxRetries = DefaultMaxRetries
	}
	if q.now == nil {
		q.now = time.Now
	}
	q.Load()
	return q
}

// Load replaces the in-memory log with the persisted one.
func (q *Queue) Load() {
	var entries []Change
	q.store.Load(storage.KeyPendingChanges, &entries)
	q.mu.Lock()
	q.entries = entries
	q.mu.Unlock()
}

// Enqueue assigns an ID and timestamp when missing, appends the change, and
// persists the log.
func (q *Queue) Enqueue(change Change) Change {
	if change.ID == "" {
		change.ID = newID()
	}
	if change.CreatedAt.IsZero() {
		change.CreatedAt = q.now().UTC()
	}

	q.mu.Lock()
	q.entries = append(q.entries, change)
	q.persistLocked()
	q.mu.Unlock()
	return change
}

// Count returns the number of queued changes.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a copy of the log in FIFO order.
func (q *Queue) Entries() []Change {
	q.mu.Lock()
	defer q.mu.Unlock()
	return cloneChanges(q.entries)
}

// Drain applies a snapshot of the log in order. The persisted log is
// updated after every change, so a crash mid-drain only repeats the change
// in flight. Changes enqueued while the drain runs stay behind the ones being
// retried. When ctx is cancelled the unattempted changes stay untouched.
func (q *Queue) Drain(ctx context.Context, apply ApplyFunc) (DrainResult, error) {
	if !q.draining.CompareAndSwap(false, true) {
		return DrainResult{}, ErrDrainInProgress
	}
	defer q.draining.Store(false)

	q.mu.Lock()
	batch := cloneChanges(q.entries)
	q.mu.Unlock()

	var result DrainResult
	// pos is the index of the change in flight; earlier entries are retries.
	pos := 0
	for _, change := range batch {
		if ctx.Err() != nil {
			break
		}
		err := apply(ctx, change)

		dropped := false
		q.mu.Lock()
		if err == nil {
			result.Applied++
			q.entries = append(q.entries[:pos:pos], q.entries[pos+1:]...)
		} else {
			change.RetryCount++
			change.LastError = err.Error()
			if change.RetryCount >= q.maxRetries {
				dropped = true
				result.Dropped = append(result.Dropped, change)
				q.entries = append(q.entries[:pos:pos], q.entries[pos+1:]...)
			} else {
				result.Retried = append(result.Retried, change)
				q.entries[pos] = change
				pos++
			}
		}
		q.persistLocked()
		q.mu.Unlock()

		if dropped {
			q.drop(change)
		}
	}

	return result, ctx.Err()
}

func (q *Queue) drop(change Change) {
	q.reporter.Report(report.Report{
		Severity: report.SeverityWarn,
		Kind:     report.KindExhaustedRetry,
		Message:  "dropping pending change after repeated failures",
		Fields: map[string]any{
			"change_id": change.ID,
			"kind":      string(change.Kind),
			"item_id":   change.TargetItemID(),
			"attempts":  change.RetryCount,
			"error":     change.LastError,
		},
	})
	if q.bus != nil {
		q.bus.Emit(events.Dropped(events.DroppedChange{
			ChangeID:  change.ID,
			Kind:      string(change.Kind),
			ItemID:    change.TargetItemID(),
			Attempts:  change.RetryCount,
			LastError: change.LastError,
		}))
	}
}

func (q *Queue) persistLocked() {
	if len(q.entries) == 0 {
		q.store.Save(storage.KeyPendingChanges, []Change{})
		return
	}
	q.store.Save(storage.KeyPendingChanges, q.entries)
}

func cloneChanges(in []Change) []Change {
	out := make([]Change, len(in))
	for i, c := range in {
		if c.Payload.Item != nil {
			item := *c.Payload.Item
			c.Payload.Item = &item
		}
		out[i] = c
	}
	return out
}
