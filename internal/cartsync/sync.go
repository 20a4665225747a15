package cartsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/five82/shopfront/internal/cartapi"
	"github.com/five82/shopfront/internal/connectivity"
	"github.com/five82/shopfront/internal/events"
	"github.com/five82/shopfront/internal/pending"
	"github.com/five82/shopfront/internal/report"
	"github.com/five82/shopfront/internal/storage"
)

var (
	// ErrItemNotFound is returned when an itemId is not in the cart.
	ErrItemNotFound = cartapi.ErrItemNotFound
	// ErrOffline is returned by Drain while the monitor reports offline.
	ErrOffline = errors.New("cartsync: offline")
)

// Deps are the collaborators of a Synchronizer. API is required; the rest
// default to in-memory or no-op implementations.
type Deps struct {
	API      cartapi.CartAPI
	Store    *storage.Store
	Bus      *events.Bus
	Queue    *pending.Queue
	Monitor  *connectivity.Monitor
	Reporter report.Reporter
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

// Synchronizer owns the local cart snapshot and the pending queue.
type Synchronizer struct {
	api      cartapi.CartAPI
	store    *storage.Store
	bus      *events.Bus
	queue    *pending.Queue
	monitor  *connectivity.Monitor
	reporter report.Reporter
	logger   logrus.FieldLogger
	now      func() time.Time

	// lock serializes mutations and drains, network phase included.
	lock *semaphore.Weighted

	mu    sync.Mutex
	items []cartapi.CartItem
}

// New builds a Synchronizer and loads the persisted cart snapshot.
func New(d Deps) (*Synchronizer, error) {
	if d.API == nil {
		return nil, errors.New("cartsync: API is required")
	}
	if d.Reporter == nil {
		d.Reporter = report.Nop{}
	}
	if d.Store == nil {
		d.Store = storage.New(nil, "", d.Reporter)
	}
	if d.Bus == nil {
		d.Bus = events.New(d.Reporter)
	}
	if d.Queue == nil {
		d.Queue = pending.New(pending.Options{Store: d.Store, Bus: d.Bus, Reporter: d.Reporter})
	}
	if d.Monitor == nil {
		d.Monitor = connectivity.NewMonitor(true, d.Bus)
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	s := &Synchronizer{
		api:      d.API,
		store:    d.Store,
		bus:      d.Bus,
		queue:    d.Queue,
		monitor:  d.Monitor,
		reporter: d.Reporter,
		logger:   d.Logger,
		now:      d.Now,
		lock:     semaphore.NewWeighted(1),
	}
	var persisted []cartapi.CartItem
	s.store.Load(storage.KeyCartItems, &persisted)
	s.items = Normalize(persisted)
	return s, nil
}

// Bus returns the event bus the synchronizer publishes on.
func (s *Synchronizer) Bus() *events.Bus { return s.bus }

// Online reports the monitor state.
func (s *Synchronizer) Online() bool { return s.monitor.Online() }

// PendingCount returns the number of unconfirmed changes.
func (s *Synchronizer) PendingCount() int { return s.queue.Count() }

// PendingChanges returns the queued changes in replay order.
func (s *Synchronizer) PendingChanges() []pending.Change { return s.queue.Entries() }

// LocalItems returns the last known snapshot without touching the network.
func (s *Synchronizer) LocalItems() []cartapi.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cartapi.CloneItems(s.items)
}

// LastSync returns the time of the last successful remote cart read.
func (s *Synchronizer) LastSync() (time.Time, bool) {
	var ts time.Time
	if !s.store.Load(storage.KeyLastSync, &ts) || ts.IsZero() {
		return time.Time{}, false
	}
	return ts, true
}

// WatchConnectivity drains the queue every time the monitor comes back
// online. The drain runs on the goroutine that signalled the transition.
func (s *Synchronizer) WatchConnectivity(ctx context.Context) {
	s.monitor.OnRestore(func() {
		res, err := s.Drain(ctx)
		switch {
		case errors.Is(err, pending.ErrDrainInProgress), errors.Is(err, ErrOffline):
			return
		case err != nil:
			s.logger.WithError(err).Warn("drain after reconnect failed")
		}
		s.logger.WithFields(logrus.Fields{
			"applied": res.Applied,
			"retried": len(res.Retried),
			"dropped": len(res.Dropped),
		}).Info("replayed pending changes")
	})
}

// GetItems returns the remote cart when online and the persisted one
// otherwise. A failed remote read falls back to the persisted snapshot.
func (s *Synchronizer) GetItems(ctx context.Context) ([]cartapi.CartItem, error) {
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.lock.Release(1)
	return s.fetchLocked(ctx), nil
}

// Products returns the catalog, caching it for offline use.
func (s *Synchronizer) Products(ctx context.Context) ([]cartapi.Product, error) {
	if s.monitor.Online() {
		products, err := s.api.FetchProducts(ctx)
		if err == nil {
			s.store.Save(storage.KeyProducts, products)
			s.bus.Emit(events.Products(products))
			return products, nil
		}
		s.reportNetwork("fetch products", "", err)
	}
	var cached []cartapi.Product
	s.store.Load(storage.KeyProducts, &cached)
	if cached == nil {
		cached = []cartapi.Product{}
	}
	return cached, nil
}

// Refresh reloads products and cart concurrently.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.Products(gctx)
		return err
	})
	g.Go(func() error {
		_, err := s.GetItems(gctx)
		return err
	})
	return g.Wait()
}

// Add puts item in the cart, merging quantities with an existing entry. On a
// remote failure the add is queued, applied locally, and the error returned.
func (s *Synchronizer) Add(ctx context.Context, item cartapi.NewItem) ([]cartapi.CartItem, error) {
	item.ItemID = strings.TrimSpace(item.ItemID)
	if item.ItemID == "" {
		return nil, errors.New("add: item id required")
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.lock.Release(1)

	local := func() []cartapi.CartItem {
		return s.applyLocal(func(items []cartapi.CartItem) []cartapi.CartItem {
			return mergeAdd(items, item)
		})
	}

	if !s.monitor.Online() {
		s.queue.Enqueue(pending.Add(item))
		return local(), nil
	}
	if _, err := s.api.AddItem(ctx, item); err != nil {
		s.queue.Enqueue(pending.Add(item))
		s.reportNetwork("add item", item.ItemID, err)
		return local(), fmt.Errorf("add %s: %w", item.ItemID, err)
	}
	return s.reconcileLocked(ctx, local), nil
}

// UpdateQuantity replaces the quantity of an item already in the cart. A
// quantity of zero or less removes the item.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, itemID string, quantity int) ([]cartapi.CartItem, error) {
	if quantity <= 0 {
		return s.Remove(ctx, itemID)
	}
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.lock.Release(1)

	local := func() []cartapi.CartItem {
		return s.applyLocal(func(items []cartapi.CartItem) []cartapi.CartItem {
			return setQuantity(items, itemID, quantity)
		})
	}
	known := s.hasLocal(itemID)

	if !s.monitor.Online() {
		if !known {
			s.reportNotFound("update quantity", itemID)
			return s.LocalItems(), fmt.Errorf("update %s: %w", itemID, ErrItemNotFound)
		}
		s.queue.Enqueue(pending.UpdateQuantity(itemID, quantity))
		return local(), nil
	}

	_, err := s.api.UpdateItem(ctx, itemID, quantity)
	switch {
	case err == nil:
		return s.reconcileLocked(ctx, local), nil
	case errors.Is(err, ErrItemNotFound) && !s.hasPendingFor(itemID):
		// The remote cart does not have it and no queued change will create it.
		s.reportNotFound("update quantity", itemID)
		gone := func() []cartapi.CartItem {
			return s.applyLocal(func(items []cartapi.CartItem) []cartapi.CartItem {
				return removeItem(items, itemID)
			})
		}
		return s.reconcileLocked(ctx, gone), fmt.Errorf("update %s: %w", itemID, ErrItemNotFound)
	default:
		s.queue.Enqueue(pending.UpdateQuantity(itemID, quantity))
		s.reportNetwork("update item", itemID, err)
		return local(), fmt.Errorf("update %s: %w", itemID, err)
	}
}

// Remove deletes itemID from the cart. Removing an item the remote cart does
// not have counts as success.
func (s *Synchronizer) Remove(ctx context.Context, itemID string) ([]cartapi.CartItem, error) {
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.lock.Release(1)

	local := func() []cartapi.CartItem {
		return s.applyLocal(func(items []cartapi.CartItem) []cartapi.CartItem {
			return removeItem(items, itemID)
		})
	}

	if !s.monitor.Online() {
		s.queue.Enqueue(pending.Remove(itemID))
		return local(), nil
	}
	err := s.api.RemoveItem(ctx, itemID)
	if err != nil && !errors.Is(err, ErrItemNotFound) {
		s.queue.Enqueue(pending.Remove(itemID))
		s.reportNetwork("remove item", itemID, err)
		return local(), fmt.Errorf("remove %s: %w", itemID, err)
	}
	return s.reconcileLocked(ctx, local), nil
}

// Clear empties the cart. A remote clear that fails partway leaves the
// already deleted items deleted; the clear is queued and retried whole.
func (s *Synchronizer) Clear(ctx context.Context) ([]cartapi.CartItem, error) {
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.lock.Release(1)

	local := func() []cartapi.CartItem {
		return s.applyLocal(func([]cartapi.CartItem) []cartapi.CartItem { return nil })
	}

	if !s.monitor.Online() {
		s.queue.Enqueue(pending.Clear())
		return local(), nil
	}
	if err := s.api.ClearAll(ctx); err != nil {
		s.queue.Enqueue(pending.Clear())
		s.reportNetwork("clear cart", "", err)
		return local(), fmt.Errorf("clear: %w", err)
	}
	return s.reconcileLocked(ctx, local), nil
}

// Drain replays queued changes in order and then reconciles with the remote
// cart.
func (s *Synchronizer) Drain(ctx context.Context) (pending.DrainResult, error) {
	if !s.monitor.Online() {
		return pending.DrainResult{}, ErrOffline
	}
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return pending.DrainResult{}, err
	}
	defer s.lock.Release(1)

	res, err := s.queue.Drain(ctx, s.replay)
	if errors.Is(err, pending.ErrDrainInProgress) {
		return res, err
	}
	s.fetchLocked(ctx)
	return res, err
}

func (s *Synchronizer) replay(ctx context.Context, change pending.Change) error {
	log := s.logger.WithFields(logrus.Fields{
		"change_id": change.ID,
		"kind":      string(change.Kind),
		"item_id":   change.TargetItemID(),
	})
	var err error
	switch change.Kind {
	case pending.KindAdd:
		if change.Payload.Item == nil {
			log.Warn("skipping add without item payload")
			return nil
		}
		_, err = s.api.AddItem(ctx, *change.Payload.Item)
	case pending.KindUpdateQuantity:
		_, err = s.api.UpdateItem(ctx, change.Payload.ItemID, change.Payload.Quantity)
	case pending.KindRemove:
		err = s.api.RemoveItem(ctx, change.Payload.ItemID)
	case pending.KindClear:
		err = s.api.ClearAll(ctx)
	default:
		log.Warn("skipping pending change of unknown kind")
		return nil
	}
	if errors.Is(err, ErrItemNotFound) {
		// Nothing left to update or remove remotely.
		log.Debug("pending change target no longer exists")
		return nil
	}
	if err != nil {
		log.WithError(err).Debug("pending change replay failed")
	}
	return err
}

// reconcileLocked replaces the local snapshot with the remote one. If the
// re-fetch fails the optimistic fallback is applied instead.
func (s *Synchronizer) reconcileLocked(ctx context.Context, fallback func() []cartapi.CartItem) []cartapi.CartItem {
	items, err := s.api.FetchItems(ctx)
	if err != nil {
		s.reportNetwork("refresh cart", "", err)
		return fallback()
	}
	return s.commitRemote(items)
}

// fetchLocked reads the remote cart when online, otherwise the local one.
func (s *Synchronizer) fetchLocked(ctx context.Context) []cartapi.CartItem {
	if s.monitor.Online() {
		items, err := s.api.FetchItems(ctx)
		if err == nil {
			return s.commitRemote(items)
		}
		s.reportNetwork("fetch cart", "", err)
	}
	return s.LocalItems()
}

func (s *Synchronizer) commitRemote(items []cartapi.CartItem) []cartapi.CartItem {
	items = Normalize(items)
	s.setItems(items)
	s.store.Save(storage.KeyLastSync, s.now().UTC())
	s.bus.Emit(events.Cart(items))
	return cartapi.CloneItems(items)
}

// applyLocal runs an optimistic edit against the local snapshot, persists the
// result and emits it.
func (s *Synchronizer) applyLocal(edit func([]cartapi.CartItem) []cartapi.CartItem) []cartapi.CartItem {
	items := Normalize(edit(s.LocalItems()))
	s.setItems(items)
	s.bus.Emit(events.Cart(items))
	return cartapi.CloneItems(items)
}

func (s *Synchronizer) setItems(items []cartapi.CartItem) {
	s.mu.Lock()
	s.items = cartapi.CloneItems(items)
	s.mu.Unlock()
	s.store.Save(storage.KeyCartItems, items)
}

func (s *Synchronizer) hasLocal(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOf(s.items, itemID) >= 0
}

func (s *Synchronizer) hasPendingFor(itemID string) bool {
	for _, c := range s.queue.Entries() {
		if c.Kind == pending.KindAdd && c.TargetItemID() == itemID {
			return true
		}
	}
	return false
}

func (s *Synchronizer) reportNetwork(op, itemID string, err error) {
	fields := map[string]any{"op": op}
	if itemID != "" {
		fields["item_id"] = itemID
	}
	var netErr *cartapi.NetworkError
	if errors.As(err, &netErr) && netErr.Status != 0 {
		fields["status"] = netErr.Status
	}
	s.reporter.Report(report.Report{
		Severity: report.SeverityWarn,
		Kind:     report.KindNetwork,
		Message:  op + " failed",
		Err:      err,
		Fields:   fields,
	})
}

func (s *Synchronizer) reportNotFound(op, itemID string) {
	s.reporter.Report(report.Report{
		Severity: report.SeverityInfo,
		Kind:     report.KindItemNotFound,
		Message:  op + ": item not in cart",
		Fields:   map[string]any{"op": op, "item_id": itemID},
	})
}
