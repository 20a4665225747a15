// Package cartsync reconciles the local cart with the remote cart store.
//
// A Synchronizer owns three things: the local cart snapshot (persisted under
// storage.KeyCartItems), the pending change queue, and a single-slot mutation
// lock. Every cart operation runs under the lock from start to finish, so two
// mutations never interleave their network calls and a stale re-fetch cannot
// overwrite a newer one. Drain takes the same lock.
//
// # Online and offline paths
//
// While the connectivity monitor reports online, an operation is sent to the
// remote API and, on success, the whole remote cart is re-fetched and becomes
// the new snapshot. The remote store is authoritative for merged quantities
// and persistence identifiers.
//
// When the remote call fails, the operation is queued, the same edit is
// applied to the local snapshot, and the error is returned wrapped. Callers can
// show a notice while the cart already reflects the attempted change.
//
// While offline, the operation is queued and applied locally without an
// error. The one exception is UpdateQuantity on an item the local snapshot
// does not hold, which fails with ErrItemNotFound and leaves the queue alone.
//
// # Snapshots and events
//
// Snapshots are replaced wholesale and always normalized (see Normalize). Each
// replacement is persisted and published as a CartUpdated event on the
// synchronizer's bus. Handlers run while the mutation lock is held and must
// not call back into the Synchronizer on the same goroutine.
//
// # Reconnection
//
// WatchConnectivity registers a restore hook on the monitor. After each
// offline to online transition the queue is drained in creation order through
// the remote API and the cart is re-fetched once. Replays that find their
// target gone (ErrItemNotFound) count as applied.
package cartsync
