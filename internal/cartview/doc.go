// Package cartview holds the cart state the UI renders.
//
// The state changes only through Reduce, a pure function over a fixed action
// vocabulary. Store wraps it with a readers-writer lock so the event bus can
// dispatch from background goroutines while the UI reads snapshots:
//
//	Producer (bus handlers):        Consumer (UI):
//	┌─────────────────────┐         ┌──────────────────┐
//	│ CartUpdated         │         │                  │
//	│ OnlineModeEntered   │──────→  │ store.Snapshot() │
//	│ OfflineModeEntered  │ (mutex) │       ↓          │
//	│   store.Dispatch()  │         │  render          │
//	└─────────────────────┘         └──────────────────┘
//
// Snapshots are copies. Mutating a returned snapshot never affects the store.
//
// The storefront UI never dispatches Optimistic* actions itself. Its cart
// edits go through cartsync, which applies the optimistic edit and publishes
// the result as CartUpdated; Bind turns that into SetSnapshot. The Optimistic*
// actions serve callers that edit a view without a synchronizer.
package cartview
