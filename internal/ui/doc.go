// Package ui is the bubbletea storefront.
//
// The screen has two panes. The left pane lists the catalog in a bubbles
// table; the right pane is the cart. A header carries the online/offline
// banner and the number of queued changes, and recent notifications stack
// above the key hints.
//
// # Data flow
//
//	cartsync.Synchronizer ──CartUpdated──▶ cartview.Store ──Snapshot──▶ Model.View
//	        ▲
//	        │ tea.Cmd
//	        └──────────── Model.Update
//
// Key presses start a tea.Cmd that calls the synchronizer off the UI
// goroutine. The synchronizer applies its own optimistic edit and publishes
// the cart it holds, so the view store only ever shows that cart. The
// command's result becomes a toast and a snapshot re-read; a tick re-reads
// the view store so background replays show up without input.
//
// # Files
//
//   - model.go: Model, Options, Update and key handling
//   - commands.go: messages and the tea.Cmd wrappers around the synchronizer
//   - render.go: header, panes, toasts, footer and the help overlay
//   - notify.go: connectivity and dropped-change notifications
//   - keys.go, theme.go: bindings and palettes
package ui
