// Package app is the composition root for shopfront.
//
// Build turns a config.Config into a Runtime: the logrus logger, the storage
// medium picked by storage.backend, the event bus, the connectivity monitor,
// the pending queue, the HTTP cart client, the synchronizer and the view
// store. The CLI commands use a Runtime directly; Run adds the TUI on top.
//
// # Startup
//
//	Build()
//	  ├─> newLogger()            level, format, file
//	  ├─> openMedium()           file | memory | redis, degrades to none
//	  ├─> events.New()
//	  ├─> connectivity.NewMonitor()
//	  ├─> pending.New()          loads pending_changes
//	  ├─> cartapi.NewClient()
//	  ├─> cartsync.New()         loads cart_items
//	  └─> cartview.NewStore()
//
//	Runtime.Start()
//	  ├─> View.Bind(bus)
//	  ├─> Sync.WatchConnectivity()  replay on reconnect
//	  ├─> Prober.Start()            online/offline signals
//	  └─> StartPoller()             periodic replay or refresh
//
// With BuildOptions.Offline the monitor starts offline and neither the
// prober nor the poller runs, so every mutation is queued.
//
// # Errors
//
// Build fails only on an invalid log setup or API base URL. Storage that
// cannot be opened is logged and the runtime keeps the cart in memory.
package app
