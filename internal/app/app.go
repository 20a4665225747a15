package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/five82/shopfront/internal/config"
	"github.com/five82/shopfront/internal/prefs"
	"github.com/five82/shopfront/internal/ui"
)

// Options configure the storefront TUI.
type Options struct {
	Config  config.Config
	Offline bool          // start disconnected and never probe
	UITick  time.Duration // zero uses the UI default
}

// Run boots the storefront TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	rt, err := Build(opts.Config, BuildOptions{Offline: opts.Offline})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(ctx)
	wait := rt.Start(ctx)
	defer wait()
	defer cancel()

	unnotify := ui.Notify(rt.Bus, rt.Toasts, rt.Monitor.HasBeenOffline)
	defer unnotify()

	rt.Logger.WithFields(logrus.Fields{
		"api":     rt.Client.BaseURL(),
		"backend": rt.Config.Storage.Backend,
		"offline": opts.Offline,
		"pending": rt.Sync.PendingCount(),
	}).Info("shopfront starting")

	userPrefs := prefs.Load(rt.Store)
	if err := ui.Run(ui.Options{
		Context:   ctx,
		Sync:      rt.Sync,
		View:      rt.View,
		Toasts:    rt.Toasts,
		Prefs:     rt.Store,
		ThemeName: userPrefs.Theme,
		PollTick:  opts.UITick,
	}); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
