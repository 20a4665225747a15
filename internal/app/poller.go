package app

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/five82/shopfront/internal/cartsync"
	"github.com/five82/shopfront/internal/pending"
)

const defaultPollInterval = 30 * time.Second

// StartPoller refreshes the cart and catalog at a fixed cadence while the
// backend is reachable, replaying queued changes first. Changes queued after
// a failed request while still online are picked up here since no
// reconnection will trigger them. The returned channel closes when the
// goroutine exits.
func StartPoller(ctx context.Context, syncer *cartsync.Synchronizer, interval time.Duration, logger logrus.FieldLogger) <-chan struct{} {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			poll(ctx, syncer, logger)
		}
	}()
	return done
}

func poll(ctx context.Context, syncer *cartsync.Synchronizer, logger logrus.FieldLogger) {
	if !syncer.Online() {
		return
	}
	if syncer.PendingCount() > 0 {
		res, err := syncer.Drain(ctx)
		switch {
		case errors.Is(err, pending.ErrDrainInProgress), errors.Is(err, cartsync.ErrOffline):
		case err != nil:
			logger.WithError(err).Warn("pending replay failed")
		default:
			logger.WithFields(logrus.Fields{
				"applied": res.Applied,
				"retried": len(res.Retried),
				"dropped": len(res.Dropped),
			}).Debug("replayed pending changes")
		}
		return
	}
	if err := syncer.Refresh(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Warn("cart refresh failed")
	}
}
