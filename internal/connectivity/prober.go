package connectivity

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultProbeInterval    = 2 * time.Second
	defaultFailureThreshold = 2
	maxBackoff              = 30 * time.Second
)

// ProbeFunc checks reachability. A nil error means online.
type ProbeFunc func(ctx context.Context) error

// Prober periodically probes the backend and signals the Monitor.
type Prober struct {
	Monitor   *Monitor
	Probe     ProbeFunc
	Interval  time.Duration // zero uses 2s
	Threshold int           // consecutive failures before offline; zero uses 2
	Logger    logrus.FieldLogger

	failures int
}

// Start runs the prober on a new goroutine. The returned channel closes when
// the goroutine exits after ctx is cancelled.
func (p *Prober) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	return done
}

// Run probes until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	for {
		wait := p.Step(ctx)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Step performs one probe, signals the monitor, and returns how long to wait
// before the next probe.
func (p *Prober) Step(ctx context.Context) time.Duration {
	interval := p.Interval
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}

	err := p.Probe(ctx)
	if ctx.Err() != nil {
		return interval
	}
	if err == nil {
		p.failures = 0
		p.Monitor.Signal(true)
		return interval
	}

	p.failures++
	if p.Logger != nil {
		p.Logger.WithError(err).WithField("failures", p.failures).Debug("connectivity probe failed")
	}
	if p.failures < threshold {
		return interval
	}
	p.Monitor.Signal(false)
	return calculateBackoff(p.failures-threshold+1, interval)
}

// calculateBackoff doubles base per failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
