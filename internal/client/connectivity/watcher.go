// Package connectivity tracks whether the server is reachable.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// ProbeTimeout bounds a single liveness probe.
const ProbeTimeout = 3 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher probes the server on a fixed interval and runs a callback every
// time it comes back online. It starts in ModeOffline.
type Watcher struct {
	pinger   Pinger
	interval time.Duration
	logger   logging.Logger
	onOnline func(ctx context.Context)

	mu   sync.RWMutex
	mode Mode
}

func NewWatcher(p Pinger, interval time.Duration, logger logging.Logger, onOnline func(ctx context.Context)) *Watcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Watcher{
		pinger:   p,
		interval: interval,
		logger:   logger,
		onOnline: onOnline,
		mode:     ModeOffline,
	}
}

func (w *Watcher) Mode() Mode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.mode
}

// Run probes once immediately, then on every tick, until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Probe(ctx)
	for {
		select {
		case <-ticker.C:
			w.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Probe pings the server once and updates the mode. The onOnline callback
// runs synchronously on an offline to online transition.
func (w *Watcher) Probe(ctx context.Context) Mode {
	pctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	err := w.pinger.Ping(pctx)
	cancel()

	next := ModeOnline
	if err != nil {
		next = ModeOffline
	}

	w.mu.Lock()
	prev := w.mode
	w.mode = next
	w.mu.Unlock()

	if prev == next {
		return next
	}
	w.logger.Info(ctx, "switched mode", "mode", string(next))
	if err != nil {
		w.logger.Debug(ctx, "server probe failed", "error", err)
	}
	if next == ModeOnline && w.onOnline != nil && ctx.Err() == nil {
		w.onOnline(ctx)
	}
	return next
}
