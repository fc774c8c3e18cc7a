package source

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sensordash/sensordash/pkg/payload"
	"github.com/sensordash/sensordash/pkg/types"
	"github.com/sensordash/sensordash/server/internal/metrics"
)

// dispatcher turns raw payloads into at most one callback per change.
type dispatcher struct {
	mode    string
	fn      func(types.Snapshot)
	metrics *metrics.Metrics
	now     func() time.Time

	stopped atomic.Bool

	mu      sync.Mutex
	prev    string
	hasPrev bool
}

func newDispatcher(mode string, fn func(types.Snapshot), m *metrics.Metrics) *dispatcher {
	return &dispatcher{
		mode:    mode,
		fn:      fn,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (d *dispatcher) stop() { d.stopped.Store(true) }

// offer handles one fetched payload and reports whether fn was called.
//
// The dedup key advances for every payload that parses as JSON, including
// null and unknown shapes, so a persistently bad document is reported once
// rather than on every tick.
func (d *dispatcher) offer(raw []byte, took time.Duration) bool {
	if d.stopped.Load() {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key, err := payload.Canonical(raw)
	if err != nil {
		slog.Warn("source: payload is not valid json", "mode", d.mode, "err", err)
		d.metrics.ObserveFetch(d.mode, metrics.ResultMalformed, took)
		return false
	}
	if d.hasPrev && key == d.prev {
		slog.Debug("source: payload unchanged", "mode", d.mode)
		d.metrics.ObserveFetch(d.mode, metrics.ResultDuplicate, took)
		return false
	}
	d.prev, d.hasPrev = key, true

	p, err := payload.Decode(raw)
	switch {
	case errors.Is(err, payload.ErrEmpty):
		slog.Info("source: no readings at path", "mode", d.mode)
		d.metrics.ObserveFetch(d.mode, metrics.ResultEmpty, took)
		return false
	case err != nil:
		slog.Warn("source: payload rejected", "mode", d.mode, "err", err)
		d.metrics.ObserveFetch(d.mode, metrics.ResultMalformed, took)
		return false
	}

	snap := p.Normalize(d.now())
	if d.stopped.Load() {
		return false
	}
	slog.Debug("source: snapshot delivered", "mode", d.mode, "shape", p.Shape(), "channels", len(snap.Values))
	d.metrics.ObserveFetch(d.mode, metrics.ResultDelivered, took)
	d.fn(snap)
	return true
}

// fail records a transport failure. The dedup key is left untouched.
func (d *dispatcher) fail(err error, took time.Duration) {
	if d.stopped.Load() {
		return
	}
	slog.Warn("source: fetch failed", "mode", d.mode, "err", err)
	d.metrics.ObserveFetch(d.mode, metrics.ResultError, took)
}
