package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sensordash/sensordash/pkg/types"
	"github.com/sensordash/sensordash/server/internal/cache"
	"github.com/sensordash/sensordash/server/internal/channel"
	"github.com/sensordash/sensordash/server/internal/metrics"
	"github.com/sensordash/sensordash/server/internal/status"
	"github.com/sensordash/sensordash/server/internal/store"
)

const mirrorTimeout = 2 * time.Second

// Notifier is told after every store update.
type Notifier interface {
	Notify()
}

// Mirror persists the latest list outside the process.
type Mirror interface {
	Save(ctx context.Context, sensors []types.EvaluatedSensor, updatedAt time.Time) error
	Load(ctx context.Context) (*cache.Record, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNotifier registers n to be told about every update.
func WithNotifier(n Notifier) Option { return func(p *Pipeline) { p.notifier = n } }

// WithMirror mirrors every update to mr.
func WithMirror(mr Mirror) Option { return func(p *Pipeline) { p.mirror = mr } }

// WithMetrics records updates in m.
func WithMetrics(m *metrics.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// Pipeline evaluates snapshots and publishes the result.
type Pipeline struct {
	mu       sync.Mutex
	descs    []channel.Descriptor
	store    *store.Store
	notifier Notifier
	mirror   Mirror
	metrics  *metrics.Metrics
}

// New returns a Pipeline evaluating descs and publishing into st.
func New(descs []channel.Descriptor, st *store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{descs: descs, store: st}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Handle evaluates snap and publishes the resulting list.
func (p *Pipeline) Handle(snap types.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.publish(snap, true)
}

func (p *Pipeline) publish(snap types.Snapshot, mirror bool) *store.Entry {
	list := status.Evaluate(snap, p.descs)
	e := p.store.Put(list, snap.CapturedAt)
	p.metrics.ObserveSensors(list, snap.CapturedAt)

	slog.Info("pipeline: snapshot published",
		"overall", status.Overall(e.Summary),
		"normal", e.Summary.Normal,
		"warning", e.Summary.Warning,
		"critical", e.Summary.Critical)

	if p.notifier != nil {
		p.notifier.Notify()
	}

	if mirror && p.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		err := p.mirror.Save(ctx, list, snap.CapturedAt)
		cancel()
		p.metrics.ObserveCacheWrite(err)
		if err != nil {
			slog.Warn("pipeline: mirror write failed", "err", err)
		}
	}
	return e
}

// Restore loads the mirrored list, if any, into an empty store.
// It returns true when a list was restored.
func (p *Pipeline) Restore(ctx context.Context) (bool, error) {
	if p.mirror == nil {
		return false, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.store.Latest(); ok {
		return false, nil
	}

	rec, err := p.mirror.Load(ctx)
	if errors.Is(err, cache.ErrMiss) {
		slog.Info("pipeline: no mirrored list to restore")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pipeline: restore: %w", err)
	}

	snap := types.NewSnapshot(rec.UpdatedAt)
	for _, es := range rec.Sensors {
		snap.Values[es.ID] = es.Value
	}
	p.publish(snap, false)
	slog.Info("pipeline: restored mirrored list",
		"sensors", len(rec.Sensors), "updated_at", rec.UpdatedAt)
	return true, nil
}
