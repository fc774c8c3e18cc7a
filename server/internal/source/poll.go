package source

import (
	"context"
	"time"

	"github.com/sensordash/sensordash/pkg/rtdb"
	"github.com/sensordash/sensordash/pkg/types"
	"github.com/sensordash/sensordash/server/internal/config"
	"github.com/sensordash/sensordash/server/internal/metrics"
)

// poller pulls the document on a fixed interval.
type poller struct {
	client   *rtdb.Client
	path     string
	interval time.Duration
	metrics  *metrics.Metrics
}

func newPoller(client *rtdb.Client, path string, interval time.Duration, m *metrics.Metrics) *poller {
	return &poller{client: client, path: path, interval: interval, metrics: m}
}

// Subscribe starts polling in a new goroutine. The first poll runs
// immediately.
func (p *poller) Subscribe(ctx context.Context, fn func(types.Snapshot)) (func(), error) {
	if fn == nil {
		return nil, errNilCallback
	}
	ctx, cancel := context.WithCancel(ctx)
	d := newDispatcher(config.ModePoll, fn, p.metrics)
	go p.run(ctx, d)
	return unsubscriber(d, cancel, nil), nil
}

func (p *poller) run(ctx context.Context, d *dispatcher) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.pollOnce(ctx, d)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *poller) pollOnce(ctx context.Context, d *dispatcher) {
	start := time.Now()
	raw, err := p.client.Get(ctx, p.path)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		d.fail(err, time.Since(start))
		return
	}
	d.offer(raw, time.Since(start))
}
