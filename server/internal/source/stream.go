package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sensordash/sensordash/pkg/backoff"
	"github.com/sensordash/sensordash/pkg/rtdb"
	"github.com/sensordash/sensordash/pkg/types"
	"github.com/sensordash/sensordash/server/internal/config"
	"github.com/sensordash/sensordash/server/internal/metrics"
)

// streamer follows the database event stream for one path.
type streamer struct {
	client     *rtdb.Client
	path       string
	metrics    *metrics.Metrics
	newBackoff func() *backoff.Backoff // injectable for tests
}

func newStreamer(client *rtdb.Client, path string, m *metrics.Metrics) *streamer {
	return &streamer{client: client, path: path, metrics: m, newBackoff: backoff.New}
}

// Subscribe opens the stream in a new goroutine and keeps it open,
// reconnecting with backoff, until unsubscribed.
func (s *streamer) Subscribe(ctx context.Context, fn func(types.Snapshot)) (func(), error) {
	if fn == nil {
		return nil, errNilCallback
	}
	ctx, cancel := context.WithCancel(ctx)
	d := newDispatcher(config.ModeStream, fn, s.metrics)
	go s.run(ctx, d)
	return unsubscriber(d, cancel, nil), nil
}

func (s *streamer) run(ctx context.Context, d *dispatcher) {
	bo := s.newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		err := s.client.Stream(ctx, s.path, func(ev rtdb.Event) {
			bo.Reset()
			s.handle(ctx, d, ev)
		})
		if ctx.Err() != nil {
			return
		}

		wait := bo.Next()
		if !errors.Is(err, rtdb.ErrStreamClosed) {
			d.fail(err, 0)
		}
		slog.Info("source: stream ended, will reconnect",
			"path", s.path, "err", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// handle applies one stream event. A put at the root carries the whole
// document; any other event re-reads it.
func (s *streamer) handle(ctx context.Context, d *dispatcher, ev rtdb.Event) {
	if ev.Type == rtdb.EventPut && ev.Path == "/" {
		d.offer(ev.Data, 0)
		return
	}

	start := time.Now()
	raw, err := s.client.Get(ctx, s.path)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		d.fail(err, time.Since(start))
		return
	}
	d.offer(raw, time.Since(start))
}
