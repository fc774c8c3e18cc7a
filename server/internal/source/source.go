package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sensordash/sensordash/pkg/rtdb"
	"github.com/sensordash/sensordash/pkg/types"
	"github.com/sensordash/sensordash/server/internal/config"
	"github.com/sensordash/sensordash/server/internal/metrics"
)

// Source delivers reading snapshots to fn until the returned unsubscribe is
// called or ctx is cancelled. unsubscribe is idempotent and may be called
// from inside fn.
type Source interface {
	Subscribe(ctx context.Context, fn func(types.Snapshot)) (unsubscribe func(), err error)
}

var errNilCallback = errors.New("source: nil callback")

// New returns the Source for cfg.Mode. m may be nil.
func New(cfg config.SourceConfig, m *metrics.Metrics) (Source, error) {
	switch cfg.Mode {
	case config.ModePoll:
		client := rtdb.New(cfg.BaseURL, cfg.Secret(), rtdb.WithTimeout(cfg.Timeout))
		return newPoller(client, cfg.Path, cfg.PollInterval, m), nil
	case config.ModeStream:
		client := rtdb.New(cfg.BaseURL, cfg.Secret(), rtdb.WithTimeout(cfg.Timeout))
		return newStreamer(client, cfg.Path, m), nil
	case config.ModeMQTT:
		return newMQTTSource(cfg.MQTT, cfg.Timeout, m), nil
	default:
		return nil, fmt.Errorf("source: unsupported mode %q", cfg.Mode)
	}
}

// unsubscriber stops d and cancels the adapter goroutine exactly once.
// It does not wait for the goroutine, so calling it from inside the
// callback cannot deadlock. extra must not block either: it runs on
// whichever goroutine called unsubscribe.
func unsubscriber(d *dispatcher, cancel context.CancelFunc, extra func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			d.stop()
			cancel()
			if extra != nil {
				extra()
			}
		})
	}
}
