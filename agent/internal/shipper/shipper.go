package shipper

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sensordash/sensordash/pkg/backoff"
	"github.com/sensordash/sensordash/pkg/payload"
	"github.com/sensordash/sensordash/pkg/rtdb"
)

const defaultSendTimeout = 10 * time.Second

// Writer delivers one reading to the backing store in a fixed shape.
type Writer interface {
	Write(ctx context.Context, r payload.Reading) error
	Close()
}

// Shipper buffers readings and hands them to a Writer.
// Ship() is non-blocking; when the buffer is full the oldest reading is evicted.
// Run() must be called in a goroutine to drain the buffer and retry failures.
type Shipper struct {
	w           Writer
	buf         chan payload.Reading
	sendTimeout time.Duration
	newBackoff  func() *backoff.Backoff // injectable for tests
}

// New creates a Shipper that holds up to bufferSize readings. A zero
// sendTimeout uses 10s.
func New(w Writer, bufferSize int, sendTimeout time.Duration) *Shipper {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Shipper{
		w:           w,
		buf:         make(chan payload.Reading, bufferSize),
		sendTimeout: sendTimeout,
		newBackoff:  backoff.New,
	}
}

// Ship enqueues r. If the buffer is full the oldest entry is evicted to make
// room.
func (s *Shipper) Ship(r payload.Reading) {
	select {
	case s.buf <- r:
	default:
		// Buffer full: drop the oldest reading, keep the newest.
		select {
		case <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest reading", "buffer_cap", cap(s.buf))
		default:
		}
		select {
		case s.buf <- r:
		default:
		}
	}
}

// Len returns the number of buffered readings.
func (s *Shipper) Len() int { return len(s.buf) }

// Run drains the buffer in order. A failed write is retried with exponential
// backoff until it succeeds, is rejected permanently, or ctx is cancelled.
// Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := s.newBackoff()

	for {
		var r payload.Reading
		select {
		case <-ctx.Done():
			return
		case r = <-s.buf:
		}

		for {
			err := s.send(ctx, r)
			if err == nil {
				bo.Reset()
				slog.Debug("shipper: reading delivered")
				break
			}
			if ctx.Err() != nil {
				return
			}
			if isPermanentError(err) {
				slog.Error("shipper: permanent write error, discarding reading", "err", err)
				break
			}

			wait := bo.Next()
			slog.Warn("shipper: write failed, will retry", "err", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}
}

func (s *Shipper) send(ctx context.Context, r payload.Reading) error {
	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	return s.w.Write(ctx, r)
}

// isPermanentError reports whether err means the write itself is invalid
// and retrying cannot help.
func isPermanentError(err error) bool {
	var se *rtdb.StatusError
	if !errors.As(err, &se) {
		return errors.Is(err, errShapeMismatch)
	}
	switch se.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
