package rtdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/r3labs/sse/v2"
)

// Event types sent on a database event stream.
const (
	EventPut         = "put"
	EventPatch       = "patch"
	EventKeepAlive   = "keep-alive"
	EventCancel      = "cancel"
	EventAuthRevoked = "auth_revoked"
)

// ErrStreamClosed is returned by Stream when the server ends the stream with
// a cancel or auth_revoked event, or closes the connection.
var ErrStreamClosed = errors.New("rtdb: stream closed by server")

// Event is one put or patch notification. Path is relative to the streamed
// location; Data is the new value at Path (null for deletions).
type Event struct {
	Type string
	Path string
	Data json.RawMessage
}

// noRetry stops the sse client after the first failure. Reconnects belong
// to the caller, which owns the backoff.
type noRetry struct{}

func (noRetry) NextBackOff() time.Duration { return -1 }
func (noRetry) Reset()                     {}

// Stream opens an event stream on path and calls fn for each put and patch
// event, in arrival order, on the calling goroutine. It returns nil when ctx
// is cancelled, ErrStreamClosed when the server ends the stream, and any
// transport or decode error otherwise.
func (c *Client) Stream(ctx context.Context, path string, fn func(Event)) error {
	sctx, stop := context.WithCancel(ctx)
	defer stop()

	client := sse.NewClient(c.URL(path), sse.ClientMaxBufferSize(maxBodyBytes))
	client.Connection = c.streamHTTP
	client.ReconnectStrategy = noRetry{}
	client.ResponseValidator = func(_ *sse.Client, resp *http.Response) error {
		if resp.StatusCode == http.StatusOK {
			return nil
		}
		resp.Body.Close()
		return &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode}
	}

	// closeErr ends the stream from inside the handler: the sse client has
	// no way to return an error from it, so the handler cancels sctx.
	var closeErr error
	err := client.SubscribeRawWithContext(sctx, func(msg *sse.Event) {
		if closeErr != nil {
			return
		}
		if err := dispatch(string(msg.Event), msg.Data, fn); err != nil {
			closeErr = err
			stop()
		}
	})

	switch {
	case closeErr != nil:
		return closeErr
	case ctx.Err() != nil:
		return nil
	case err == nil:
		// Server closed the connection.
		return ErrStreamClosed
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se
	}
	return fmt.Errorf("rtdb: stream %s: %w", path, err)
}

func dispatch(evType string, data []byte, fn func(Event)) error {
	switch evType {
	case EventPut, EventPatch:
		var body struct {
			Path string          `json:"path"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("rtdb: decode %s event: %w", evType, err)
		}
		fn(Event{Type: evType, Path: body.Path, Data: body.Data})
	case EventCancel, EventAuthRevoked:
		return fmt.Errorf("%w: %s", ErrStreamClosed, evType)
	}
	return nil
}
