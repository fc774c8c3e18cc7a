package shipper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sensordash/sensordash/agent/internal/config"
	"github.com/sensordash/sensordash/pkg/payload"
	"github.com/sensordash/sensordash/pkg/rtdb"
)

const mqttDisconnectQuiesce = 250 // ms

var errShapeMismatch = errors.New("shipper: document holds a different shape")

// NewWriter returns the Writer for cfg.Shape. For the mqtt shape it connects
// to the broker before returning.
func NewWriter(cfg config.AgentConfig) (Writer, error) {
	switch cfg.Shape {
	case config.ShapePush, config.ShapeLatest, config.ShapeArray:
		client := rtdb.New(cfg.BaseURL, cfg.Secret(), rtdb.WithTimeout(cfg.Timeout))
		return newRTDBWriter(cfg.Shape, client, cfg.Path), nil
	case config.ShapeMQTT:
		return dialMQTT(cfg.MQTT, cfg.Timeout, paho.NewClient)
	default:
		return nil, fmt.Errorf("shipper: unsupported shape %q", cfg.Shape)
	}
}

func newRTDBWriter(shape string, client *rtdb.Client, path string) Writer {
	switch shape {
	case config.ShapeLatest:
		return &latestWriter{client: client, path: path}
	case config.ShapeArray:
		return &arrayWriter{client: client, path: path}
	default:
		return &pushWriter{client: client, path: path}
	}
}

// --- push -------------------------------------------------------------------

// pushWriter appends each reading under a new push key.
type pushWriter struct {
	client *rtdb.Client
	path   string
}

func (w *pushWriter) Write(ctx context.Context, r payload.Reading) error {
	key, err := w.client.Push(ctx, w.path, r)
	if err != nil {
		return err
	}
	slog.Debug("shipper: pushed reading", "path", w.path, "key", key)
	return nil
}

func (w *pushWriter) Close() {}

// --- latest -----------------------------------------------------------------

// latestWriter overwrites the document with the flattened reading.
type latestWriter struct {
	client *rtdb.Client
	path   string
}

func (w *latestWriter) Write(ctx context.Context, r payload.Reading) error {
	return w.client.Set(ctx, w.path, payload.Flattened{Reading: r})
}

func (w *latestWriter) Close() {}

// --- array ------------------------------------------------------------------

// arrayWriter appends each reading at the next index of every per-type array
// with one multi-path update. The next index is read from the existing
// document on first use.
type arrayWriter struct {
	client *rtdb.Client
	path   string
	next   int
	seeded bool
}

func (w *arrayWriter) Write(ctx context.Context, r payload.Reading) error {
	if !w.seeded {
		next, err := w.nextIndex(ctx)
		if err != nil {
			return err
		}
		w.next, w.seeded = next, true
		slog.Info("shipper: array history resumes", "path", w.path, "index", next)
	}
	if err := w.client.Update(ctx, w.path, payload.ArrayPatch(r, w.next)); err != nil {
		return err
	}
	w.next++
	return nil
}

func (w *arrayWriter) nextIndex(ctx context.Context) (int, error) {
	raw, err := w.client.Get(ctx, w.path)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, nil
	}
	p, err := payload.Decode(raw)
	if errors.Is(err, payload.ErrEmpty) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("shipper: read %s: %w", w.path, err)
	}
	a, ok := p.(payload.ArrayHistory)
	if !ok {
		return 0, fmt.Errorf("%w: %s holds %s", errShapeMismatch, w.path, p.Shape())
	}
	return a.LatestIndex() + 1, nil
}

func (w *arrayWriter) Close() {}

// --- mqtt -------------------------------------------------------------------

// publisher is the part of paho.Client the mqtt writer uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// mqttWriter publishes each flattened reading to a topic at QoS 1.
type mqttWriter struct {
	pub     publisher
	topic   string
	timeout time.Duration
	close   func()
}

func dialMQTT(cfg config.MQTTConfig, timeout time.Duration, newClient func(*paho.ClientOptions) paho.Client) (*mqttWriter, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "sensordash-agent-" + uuid.NewString()
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password())
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		slog.Warn("shipper: mqtt connection lost", "broker", cfg.Broker, "err", err)
	})

	client := newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("shipper: mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("shipper: mqtt connect to %s: %w", cfg.Broker, err)
	}
	slog.Info("shipper: mqtt connected", "broker", cfg.Broker, "topic", cfg.Topic)

	return &mqttWriter{
		pub:     client,
		topic:   cfg.Topic,
		timeout: timeout,
		close:   func() { client.Disconnect(mqttDisconnectQuiesce) },
	}, nil
}

func (w *mqttWriter) Write(ctx context.Context, r payload.Reading) error {
	body, err := json.Marshal(payload.Flattened{Reading: r})
	if err != nil {
		return fmt.Errorf("shipper: encode reading: %w", err)
	}

	token := w.pub.Publish(w.topic, 1, false, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("shipper: mqtt publish to %s: %w", w.topic, ctx.Err())
	case <-time.After(w.timeout):
		return fmt.Errorf("shipper: mqtt publish to %s timed out", w.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("shipper: mqtt publish to %s: %w", w.topic, err)
	}
	return nil
}

func (w *mqttWriter) Close() {
	if w.close != nil {
		w.close()
	}
}
