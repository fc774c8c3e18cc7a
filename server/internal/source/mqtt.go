package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sensordash/sensordash/pkg/types"
	"github.com/sensordash/sensordash/server/internal/config"
	"github.com/sensordash/sensordash/server/internal/metrics"
)

const mqttDisconnectQuiesce = 250 // ms

// mqttSource subscribes to a broker topic carrying raw payloads.
type mqttSource struct {
	cfg     config.MQTTConfig
	timeout time.Duration
	metrics *metrics.Metrics

	newClient func(*paho.ClientOptions) paho.Client // injectable for tests
}

func newMQTTSource(cfg config.MQTTConfig, timeout time.Duration, m *metrics.Metrics) *mqttSource {
	return &mqttSource{cfg: cfg, timeout: timeout, metrics: m, newClient: paho.NewClient}
}

// Subscribe connects to the broker and subscribes to the configured topic.
// The subscription is re-established on every reconnect.
func (s *mqttSource) Subscribe(ctx context.Context, fn func(types.Snapshot)) (func(), error) {
	if fn == nil {
		return nil, errNilCallback
	}
	ctx, cancel := context.WithCancel(ctx)
	d := newDispatcher(config.ModeMQTT, fn, s.metrics)

	opts := s.clientOptions(d)
	client := s.newClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(s.timeout) {
		cancel()
		return nil, fmt.Errorf("source: mqtt connect to %s timed out", s.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		cancel()
		return nil, fmt.Errorf("source: mqtt connect to %s: %w", s.cfg.Broker, err)
	}
	slog.Info("source: mqtt connected", "broker", s.cfg.Broker, "topic", s.cfg.Topic)

	// unsub may run on paho's message goroutine, which must stay free to
	// process the UNSUBACK, so the broker round trip runs on its own.
	unsub := unsubscriber(d, cancel, func() {
		go s.disconnect(client)
	})
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return unsub, nil
}

func (s *mqttSource) disconnect(client paho.Client) {
	if !client.Unsubscribe(s.cfg.Topic).WaitTimeout(s.timeout) {
		slog.Warn("source: mqtt unsubscribe timed out", "topic", s.cfg.Topic)
	}
	client.Disconnect(mqttDisconnectQuiesce)
	slog.Info("source: mqtt disconnected", "broker", s.cfg.Broker)
}

func (s *mqttSource) clientOptions(d *dispatcher) *paho.ClientOptions {
	clientID := s.cfg.ClientID
	if clientID == "" {
		clientID = "sensordash-" + uuid.NewString()
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(clientID)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password())
	}
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		d.fail(fmt.Errorf("mqtt connection lost: %w", err), 0)
	})
	opts.SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
		slog.Info("source: mqtt reconnecting", "broker", s.cfg.Broker)
	})
	opts.SetOnConnectHandler(func(c paho.Client) {
		token := c.Subscribe(s.cfg.Topic, 1, s.onMessage(d))
		if !token.WaitTimeout(s.timeout) {
			slog.Error("source: mqtt subscribe timed out", "topic", s.cfg.Topic)
			return
		}
		if err := token.Error(); err != nil {
			slog.Error("source: mqtt subscribe failed", "topic", s.cfg.Topic, "err", err)
			return
		}
		slog.Info("source: mqtt subscribed", "topic", s.cfg.Topic)
	})
	return opts
}

func (s *mqttSource) onMessage(d *dispatcher) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		d.offer(msg.Payload(), 0)
	}
}
