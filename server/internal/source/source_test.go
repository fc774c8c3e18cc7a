package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sensordash/sensordash/pkg/backoff"
	"github.com/sensordash/sensordash/pkg/rtdb"
	"github.com/sensordash/sensordash/pkg/types"
	"github.com/sensordash/sensordash/server/internal/config"
	"github.com/sensordash/sensordash/server/internal/metrics"
)

const (
	docA = `{"temperature":24,"humidity":55,"peer":1}`
	// Same reading as docA with different key order.
	docAReordered = `{"peer":1,"humidity":55,"temperature":24}`
	docB          = `{"temperature":46,"humidity":55,"peer":0}`
	arrayDoc      = `{"dht11":[{"temperature":20,"humidity":40},{"temperature":21,"humidity":41}],"soil":[30,31],"peer":[1,1]}`
)

// docServer serves whatever document is currently stored, or a status code
// when failCode is set.
type docServer struct {
	*httptest.Server
	doc      atomic.Value // string
	failCode atomic.Int32
	gets     atomic.Int32
}

func newDocServer(t *testing.T, doc string) *docServer {
	t.Helper()
	s := &docServer{}
	s.doc.Store(doc)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.gets.Add(1)
		if code := s.failCode.Load(); code != 0 {
			w.WriteHeader(int(code))
			return
		}
		_, _ = io.WriteString(w, s.doc.Load().(string))
	}))
	t.Cleanup(s.Close)
	return s
}

// collector gathers delivered snapshots.
type collector struct {
	ch chan types.Snapshot
}

func newCollector() *collector { return &collector{ch: make(chan types.Snapshot, 16)} }

func (c *collector) fn(s types.Snapshot) { c.ch <- s }

func (c *collector) next(t *testing.T, within time.Duration) types.Snapshot {
	t.Helper()
	select {
	case s := <-c.ch:
		return s
	case <-time.After(within):
		t.Fatalf("no snapshot delivered within %v", within)
		return types.Snapshot{}
	}
}

func (c *collector) none(t *testing.T, during time.Duration) {
	t.Helper()
	select {
	case s := <-c.ch:
		t.Fatalf("unexpected snapshot delivered: %v", s.Values)
	case <-time.After(during):
	}
}

func fetchCount(t *testing.T, reg *prometheus.Registry, mode, result string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "sensordash_source_fetches_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["mode"] == mode && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

// --- factory ---

func TestNew_Modes(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{config.ModePoll, "*source.poller"},
		{config.ModeStream, "*source.streamer"},
		{config.ModeMQTT, "*source.mqttSource"},
	}
	for _, tt := range tests {
		cfg := config.SourceConfig{Mode: tt.mode, BaseURL: "http://x", Path: "p", PollInterval: time.Second, Timeout: time.Second}
		src, err := New(cfg, nil)
		if err != nil {
			t.Fatalf("New(%s): %v", tt.mode, err)
		}
		if got := fmt.Sprintf("%T", src); got != tt.want {
			t.Errorf("New(%s) = %s, want %s", tt.mode, got, tt.want)
		}
	}
	if _, err := New(config.SourceConfig{Mode: "carrier-pigeon"}, nil); err == nil {
		t.Error("New(unknown mode) error = nil")
	}
}

func TestSubscribe_NilCallback(t *testing.T) {
	p := newPoller(rtdb.New("http://x", ""), "p", time.Second, nil)
	if _, err := p.Subscribe(context.Background(), nil); err == nil {
		t.Error("Subscribe(nil) error = nil")
	}
}

// --- dispatcher ---

func TestDispatcher_Dedup(t *testing.T) {
	var n int
	d := newDispatcher("test", func(types.Snapshot) { n++ }, nil)

	if !d.offer([]byte(docA), 0) {
		t.Fatal("first payload not delivered")
	}
	if d.offer([]byte(docA), 0) {
		t.Error("identical payload delivered twice")
	}
	if d.offer([]byte(docAReordered), 0) {
		t.Error("payload differing only in key order delivered")
	}
	if !d.offer([]byte(docB), 0) {
		t.Error("changed payload not delivered")
	}
	if !d.offer([]byte(docA), 0) {
		t.Error("return to a previous payload not delivered")
	}
	if n != 3 {
		t.Errorf("callbacks = %d, want 3", n)
	}
}

func TestDispatcher_EmptyAndMalformed(t *testing.T) {
	reg := prometheus.NewRegistry()
	var n int
	d := newDispatcher("test", func(types.Snapshot) { n++ }, metrics.New(reg))

	for _, raw := range []string{"", "null", `{"pressure":1013}`, `{not json`, `{"temperature":"hot"}`} {
		if d.offer([]byte(raw), 0) {
			t.Errorf("offer(%q) delivered", raw)
		}
	}
	if n != 0 {
		t.Errorf("callbacks = %d, want 0", n)
	}
	if got := fetchCount(t, reg, "test", metrics.ResultMalformed); got != 3 {
		t.Errorf("malformed count = %v, want 3", got)
	}
	if got := fetchCount(t, reg, "test", metrics.ResultEmpty); got != 1 {
		t.Errorf("empty count = %v, want 1 (null repeats are duplicates)", got)
	}
}

func TestDispatcher_NormalizesShapes(t *testing.T) {
	var got types.Snapshot
	d := newDispatcher("test", func(s types.Snapshot) { got = s }, nil)
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	d.offer([]byte(arrayDoc), 0)
	if got.Value(types.ChannelTemperature) != 21 || got.Value(types.ChannelSoil) != 31 {
		t.Errorf("array snapshot = %v", got.Values)
	}
	if !got.CapturedAt.Equal(fixed) {
		t.Errorf("CapturedAt = %v, want adapter clock %v", got.CapturedAt, fixed)
	}
}

func TestDispatcher_Stopped(t *testing.T) {
	var n int
	d := newDispatcher("test", func(types.Snapshot) { n++ }, nil)
	d.stop()
	if d.offer([]byte(docA), 0) || n != 0 {
		t.Error("stopped dispatcher delivered")
	}
}

// --- poll ---

func TestPoller_DeliversOncePerChange(t *testing.T) {
	srv := newDocServer(t, docA)
	c := newCollector()

	p := newPoller(rtdb.New(srv.URL, ""), "sensorReadings", 20*time.Millisecond, nil)
	unsub, err := p.Subscribe(context.Background(), c.fn)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsub()

	// First poll is immediate.
	s := c.next(t, 200*time.Millisecond)
	if s.Value(types.ChannelTemperature) != 24 {
		t.Errorf("temperature = %v, want 24", s.Value(types.ChannelTemperature))
	}

	// Several polls of the same document deliver nothing.
	c.none(t, 150*time.Millisecond)
	if srv.gets.Load() < 3 {
		t.Errorf("gets = %d, want several polls", srv.gets.Load())
	}

	srv.doc.Store(docB)
	s = c.next(t, time.Second)
	if s.Value(types.ChannelPeer) != 0 || s.Value(types.ChannelTemperature) != 46 {
		t.Errorf("second snapshot = %v", s.Values)
	}
}

func TestPoller_FailureKeepsPolling(t *testing.T) {
	srv := newDocServer(t, docA)
	srv.failCode.Store(http.StatusServiceUnavailable)
	reg := prometheus.NewRegistry()
	c := newCollector()

	p := newPoller(rtdb.New(srv.URL, ""), "x", 20*time.Millisecond, metrics.New(reg))
	unsub, _ := p.Subscribe(context.Background(), c.fn)
	defer unsub()

	c.none(t, 100*time.Millisecond)
	if got := fetchCount(t, reg, config.ModePoll, metrics.ResultError); got < 1 {
		t.Errorf("error count = %v, want >= 1", got)
	}

	srv.failCode.Store(0)
	c.next(t, time.Second)
}

func TestPoller_UnsubscribeStopsDelivery(t *testing.T) {
	srv := newDocServer(t, docA)
	c := newCollector()

	p := newPoller(rtdb.New(srv.URL, ""), "x", 20*time.Millisecond, nil)
	var unsub func()
	var mu sync.Mutex
	mu.Lock()
	unsub, _ = p.Subscribe(context.Background(), func(s types.Snapshot) {
		c.fn(s)
		mu.Lock()
		defer mu.Unlock()
		unsub() // from inside the callback
	})
	mu.Unlock()

	c.next(t, 200*time.Millisecond)
	unsub()
	unsub()

	srv.doc.Store(docB)
	c.none(t, 150*time.Millisecond)

	// Polling stops too.
	n := srv.gets.Load()
	time.Sleep(80 * time.Millisecond)
	if srv.gets.Load() > n+1 {
		t.Errorf("gets grew from %d to %d after unsubscribe", n, srv.gets.Load())
	}
}

func TestPoller_ContextCancel(t *testing.T) {
	srv := newDocServer(t, docA)
	c := newCollector()

	ctx, cancel := context.WithCancel(context.Background())
	p := newPoller(rtdb.New(srv.URL, ""), "x", 20*time.Millisecond, nil)
	if _, err := p.Subscribe(ctx, c.fn); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	c.next(t, 200*time.Millisecond)
	cancel()

	srv.doc.Store(docB)
	c.none(t, 120*time.Millisecond)
}

// --- stream ---

func TestStreamer_Events(t *testing.T) {
	var getDoc atomic.Value
	getDoc.Store(docB)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			_, _ = io.WriteString(w, getDoc.Load().(string))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		_, _ = io.WriteString(w, "event: put\ndata: {\"path\":\"/\",\"data\":"+docA+"}\n\n")
		fl.Flush()
		_, _ = io.WriteString(w, "event: keep-alive\ndata: null\n\n")
		fl.Flush()
		_, _ = io.WriteString(w, "event: patch\ndata: {\"path\":\"/\",\"data\":{\"temperature\":46,\"peer\":0}}\n\n")
		fl.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newCollector()
	s := newStreamer(rtdb.New(srv.URL, ""), "sensorReadings", nil)
	unsub, err := s.Subscribe(context.Background(), c.fn)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsub()

	first := c.next(t, time.Second)
	if first.Value(types.ChannelTemperature) != 24 {
		t.Errorf("put snapshot temperature = %v, want 24", first.Value(types.ChannelTemperature))
	}
	// The patch triggers a full GET, which returns docB.
	second := c.next(t, time.Second)
	if second.Value(types.ChannelTemperature) != 46 || second.Value(types.ChannelHumidity) != 55 {
		t.Errorf("patch snapshot = %v", second.Values)
	}
}

func TestStreamer_Reconnects(t *testing.T) {
	var streams atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if streams.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: put\ndata: {\"path\":\"/\",\"data\":"+docA+"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newCollector()
	s := newStreamer(rtdb.New(srv.URL, ""), "x", nil)
	s.newBackoff = func() *backoff.Backoff { return backoff.NewWithBounds(10*time.Millisecond, 50*time.Millisecond) }

	unsub, _ := s.Subscribe(context.Background(), c.fn)
	defer unsub()

	c.next(t, 2*time.Second)
	if streams.Load() < 2 {
		t.Errorf("stream connections = %d, want >= 2", streams.Load())
	}
}

func TestStreamer_DuplicatePutSuppressed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, doc := range []string{docA, docAReordered, docA} {
			_, _ = io.WriteString(w, "event: put\ndata: {\"path\":\"/\",\"data\":"+doc+"}\n\n")
		}
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newCollector()
	unsub, _ := newStreamer(rtdb.New(srv.URL, ""), "x", nil).Subscribe(context.Background(), c.fn)
	defer unsub()

	c.next(t, time.Second)
	c.none(t, 100*time.Millisecond)
}

// --- mqtt ---

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestMQTT_OnMessage(t *testing.T) {
	s := newMQTTSource(config.MQTTConfig{Broker: "tcp://localhost:1883", Topic: "t"}, time.Second, nil)
	c := newCollector()
	d := newDispatcher(config.ModeMQTT, c.fn, nil)
	h := s.onMessage(d)

	h(nil, fakeMessage{topic: "t", payload: []byte(docA)})
	h(nil, fakeMessage{topic: "t", payload: []byte(docAReordered)})
	h(nil, fakeMessage{topic: "t", payload: []byte(`{"-Nb":{"temperature":46}}`)})

	if got := c.next(t, 10*time.Millisecond).Value(types.ChannelTemperature); got != 24 {
		t.Errorf("first = %v, want 24", got)
	}
	if got := c.next(t, 10*time.Millisecond).Value(types.ChannelTemperature); got != 46 {
		t.Errorf("second = %v, want 46 (push-keyed)", got)
	}
	c.none(t, 10*time.Millisecond)
}

func TestMQTT_ClientOptions(t *testing.T) {
	t.Setenv("MQTT_PW", "pw")
	s := newMQTTSource(config.MQTTConfig{
		Broker:      "tcp://broker:1883",
		Topic:       "t",
		Username:    "dash",
		PasswordEnv: "MQTT_PW",
	}, time.Second, nil)
	opts := s.clientOptions(newDispatcher(config.ModeMQTT, func(types.Snapshot) {}, nil))

	if len(opts.Servers) != 1 || opts.Servers[0].Host != "broker:1883" {
		t.Errorf("servers = %v", opts.Servers)
	}
	if opts.Username != "dash" || opts.Password != "pw" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if len(opts.ClientID) <= len("sensordash-") {
		t.Errorf("generated client id = %q", opts.ClientID)
	}
	if !opts.AutoReconnect {
		t.Error("auto reconnect disabled")
	}
}

// fakeToken completes when done is closed.
type fakeToken struct {
	paho.Token
	done chan struct{}
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return nil }

func doneToken() *fakeToken {
	ch := make(chan struct{})
	close(ch)
	return &fakeToken{done: ch}
}

// fakeMQTTClient acknowledges Connect and Subscribe at once and holds
// Unsubscribe until unsubAck is closed.
type fakeMQTTClient struct {
	paho.Client
	opts         *paho.ClientOptions
	unsubAck     chan struct{}
	disconnected chan struct{}

	mu      sync.Mutex
	handler paho.MessageHandler
}

func (c *fakeMQTTClient) Connect() paho.Token { return doneToken() }

func (c *fakeMQTTClient) Subscribe(_ string, _ byte, h paho.MessageHandler) paho.Token {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
	return doneToken()
}

func (c *fakeMQTTClient) Unsubscribe(...string) paho.Token {
	return &fakeToken{done: c.unsubAck}
}

func (c *fakeMQTTClient) Disconnect(uint) { close(c.disconnected) }

func (c *fakeMQTTClient) deliver(msg paho.Message) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(c, msg)
}

func TestMQTT_UnsubscribeInsideCallback(t *testing.T) {
	fc := &fakeMQTTClient{unsubAck: make(chan struct{}), disconnected: make(chan struct{})}
	s := newMQTTSource(config.MQTTConfig{Broker: "tcp://localhost:1883", Topic: "t"}, 5*time.Second, nil)
	s.newClient = func(o *paho.ClientOptions) paho.Client {
		fc.opts = o
		return fc
	}

	var unsub func()
	returned := make(chan struct{})
	unsub, err := s.Subscribe(context.Background(), func(types.Snapshot) {
		unsub()
		close(returned)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	fc.opts.OnConnect(fc)

	// The handler runs where paho would run it; the ack for the
	// unsubscribe can only arrive after it returns.
	go fc.deliver(fakeMessage{topic: "t", payload: []byte(docA)})

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("unsubscribe inside the callback waited for the broker")
	}

	close(fc.unsubAck)
	select {
	case <-fc.disconnected:
	case <-time.After(time.Second):
		t.Fatal("client not disconnected after unsubscribe")
	}
}
