package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/sensordash/sensordash/pkg/types"
)

func TestObserveFetch(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveFetch("poll", ResultDelivered, 20*time.Millisecond)
	m.ObserveFetch("poll", ResultDuplicate, 10*time.Millisecond)
	m.ObserveFetch("poll", ResultDuplicate, 10*time.Millisecond)
	m.ObserveFetch("mqtt", ResultMalformed, 0)

	if got := testutil.ToFloat64(m.fetches.WithLabelValues("poll", ResultDuplicate)); got != 2 {
		t.Errorf("poll/duplicate = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.fetches.WithLabelValues("mqtt", ResultMalformed)); got != 1 {
		t.Errorf("mqtt/malformed = %v, want 1", got)
	}
	// Zero durations are not observed.
	if got := testutil.CollectAndCount(m.fetchLatency); got != 1 {
		t.Errorf("latency series = %d, want 1 (poll only)", got)
	}
}

func TestObserveSensors(t *testing.T) {
	m := New(prometheus.NewRegistry())
	at := time.Unix(1714564800, 0)

	m.ObserveSensors([]types.EvaluatedSensor{
		{ID: types.ChannelTemperature, Value: 46, Status: types.StatusCritical},
		{ID: types.ChannelPeer, Value: 1, Status: types.StatusNormal},
	}, at)

	if got := testutil.ToFloat64(m.updates); got != 1 {
		t.Errorf("updates = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.lastUpdate); got != 1714564800 {
		t.Errorf("last update = %v", got)
	}
	if got := testutil.ToFloat64(m.sensorValue.WithLabelValues(types.ChannelTemperature)); got != 46 {
		t.Errorf("temp value = %v, want 46", got)
	}
	if got := testutil.ToFloat64(m.sensorStatus.WithLabelValues(types.ChannelTemperature, "critical")); got != 1 {
		t.Errorf("temp critical = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.sensorStatus.WithLabelValues(types.ChannelTemperature, "normal")); got != 0 {
		t.Errorf("temp normal = %v, want 0", got)
	}

	// A later update moves the status flag.
	m.ObserveSensors([]types.EvaluatedSensor{
		{ID: types.ChannelTemperature, Value: 25, Status: types.StatusNormal},
	}, at.Add(time.Second))
	if got := testutil.ToFloat64(m.sensorStatus.WithLabelValues(types.ChannelTemperature, "critical")); got != 0 {
		t.Errorf("temp critical after recovery = %v, want 0", got)
	}
}

func TestObserveCacheWrite(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveCacheWrite(nil)
	m.ObserveCacheWrite(errors.New("connection refused"))
	m.ObserveCacheWrite(nil)

	if got := testutil.ToFloat64(m.cacheWrites.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.cacheWrites.WithLabelValues(ResultError)); got != 1 {
		t.Errorf("error = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveFetch("poll", ResultError, time.Second)
	m.ObserveSensors(nil, time.Now())
	m.SetWSClients(3)
	m.ObserveCacheWrite(nil)
}

func TestHandler_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetWSClients(3)
	m.ObserveFetch("stream", ResultDelivered, 5*time.Millisecond)

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rr.Body)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}

	ws := mfs["sensordash_ws_clients"]
	if ws == nil || len(ws.GetMetric()) != 1 {
		t.Fatalf("sensordash_ws_clients missing: %v", ws)
	}
	if ws.GetType() != dto.MetricType_GAUGE {
		t.Errorf("ws_clients type = %v, want GAUGE", ws.GetType())
	}
	if got := ws.GetMetric()[0].GetGauge().GetValue(); got != 3 {
		t.Errorf("ws_clients = %v, want 3", got)
	}

	fetches := mfs["sensordash_source_fetches_total"]
	if fetches == nil || fetches.GetType() != dto.MetricType_COUNTER {
		t.Fatalf("sensordash_source_fetches_total missing or not a counter: %v", fetches)
	}
	labels := map[string]string{}
	for _, lp := range fetches.GetMetric()[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	if labels["mode"] != "stream" || labels["result"] != ResultDelivered {
		t.Errorf("labels = %v", labels)
	}
}
