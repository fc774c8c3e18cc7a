package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sensordash/sensordash/pkg/types"
)

const namespace = "sensordash"

// Fetch outcomes recorded by the ingestion adapter.
const (
	ResultDelivered = "delivered"
	ResultDuplicate = "duplicate"
	ResultEmpty     = "empty"
	ResultMalformed = "malformed"
	ResultError     = "error"
)

var statuses = []types.Status{types.StatusNormal, types.StatusWarning, types.StatusCritical}

// Metrics holds every collector the dashboard updates.
type Metrics struct {
	fetches      *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	updates      prometheus.Counter
	lastUpdate   prometheus.Gauge
	sensorValue  *prometheus.GaugeVec
	sensorStatus *prometheus.GaugeVec
	wsClients    prometheus.Gauge
	cacheWrites  *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Payloads received by the ingestion adapter, by mode and outcome.",
		}, []string{"mode", "result"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Time spent fetching one payload from the backing store.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"mode"}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Snapshots evaluated and published.",
		}),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_update_timestamp_seconds",
			Help:      "Unix time of the most recent published snapshot.",
		}),
		sensorValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_value",
			Help:      "Latest reading per sensor channel.",
		}, []string{"sensor"}),
		sensorStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_status",
			Help:      "1 for the current status of each sensor channel, 0 otherwise.",
		}, []string{"sensor", "status"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected WebSocket clients.",
		}),
		cacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Writes of the latest list to the redis mirror, by outcome.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.fetches, m.fetchLatency, m.updates, m.lastUpdate,
		m.sensorValue, m.sensorStatus, m.wsClients, m.cacheWrites,
	)
	return m
}

// Handler serves the exposition of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveFetch records one adapter fetch outcome.
func (m *Metrics) ObserveFetch(mode, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(mode, result).Inc()
	if took > 0 {
		m.fetchLatency.WithLabelValues(mode).Observe(took.Seconds())
	}
}

// ObserveSensors records one published evaluated list.
func (m *Metrics) ObserveSensors(list []types.EvaluatedSensor, at time.Time) {
	if m == nil {
		return
	}
	m.updates.Inc()
	m.lastUpdate.Set(float64(at.Unix()))
	for _, es := range list {
		m.sensorValue.WithLabelValues(es.ID).Set(es.Value)
		for _, s := range statuses {
			v := 0.0
			if es.Status == s {
				v = 1
			}
			m.sensorStatus.WithLabelValues(es.ID, string(s)).Set(v)
		}
	}
}

// SetWSClients records the number of connected WebSocket clients.
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

// ObserveCacheWrite records one redis mirror write.
func (m *Metrics) ObserveCacheWrite(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.cacheWrites.WithLabelValues(ResultError).Inc()
		return
	}
	m.cacheWrites.WithLabelValues("ok").Inc()
}
