package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sensordash/sensordash/pkg/types"
	"github.com/sensordash/sensordash/server/internal/channel"
	"github.com/sensordash/sensordash/server/internal/status"
	"github.com/sensordash/sensordash/server/internal/store"
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads the latest evaluated list from the store and returns JSON.
type Handler struct {
	store *store.Store
	descs []channel.Descriptor
	mux   *http.ServeMux
}

// New creates a Handler wired to st and the channel catalog descs, and
// registers all routes.
func New(st *store.Store, descs []channel.Descriptor) http.Handler {
	h := &Handler{store: st, descs: descs, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/sensors", h.listSensors)
	h.mux.HandleFunc("/api/v1/sensors/", h.getSensor) // subtree; extracts {id}
	h.mux.HandleFunc("/api/v1/channels", h.channels)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: overall status and per-status counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	e, ok := h.store.Latest()
	if !ok {
		jsonResp(w, http.StatusOK, HealthResponse{Status: status.Overall(status.Summary{})})
		return
	}

	jsonResp(w, http.StatusOK, HealthResponse{
		Status:        status.Overall(e.Summary),
		SensorCount:   e.Summary.Total,
		NormalCount:   e.Summary.Normal,
		WarningCount:  e.Summary.Warning,
		CriticalCount: e.Summary.Critical,
		LastUpdated:   formatTime(e.UpdatedAt),
		Stale:         h.store.Stale(),
	})
}

// listSensors returns GET /api/v1/sensors: the evaluated list in catalog order.
func (h *Handler) listSensors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store).Sensors)
}

// getSensor returns GET /api/v1/sensors/{id}: one evaluated sensor.
func (h *Handler) getSensor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/sensors/")
	if id == "" {
		h.listSensors(w, r)
		return
	}
	if _, ok := channel.Find(h.descs, id); !ok {
		jsonErr(w, http.StatusNotFound, "sensor not found")
		return
	}

	es, ok := h.store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "no readings received yet")
		return
	}
	jsonResp(w, http.StatusOK, toSensorResponse(es, h.store.Stale()))
}

// channels returns GET /api/v1/channels: the static catalog.
func (h *Handler) channels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	out := make([]ChannelResponse, 0, len(h.descs))
	for _, d := range h.descs {
		out = append(out, toChannelResponse(d))
	}
	jsonResp(w, http.StatusOK, out)
}

// snapshot returns GET /api/v1/snapshot: sensors, summary and timestamps.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// BuildSnapshot assembles the full snapshot payload from st. The WebSocket
// hub sends the same structure.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	resp := SnapshotResponse{
		Sensors:     []SensorResponse{},
		GeneratedAt: formatTime(time.Now()),
	}

	e, ok := st.Latest()
	if !ok {
		resp.Status = status.Overall(status.Summary{})
		return resp
	}

	stale := st.Stale()
	resp.Status = status.Overall(e.Summary)
	resp.Summary = e.Summary
	resp.LastUpdated = formatTime(e.UpdatedAt)
	resp.Stale = stale
	resp.Sensors = make([]SensorResponse, 0, len(e.Sensors))
	for _, es := range e.Sensors {
		resp.Sensors = append(resp.Sensors, toSensorResponse(es, stale))
	}
	return resp
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response", "status", code, "err", err)
	}
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toSensorResponse(es types.EvaluatedSensor, stale bool) SensorResponse {
	return SensorResponse{
		EvaluatedSensor: es,
		Diagnostics:     computeDiagnostics(es, stale),
	}
}

func toChannelResponse(d channel.Descriptor) ChannelResponse {
	out := ChannelResponse{
		ID:       d.ID,
		Name:     d.Name,
		Category: d.Category,
		Unit:     d.Unit,
	}
	switch r := d.Rule.(type) {
	case channel.Ranged:
		min, max := r.Min, r.Max
		bands := status.BandsFor(r.Min, r.Max)
		out.Kind = "ranged"
		out.Min, out.Max = &min, &max
		out.Bands = &bands
	case channel.Binary:
		b := r
		out.Kind = "binary"
		out.Binary = &b
	}
	return out
}
