package api

import (
	"github.com/sensordash/sensordash/pkg/types"
	"github.com/sensordash/sensordash/server/internal/channel"
	"github.com/sensordash/sensordash/server/internal/status"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status        types.Status `json:"status"`
	SensorCount   int          `json:"sensor_count"`
	NormalCount   int          `json:"normal_count"`
	WarningCount  int          `json:"warning_count"`
	CriticalCount int          `json:"critical_count"`
	LastUpdated   string       `json:"last_updated,omitempty"` // RFC3339
	Stale         bool         `json:"stale"`
}

// SensorResponse is one evaluated sensor in GET /api/v1/sensors or
// GET /api/v1/sensors/{id}.
type SensorResponse struct {
	types.EvaluatedSensor
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// ChannelResponse describes one catalog entry in GET /api/v1/channels.
type ChannelResponse struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Unit     string          `json:"unit,omitempty"`
	Kind     string          `json:"kind"` // "ranged" | "binary"
	Min      *float64        `json:"min,omitempty"`
	Max      *float64        `json:"max,omitempty"`
	Bands    *status.Bands   `json:"bands,omitempty"`
	Binary   *channel.Binary `json:"binary,omitempty"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket message.
type SnapshotResponse struct {
	Status      types.Status     `json:"status"`
	Summary     status.Summary   `json:"summary"`
	Sensors     []SensorResponse `json:"sensors"`
	LastUpdated string           `json:"last_updated,omitempty"` // RFC3339
	Stale       bool             `json:"stale"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
