package types

import "time"

// Status is the three-level health state of one sensor channel.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"

	// StatusUnknown is only used for roll-ups over an empty sensor list.
	// A single channel is never unknown.
	StatusUnknown Status = "unknown"
)

// Severity orders statuses so roll-ups can pick the worst one.
func (s Status) Severity() int {
	switch s {
	case StatusCritical:
		return 3
	case StatusWarning:
		return 2
	case StatusNormal:
		return 1
	default:
		return 0
	}
}

// Channel identifiers. The set is fixed; normalizers and the channel catalog
// both key on these.
const (
	ChannelTemperature = "temp-sensor"
	ChannelHumidity    = "hum-sensor"
	ChannelSoil        = "soil-sensor"
	ChannelLight       = "light-sensor"
	ChannelDistance    = "distance-sensor"
	ChannelMotion      = "pir-sensor"
	ChannelPeer        = "peer-sensor"
)

// Snapshot is the complete set of latest channel values at one point in time.
//
// CapturedAt is assigned when the snapshot is built by the ingestion side,
// never taken from the data source.
type Snapshot struct {
	Values     map[string]float64
	CapturedAt time.Time
}

// NewSnapshot returns a Snapshot with an allocated value map.
func NewSnapshot(capturedAt time.Time) Snapshot {
	return Snapshot{Values: make(map[string]float64), CapturedAt: capturedAt}
}

// Value returns the reading for id. A missing channel reads as 0.
func (s Snapshot) Value(id string) float64 {
	return s.Values[id]
}

// EvaluatedSensor is one channel's reading together with its derived status.
// It is renderer-ready and never mutated after creation.
type EvaluatedSensor struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
	Status   Status  `json:"status"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`

	// Progress is (value-min)/(max-min) as a percentage. Nil for binary
	// channels. Not clamped; clamping is left to the renderer.
	Progress *float64 `json:"progress,omitempty"`

	// Binary is true for two-valued channels (motion, connectivity).
	Binary bool `json:"binary"`

	// Label is the human-readable state of a binary channel
	// ("Connected", "Motion detected"). Empty for ranged channels.
	Label string `json:"label,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}
