package status

import (
	"math"

	"github.com/sensordash/sensordash/pkg/types"
)

// Band fractions of the envelope width.
const (
	// normalMargin bounds the inner 60% of the range.
	normalMargin = 0.2
	// warningMargin bounds the inner 80% of the range.
	warningMargin = 0.1
)

// Bands holds the absolute band edges for one envelope.
type Bands struct {
	WarningMin float64 `json:"warning_min"`
	NormalMin  float64 `json:"normal_min"`
	NormalMax  float64 `json:"normal_max"`
	WarningMax float64 `json:"warning_max"`
}

// BandsFor computes the band edges of [min, max].
func BandsFor(min, max float64) Bands {
	r := max - min
	return Bands{
		WarningMin: min + warningMargin*r,
		NormalMin:  min + normalMargin*r,
		NormalMax:  max - normalMargin*r,
		WarningMax: max - warningMargin*r,
	}
}

// Classify returns the status of value within [min, max].
//
//	value < warningMin || value > warningMax  → critical
//	value < normalMin  || value > normalMax   → warning
//	otherwise                                 → normal
//
// The critical check runs first; the warning band is wider than the normal
// band, so checking normal first would misclassify edge values.
func Classify(value, min, max float64) types.Status {
	b := BandsFor(min, max)
	switch {
	case value < b.WarningMin || value > b.WarningMax:
		return types.StatusCritical
	case value < b.NormalMin || value > b.NormalMax:
		return types.StatusWarning
	default:
		return types.StatusNormal
	}
}

// Progress returns (value-min)/(max-min) as a percentage. The result is not
// clamped to [0, 100]; readings outside the envelope give values below 0 or
// above 100. It is always finite so it can be encoded as JSON: overflow
// saturates at ±math.MaxFloat64 and an empty envelope gives 0.
func Progress(value, min, max float64) float64 {
	p := (value - min) / (max - min) * 100
	switch {
	case math.IsNaN(p):
		return 0
	case math.IsInf(p, 1):
		return math.MaxFloat64
	case math.IsInf(p, -1):
		return -math.MaxFloat64
	}
	return p
}
