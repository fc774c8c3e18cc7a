package status

import (
	"time"

	"github.com/sensordash/sensordash/pkg/types"
	"github.com/sensordash/sensordash/server/internal/channel"
)

// Evaluate classifies every descriptor against snap and returns one
// EvaluatedSensor per descriptor, in descriptor order. Channels absent from
// snap are evaluated as 0.
func Evaluate(snap types.Snapshot, descs []channel.Descriptor) []types.EvaluatedSensor {
	out := make([]types.EvaluatedSensor, 0, len(descs))
	for _, d := range descs {
		out = append(out, evaluateOne(d, snap.Value(d.ID), snap.CapturedAt))
	}
	return out
}

func evaluateOne(d channel.Descriptor, value float64, at time.Time) types.EvaluatedSensor {
	es := types.EvaluatedSensor{
		ID:        d.ID,
		Name:      d.Name,
		Category:  d.Category,
		Value:     value,
		Unit:      d.Unit,
		UpdatedAt: at,
	}

	switch r := d.Rule.(type) {
	case channel.Ranged:
		p := Progress(value, r.Min, r.Max)
		es.Status = Classify(value, r.Min, r.Max)
		es.Min, es.Max = r.Min, r.Max
		es.Progress = &p
	case channel.Binary:
		es.Binary = true
		es.Min, es.Max = 0, 1
		if value == r.Match {
			es.Status, es.Label = r.OnMatch, r.MatchLabel
		} else {
			es.Status, es.Label = r.Otherwise, r.OtherLabel
		}
	default:
		es.Status = types.StatusUnknown
	}
	return es
}
