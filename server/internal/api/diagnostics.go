package api

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/sensordash/sensordash/pkg/types"
	"github.com/sensordash/sensordash/server/internal/status"
)

// DiagnosticHint is one human-readable insight about a sensor's reading.
// The UI shows these as chips on the sensor card; Detail is the full
// explanation shown on click or hover.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional number associated with the hint.
	Value *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints for one evaluated sensor.
// Hints are ordered critical first, then warnings, then the rest.
func computeDiagnostics(es types.EvaluatedSensor, stale bool) []DiagnosticHint {
	var hints []DiagnosticHint

	if es.Binary {
		hints = append(hints, binaryHint(es))
	} else {
		hints = append(hints, rangedHints(es)...)
	}

	if stale {
		at := formatTime(es.UpdatedAt)
		hints = append(hints, DiagnosticHint{
			Key:   "stale",
			Level: "warning",
			Title: "No fresh data",
			Detail: fmt.Sprintf(
				"The last reading arrived at %s and nothing newer has come in since. "+
					"The value shown may no longer reflect reality. "+
					"Check that the sensor node is powered and online, and that the dashboard "+
					"can still reach the database.",
				at,
			),
		})
	}

	if len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "healthy",
			Level: "ok",
			Title: "All clear",
			Detail: fmt.Sprintf(
				"%s reads %s, comfortably inside its normal band. No action needed.",
				es.Name, formatValue(es.Value, es.Unit),
			),
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return types.Status(hints[i].Level).Severity() > types.Status(hints[j].Level).Severity()
	})
	return hints
}

func rangedHints(es types.EvaluatedSensor) []DiagnosticHint {
	var hints []DiagnosticHint
	b := status.BandsFor(es.Min, es.Max)
	v := es.Value

	switch es.Status {
	case types.StatusCritical:
		edge, side := b.WarningMin, "below"
		if v > b.WarningMax {
			edge, side = b.WarningMax, "above"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "critical_band",
			Level: "critical",
			Title: fmt.Sprintf("%s %s critical edge", formatValue(v, es.Unit), side),
			Detail: fmt.Sprintf(
				"%s reads %s, %s the critical edge of %s. "+
					"Readings in the outer 10%% of the %s–%s envelope are treated as critical. "+
					"Act now if this persists across several updates.",
				es.Name, formatValue(v, es.Unit), side, formatValue(edge, es.Unit),
				formatValue(es.Min, es.Unit), formatValue(es.Max, es.Unit),
			),
			Value: &v,
		})

	case types.StatusWarning:
		edge, side := b.NormalMin, "below"
		if v > b.NormalMax {
			edge, side = b.NormalMax, "above"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "warning_band",
			Level: "warning",
			Title: fmt.Sprintf("Drifting %s normal", side),
			Detail: fmt.Sprintf(
				"%s reads %s, %s the normal band edge of %s but not yet critical. "+
					"The normal band is the inner 60%% of the envelope (%s to %s). "+
					"Watch whether the reading keeps moving in this direction.",
				es.Name, formatValue(v, es.Unit), side, formatValue(edge, es.Unit),
				formatValue(b.NormalMin, es.Unit), formatValue(b.NormalMax, es.Unit),
			),
			Value: &v,
		})
	}

	if es.Progress != nil && (*es.Progress < 0 || *es.Progress > 100) {
		p := *es.Progress
		hints = append(hints, DiagnosticHint{
			Key:   "out_of_envelope",
			Level: "info",
			Title: "Outside sensor range",
			Detail: fmt.Sprintf(
				"The reading sits at %.0f%% of the expected %s–%s envelope. "+
					"Values this far out are often a wiring or calibration fault rather "+
					"than a real condition.",
				p, formatValue(es.Min, es.Unit), formatValue(es.Max, es.Unit),
			),
			Value: &p,
		})
	}

	if v == 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "zero_reading",
			Level: "info",
			Title: "Reading is zero",
			Detail: "A value of exactly 0 is also what the dashboard shows when the latest " +
				"payload has no reading for this channel. If the node normally reports it, " +
				"check that the sensor is attached and the firmware is writing the field.",
		})
	}
	return hints
}

func binaryHint(es types.EvaluatedSensor) DiagnosticHint {
	level := string(es.Status)
	detail := fmt.Sprintf("%s reports %q.", es.Name, es.Label)
	switch es.Status {
	case types.StatusNormal:
		level = "ok"
		detail += " No action needed."
	case types.StatusWarning:
		detail += " This is informational; confirm it is expected for the area being monitored."
	case types.StatusCritical:
		detail += " The node is not reporting as expected. Check its power and network link."
	}
	return DiagnosticHint{
		Key:    "binary_state",
		Level:  level,
		Title:  es.Label,
		Detail: detail,
	}
}

// formatValue renders v with up to one decimal and its unit.
func formatValue(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v != float64(int64(v)) {
		s = strconv.FormatFloat(v, 'f', 1, 64)
	}
	if unit == "" {
		return s
	}
	return s + " " + unit
}
