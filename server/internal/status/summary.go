package status

import "github.com/sensordash/sensordash/pkg/types"

// Summary counts evaluated sensors per status.
type Summary struct {
	Total    int `json:"total"`
	Normal   int `json:"normal"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
}

// Summarize counts the statuses in list.
func Summarize(list []types.EvaluatedSensor) Summary {
	s := Summary{Total: len(list)}
	for _, es := range list {
		switch es.Status {
		case types.StatusNormal:
			s.Normal++
		case types.StatusWarning:
			s.Warning++
		case types.StatusCritical:
			s.Critical++
		}
	}
	return s
}

// Overall returns the worst status present in s, or unknown when s is empty.
func Overall(s Summary) types.Status {
	switch {
	case s.Total == 0:
		return types.StatusUnknown
	case s.Critical > 0:
		return types.StatusCritical
	case s.Warning > 0:
		return types.StatusWarning
	default:
		return types.StatusNormal
	}
}
