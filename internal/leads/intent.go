package leads

import (
	"fmt"
	"strings"
)

// Intent is the buying intent assigned by the AI classifier.
type Intent string

const (
	IntentHigh   Intent = "High"
	IntentMedium Intent = "Medium"
	IntentLow    Intent = "Low"
)

// Points awarded for each intent.
const (
	PointsHigh   = 50
	PointsMedium = 30
	PointsLow    = 10
)

// Intents lists every valid intent from strongest to weakest.
var Intents = []Intent{IntentHigh, IntentMedium, IntentLow}

// Points maps the intent to its AI points. Unknown intents score as Low.
func (i Intent) Points() int {
	switch i {
	case IntentHigh:
		return PointsHigh
	case IntentMedium:
		return PointsMedium
	default:
		return PointsLow
	}
}

// Valid reports whether i is one of High, Medium or Low.
func (i Intent) Valid() bool {
	switch i {
	case IntentHigh, IntentMedium, IntentLow:
		return true
	default:
		return false
	}
}

// ParseIntent matches s case-insensitively against the known intents.
func ParseIntent(s string) (Intent, error) {
	s = strings.TrimSpace(s)
	for _, intent := range Intents {
		if strings.EqualFold(s, string(intent)) {
			return intent, nil
		}
	}
	return "", fmt.Errorf("unknown intent %q", s)
}

// IntentFromPoints is the inverse of Intent.Points.
func IntentFromPoints(points int) (Intent, error) {
	switch points {
	case PointsHigh:
		return IntentHigh, nil
	case PointsMedium:
		return IntentMedium, nil
	case PointsLow:
		return IntentLow, nil
	default:
		return "", fmt.Errorf("no intent for %d ai points", points)
	}
}
