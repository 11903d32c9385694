package leads

import (
	"fmt"
	"slices"
)

// Score bounds.
const (
	MaxRuleScore  = 50
	MaxFinalScore = MaxRuleScore + PointsHigh
)

// ScoredLead is the outcome of scoring one lead.
type ScoredLead struct {
	// Position is the lead's zero-based index in the uploaded batch.
	Position    int    `json:"position"`
	Lead        Lead   `json:"lead"`
	RuleScore   int    `json:"rule_score"`
	AIPoints    int    `json:"ai_points"`
	AIReasoning string `json:"ai_reasoning"`
	Intent      Intent `json:"intent"`
	FinalScore  int    `json:"final_score"`
	// Degraded marks a Low intent produced by the classifier fallback rather
	// than by a classification.
	Degraded       bool   `json:"ai_degraded"`
	DegradedReason string `json:"ai_degraded_reason,omitempty"`
}

// NewScoredLead combines a rule score with an intent. AI points and the final
// score are derived, never supplied.
func NewScoredLead(position int, lead Lead, ruleScore int, intent Intent, reasoning string) (ScoredLead, error) {
	if ruleScore < 0 || ruleScore > MaxRuleScore {
		return ScoredLead{}, fmt.Errorf("rule score %d out of range [0,%d]", ruleScore, MaxRuleScore)
	}
	if !intent.Valid() {
		return ScoredLead{}, fmt.Errorf("invalid intent %q", intent)
	}

	points := intent.Points()
	return ScoredLead{
		Position:    position,
		Lead:        lead,
		RuleScore:   ruleScore,
		AIPoints:    points,
		AIReasoning: reasoning,
		Intent:      intent,
		FinalScore:  ruleScore + points,
	}, nil
}

// Results is an ordered set of scored leads as produced by a run.
type Results []ScoredLead

// Clone returns a copy that can be handed out without exposing stored state.
func (r Results) Clone() Results {
	if r == nil {
		return nil
	}
	return slices.Clone(r)
}

// Ranked returns a copy sorted by final score descending. Ties keep upload order.
func (r Results) Ranked() Results {
	out := r.Clone()
	slices.SortStableFunc(out, func(a, b ScoredLead) int {
		if a.FinalScore != b.FinalScore {
			return b.FinalScore - a.FinalScore
		}
		return a.Position - b.Position
	})
	return out
}

// WithIntent returns the entries carrying the given intent, preserving order.
func (r Results) WithIntent(intent Intent) Results {
	out := make(Results, 0, len(r))
	for _, s := range r {
		if s.Intent == intent {
			out = append(out, s)
		}
	}
	return out
}

// Degraded counts entries produced by the classifier fallback.
func (r Results) Degraded() int {
	n := 0
	for _, s := range r {
		if s.Degraded {
			n++
		}
	}
	return n
}
