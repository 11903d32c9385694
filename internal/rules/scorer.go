// Package rules computes the deterministic part of a lead score.
package rules

import (
	"strings"
	"unicode/utf8"

	"github.com/spigell/lead-scorer/internal/leads"
)

// Breakdown holds the individual rule sub-scores for one lead.
type Breakdown struct {
	Role         int `json:"role"`
	Industry     int `json:"industry"`
	Completeness int `json:"completeness"`
}

// Total is the rule score, always within [0, leads.MaxRuleScore].
func (b Breakdown) Total() int {
	return b.Role + b.Industry + b.Completeness
}

// Scorer evaluates leads against an offer using a fixed policy table.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	policy compiled
}

// NewScorer compiles the policy. Empty lists fall back to DefaultPolicy.
func NewScorer(p Policy) *Scorer {
	return &Scorer{policy: compile(p.WithDefaults())}
}

// Score returns the rule score of lead against offer.
func (s *Scorer) Score(lead leads.Lead, offer leads.Offer) int {
	return s.Explain(lead, offer).Total()
}

// Explain returns the per-rule breakdown behind Score.
func (s *Scorer) Explain(lead leads.Lead, offer leads.Offer) Breakdown {
	b := Breakdown{
		Role:     s.roleScore(lead.Role),
		Industry: s.industryScore(lead.Industry, offer.IdealUseCases),
	}
	if lead.Complete() {
		b.Completeness = CompletenessPoints
	}
	return b
}

func (s *Scorer) roleScore(role string) int {
	words := tokenize(role)
	switch {
	case len(words) == 0:
		return 0
	case matchesAny(words, s.policy.decisionMakers):
		return DecisionMakerPoints
	case matchesAny(words, s.policy.influencers):
		return InfluencerPoints
	default:
		return 0
	}
}

func (s *Scorer) industryScore(industry string, useCases []string) int {
	words := tokenize(industry)
	if len(words) == 0 {
		return 0
	}

	normalized := strings.Join(words, " ")
	adjacent := false
	for _, useCase := range useCases {
		ucWords := tokenize(useCase)
		if len(ucWords) == 0 {
			continue
		}
		if strings.Join(ucWords, " ") == normalized {
			return IndustryExactPoints
		}
		if !adjacent && s.adjacent(words, ucWords) {
			adjacent = true
		}
	}

	if adjacent {
		return IndustryAdjacentPoints
	}
	return 0
}

// adjacent reports a softer overlap: one side contains the other as a phrase,
// or both share a significant keyword.
func (s *Scorer) adjacent(industry, useCase []string) bool {
	if containsPhrase(useCase, industry) || containsPhrase(industry, useCase) {
		return true
	}

	keywords := make(map[string]struct{}, len(useCase))
	for _, w := range useCase {
		if s.significant(w) {
			keywords[w] = struct{}{}
		}
	}
	for _, w := range industry {
		if _, ok := keywords[w]; ok {
			return true
		}
	}
	return false
}

func (s *Scorer) significant(word string) bool {
	if utf8.RuneCountInString(word) < minKeywordRunes {
		return false
	}
	_, stop := s.policy.stopWords[word]
	return !stop
}
