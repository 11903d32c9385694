package rules

import (
	"strings"
	"unicode"
)

// Points awarded by each rule.
const (
	DecisionMakerPoints    = 20
	InfluencerPoints       = 10
	IndustryExactPoints    = 20
	IndustryAdjacentPoints = 10
	CompletenessPoints     = 10
)

// minKeywordRunes is the shortest word considered for adjacent industry matching.
const minKeywordRunes = 3

// Policy is the keyword table used to classify roles and relate industries.
type Policy struct {
	// DecisionMakers are title phrases worth DecisionMakerPoints.
	DecisionMakers []string `mapstructure:"decision-makers"`
	// Influencers are title phrases worth InfluencerPoints.
	Influencers []string `mapstructure:"influencers"`
	// AdjacentStopWords are ignored when looking for shared industry keywords.
	AdjacentStopWords []string `mapstructure:"adjacent-stop-words"`
}

// DefaultPolicy returns the built-in keyword table.
func DefaultPolicy() Policy {
	return Policy{
		DecisionMakers: []string{
			"ceo", "cto", "cfo", "coo", "cmo", "cro", "chief",
			"founder", "owner", "president", "partner",
			"vp", "vice president", "svp", "evp",
			"director", "head of", "head",
		},
		Influencers: []string{
			"manager", "lead", "specialist", "principal", "senior", "architect", "consultant",
		},
		AdjacentStopWords: []string{
			"and", "the", "for", "with", "mid", "market", "companies", "company",
			"business", "businesses", "industry", "services", "solutions",
		},
	}
}

// WithDefaults fills empty lists from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	def := DefaultPolicy()
	if len(p.DecisionMakers) == 0 {
		p.DecisionMakers = def.DecisionMakers
	}
	if len(p.Influencers) == 0 {
		p.Influencers = def.Influencers
	}
	if p.AdjacentStopWords == nil {
		p.AdjacentStopWords = def.AdjacentStopWords
	}
	return p
}

// compiled is the tokenised form of a Policy.
type compiled struct {
	decisionMakers [][]string
	influencers    [][]string
	stopWords      map[string]struct{}
}

func compile(p Policy) compiled {
	c := compiled{
		decisionMakers: phrases(p.DecisionMakers),
		influencers:    phrases(p.Influencers),
		stopWords:      make(map[string]struct{}, len(p.AdjacentStopWords)),
	}
	for _, w := range p.AdjacentStopWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			c.stopWords[w] = struct{}{}
		}
	}
	return c
}

func phrases(in []string) [][]string {
	out := make([][]string, 0, len(in))
	for _, p := range in {
		if words := tokenize(p); len(words) > 0 {
			out = append(out, words)
		}
	}
	return out
}

// tokenize lower-cases s and splits it into letter/digit words.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsPhrase reports whether phrase occurs as consecutive words in words.
func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func matchesAny(words []string, table [][]string) bool {
	for _, phrase := range table {
		if containsPhrase(words, phrase) {
			return true
		}
	}
	return false
}
