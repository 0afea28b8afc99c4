package matching

import (
	"context"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/similarity"
)

// TextFields are compared by the fuzzy matcher.
var TextFields = []string{"name", "first_name", "last_name", "company", "title", "address"}

// FuzzyConfig holds the fuzzy matcher's cutoffs
type FuzzyConfig struct {
	FieldMatch    float64 // similarity at or above which a field counts as matched
	FieldConflict float64 // similarity below which a field conflicts
	Accept        float64 // minimum averaged score to accept a pair
}

// DefaultFuzzyConfig returns the standard fuzzy cutoffs
func DefaultFuzzyConfig() FuzzyConfig {
	return FuzzyConfig{
		FieldMatch:    0.8,
		FieldConflict: 0.5,
		Accept:        0.7,
	}
}

// FuzzyMatcher scores a pair by normalized edit distance over free-text fields.
type FuzzyMatcher struct {
	fields []string
	config FuzzyConfig
}

func NewFuzzyMatcher(config FuzzyConfig) *FuzzyMatcher {
	return &FuzzyMatcher{fields: TextFields, config: config}
}

func (m *FuzzyMatcher) Name() models.MatchType {
	return models.MatchTypeFuzzy
}

func (m *FuzzyMatcher) Match(_ context.Context, pair Pair) *models.MatchResult {
	var (
		compared  int
		total     float64
		matched   []string
		conflicts []string
	)

	for _, field := range m.fields {
		a, okA := pair.Source.Text(field)
		b, okB := pair.Target.Text(field)
		if !okA || !okB {
			continue
		}
		compared++

		sim := similarity.EditDistanceSimilarity(strings.ToLower(a), strings.ToLower(b))
		switch {
		case sim >= m.config.FieldMatch:
			total += sim
			matched = append(matched, field)
		case sim < m.config.FieldConflict:
			conflicts = append(conflicts, field)
		}
	}

	if compared == 0 {
		return nil
	}

	score := total / float64(compared)
	if score < m.config.Accept {
		return nil
	}

	return newResult(pair, models.MatchTypeFuzzy, score, conflicts, SuggestAction(score, len(conflicts)), models.ReconciliationStrategy{
		MatchedFields:     matched,
		ConflictingFields: conflicts,
		SimilarityScore:   &score,
	})
}
