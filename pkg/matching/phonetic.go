package matching

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/similarity"
)

// NameFields are compared by the phonetic matcher.
var NameFields = []string{"name", "first_name", "last_name"}

// PhoneticMatcher accepts pairs whose names share phonetic codes.
type PhoneticMatcher struct {
	fields []string
	accept float64
}

func NewPhoneticMatcher() *PhoneticMatcher {
	return &PhoneticMatcher{fields: NameFields, accept: 0.8}
}

func (m *PhoneticMatcher) Name() models.MatchType {
	return models.MatchTypePhonetic
}

func (m *PhoneticMatcher) Match(_ context.Context, pair Pair) *models.MatchResult {
	var (
		compared  int
		matched   []string
		conflicts []string
	)

	for _, field := range m.fields {
		a, okA := pair.Source.Text(field)
		b, okB := pair.Target.Text(field)
		if !okA || !okB {
			continue
		}

		codeA, codeB := similarity.PhoneticCode(a), similarity.PhoneticCode(b)
		// values with no letters have no code to compare
		if codeA == "" || codeB == "" {
			continue
		}
		compared++

		if codeA == codeB {
			matched = append(matched, field)
		} else {
			conflicts = append(conflicts, field)
		}
	}

	if compared == 0 {
		return nil
	}

	score := float64(len(matched)) / float64(compared)
	if score < m.accept {
		return nil
	}

	return newResult(pair, models.MatchTypePhonetic, score, conflicts, SuggestAction(score, len(conflicts)), models.ReconciliationStrategy{
		MatchedFields:     matched,
		ConflictingFields: conflicts,
		SimilarityScore:   &score,
	})
}
