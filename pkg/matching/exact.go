package matching

import (
	"context"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// KeyFields are compared by the exact matcher.
var KeyFields = []string{"email", "phone", "external_id", "account_id"}

// ExactMatcher accepts a pair when any key identifier is equal on both records,
// ignoring case and surrounding whitespace.
type ExactMatcher struct {
	fields []string
}

func NewExactMatcher() *ExactMatcher {
	return &ExactMatcher{fields: KeyFields}
}

func (m *ExactMatcher) Name() models.MatchType {
	return models.MatchTypeExact
}

func (m *ExactMatcher) Match(_ context.Context, pair Pair) *models.MatchResult {
	var (
		matched   []string
		conflicts []string
	)

	for _, field := range m.fields {
		a, okA := pair.Source.Text(field)
		b, okB := pair.Target.Text(field)
		if !okA || !okB {
			continue
		}

		if normalizeKey(a) == normalizeKey(b) {
			matched = append(matched, field)
		} else {
			conflicts = append(conflicts, field)
		}
	}

	if len(matched) == 0 {
		return nil
	}

	action := models.ActionSkip
	if len(conflicts) > 0 {
		action = models.ActionMerge
	}

	return newResult(pair, models.MatchTypeExact, 1.0, conflicts, action, models.ReconciliationStrategy{
		MatchedFields:     matched,
		ConflictingFields: conflicts,
	})
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
