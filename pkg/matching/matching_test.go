package matching

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestSuggestAction(t *testing.T) {
	tests := []struct {
		name      string
		score     float64
		conflicts int
		expected  models.SuggestedAction
	}{
		{"perfect without conflicts", 1.0, 0, models.ActionSkip},
		{"boundary 0.95 without conflicts", 0.95, 0, models.ActionSkip},
		{"perfect with conflicts", 1.0, 1, models.ActionMerge},
		{"high band", 0.9, 5, models.ActionMerge},
		{"boundary 0.85", 0.85, 0, models.ActionMerge},
		{"medium band few conflicts", 0.8, 3, models.ActionMerge},
		{"medium band many conflicts", 0.8, 4, models.ActionKeepBoth},
		{"boundary 0.75", 0.75, 0, models.ActionMerge},
		{"low", 0.7, 0, models.ActionKeepBoth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SuggestAction(tt.score, tt.conflicts))
		})
	}
}

func TestExactMatcher(t *testing.T) {
	m := NewExactMatcher()
	ctx := context.Background()

	t.Run("email equal ignoring case", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"id": "s1", "email": "a@x.com"},
			models.CandidateRecord{"id": "t1", "email": "A@X.COM"},
		)

		result := m.Match(ctx, pair)
		require.NotNil(t, result)
		assert.Equal(t, models.MatchTypeExact, result.MatchType)
		assert.Equal(t, 1.0, result.ConfidenceScore)
		assert.Empty(t, result.ConflictFields)
		assert.Equal(t, models.ActionSkip, result.SuggestedAction)
		assert.Equal(t, "s1", result.SourceRecordID)
		require.NotNil(t, result.TargetRecordID)
		assert.Equal(t, "t1", *result.TargetRecordID)
		assert.Equal(t, []string{"email"}, result.ReconciliationStrategy.MatchedFields)
	})

	t.Run("one key equal and another conflicting", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"email": " bob@acme.io ", "phone": "555-0100"},
			models.CandidateRecord{"email": "bob@acme.io", "phone": "555-0199"},
		)

		result := m.Match(ctx, pair)
		require.NotNil(t, result)
		assert.Equal(t, 1.0, result.ConfidenceScore)
		assert.Equal(t, []string{"phone"}, result.ConflictFields)
		assert.Equal(t, models.ActionMerge, result.SuggestedAction)
	})

	t.Run("numeric identifiers", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"account_id": float64(1001)},
			models.CandidateRecord{"account_id": "1001"},
		)
		assert.NotNil(t, m.Match(ctx, pair))
	})

	t.Run("only conflicts", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"email": "a@x.com"},
			models.CandidateRecord{"email": "b@x.com"},
		)
		assert.Nil(t, m.Match(ctx, pair))
	})

	t.Run("no shared keys", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"name": "Jonathan Smith"},
			models.CandidateRecord{"name": "Jon Smith"},
		)
		assert.Nil(t, m.Match(ctx, pair))
	})

	t.Run("blank keys are not present", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"email": ""},
			models.CandidateRecord{"email": "  "},
		)
		assert.Nil(t, m.Match(ctx, pair))
	})
}

func TestFuzzyMatcher(t *testing.T) {
	m := NewFuzzyMatcher(DefaultFuzzyConfig())
	ctx := context.Background()

	t.Run("close spelling is accepted", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"name": "Jonathan Smith"},
			models.CandidateRecord{"name": "Jonathon Smith"},
		)

		result := m.Match(ctx, pair)
		require.NotNil(t, result)
		assert.Equal(t, models.MatchTypeFuzzy, result.MatchType)
		assert.InDelta(t, 13.0/14.0, result.ConfidenceScore, 1e-9)
		assert.Equal(t, models.ActionMerge, result.SuggestedAction)
		assert.Equal(t, []string{"name"}, result.ReconciliationStrategy.MatchedFields)
		require.NotNil(t, result.ReconciliationStrategy.SimilarityScore)
	})

	t.Run("nickname is evaluated but rejected", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"name": "Jonathan Smith"},
			models.CandidateRecord{"name": "Jon Smith"},
		)
		assert.Nil(t, m.Match(ctx, pair))
	})

	t.Run("comparison is case insensitive", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"company": "ACME CORP"},
			models.CandidateRecord{"company": "acme corp"},
		)
		result := m.Match(ctx, pair)
		require.NotNil(t, result)
		assert.Equal(t, 1.0, result.ConfidenceScore)
		assert.Equal(t, models.ActionSkip, result.SuggestedAction)
	})

	t.Run("middle band counts only in the denominator", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"first_name": "Katherine", "last_name": "Smith", "company": "Acme", "title": "Robert"},
			models.CandidateRecord{"first_name": "Catherine", "last_name": "Smith", "company": "Acme", "title": "Rupert"},
		)
		// 8/9 + 1.0 + 1.0 + 0 over four fields
		result := m.Match(ctx, pair)
		require.NotNil(t, result)
		assert.InDelta(t, (8.0/9.0+2.0)/4.0, result.ConfidenceScore, 1e-9)
		assert.Empty(t, result.ConflictFields)
		assert.Equal(t, models.ActionKeepBoth, result.SuggestedAction)
	})

	t.Run("dissimilar fields conflict", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"name": "Acme", "company": "Globex", "title": "CEO", "address": "1 Main St"},
			models.CandidateRecord{"name": "Acme", "company": "Initech", "title": "CEO", "address": "1 Main St"},
		)
		result := m.Match(ctx, pair)
		require.NotNil(t, result)
		assert.InDelta(t, 0.75, result.ConfidenceScore, 1e-9)
		assert.Equal(t, []string{"company"}, result.ConflictFields)
		assert.Equal(t, models.ActionMerge, result.SuggestedAction)
	})

	t.Run("no shared text fields", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"email": "a@x.com"},
			models.CandidateRecord{"phone": "555"},
		)
		assert.Nil(t, m.Match(ctx, pair))
	})
}

func TestPhoneticMatcher(t *testing.T) {
	m := NewPhoneticMatcher()
	ctx := context.Background()

	t.Run("same code", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"first_name": "Robert"},
			models.CandidateRecord{"first_name": "Rupert"},
		)
		result := m.Match(ctx, pair)
		require.NotNil(t, result)
		assert.Equal(t, models.MatchTypePhonetic, result.MatchType)
		assert.Equal(t, 1.0, result.ConfidenceScore)
		assert.Equal(t, models.ActionSkip, result.SuggestedAction)
	})

	t.Run("one of two fields conflicts", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"first_name": "Robert", "last_name": "Smith"},
			models.CandidateRecord{"first_name": "Rupert", "last_name": "Jones"},
		)
		assert.Nil(t, m.Match(ctx, pair))
	})

	t.Run("different first letter", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"name": "Catherine"},
			models.CandidateRecord{"name": "Katherine"},
		)
		assert.Nil(t, m.Match(ctx, pair))
	})

	t.Run("values without letters are skipped", func(t *testing.T) {
		pair := NewPair(0,
			models.CandidateRecord{"name": "1234", "last_name": "Smith"},
			models.CandidateRecord{"name": "5678", "last_name": "Smyth"},
		)
		result := m.Match(ctx, pair)
		require.NotNil(t, result)
		assert.Equal(t, []string{"last_name"}, result.ReconciliationStrategy.MatchedFields)
	})
}

func TestNewPair(t *testing.T) {
	t.Run("missing ids", func(t *testing.T) {
		pair := NewPair(3, models.CandidateRecord{"name": "a"}, models.CandidateRecord{"name": "b"})
		assert.Equal(t, "source-3", pair.SourceID)
		assert.Nil(t, pair.TargetID)
	})

	t.Run("numeric ids", func(t *testing.T) {
		pair := NewPair(0, models.CandidateRecord{"id": float64(12)}, models.CandidateRecord{"id": float64(7)})
		assert.Equal(t, "12", pair.SourceID)
		require.NotNil(t, pair.TargetID)
		assert.Equal(t, "7", *pair.TargetID)
	})
}
