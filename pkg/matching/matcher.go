// Package matching implements the duplicate-detection matcher cascade
package matching

import (
	"context"
	"strconv"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Pair is one source x target comparison.
type Pair struct {
	SourceID string
	TargetID *string
	Source   models.CandidateRecord
	Target   models.CandidateRecord
}

// NewPair builds a Pair, deriving record ids. A source record without an id is
// identified by its position in the batch.
func NewPair(sourceIndex int, source, target models.CandidateRecord) Pair {
	pair := Pair{
		SourceID: SourceRecordID(sourceIndex, source),
		Source:   source,
		Target:   target,
	}
	if id, ok := target.ID(); ok {
		pair.TargetID = &id
	}
	return pair
}

// SourceRecordID returns the record's id or "source-<index>".
func SourceRecordID(index int, record models.CandidateRecord) string {
	if id, ok := record.ID(); ok {
		return id
	}
	return "source-" + strconv.Itoa(index)
}

// Matcher decides whether one pair represents the same entity. A nil result
// means the matcher did not accept the pair.
type Matcher interface {
	Name() models.MatchType
	Match(ctx context.Context, pair Pair) *models.MatchResult
}

func newResult(pair Pair, matchType models.MatchType, score float64, conflicts []string, action models.SuggestedAction, strategy models.ReconciliationStrategy) *models.MatchResult {
	if conflicts == nil {
		conflicts = []string{}
	}
	strategy.MatchType = matchType

	return &models.MatchResult{
		SourceRecordID:         pair.SourceID,
		TargetRecordID:         pair.TargetID,
		SourceData:             pair.Source,
		TargetData:             pair.Target,
		ConfidenceScore:        clamp(score),
		MatchType:              matchType,
		ConflictFields:         conflicts,
		SuggestedAction:        action,
		ReconciliationStrategy: strategy,
	}
}

func clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
