package matching

import "github.com/Ramsey-B/fern/pkg/models"

// SuggestAction maps a match score and its conflict count to a reconciliation action.
//
//	score >= 0.95        skip when there are no conflicts, otherwise merge
//	0.85 <= score < 0.95 merge
//	0.75 <= score < 0.85 keep_both when more than 3 fields conflict, otherwise merge
//	score < 0.75         keep_both
func SuggestAction(score float64, conflicts int) models.SuggestedAction {
	switch {
	case score >= 0.95:
		if conflicts == 0 {
			return models.ActionSkip
		}
		return models.ActionMerge
	case score >= 0.85:
		return models.ActionMerge
	case score >= 0.75:
		if conflicts > 3 {
			return models.ActionKeepBoth
		}
		return models.ActionMerge
	default:
		return models.ActionKeepBoth
	}
}
