package cleansing

import "github.com/Ramsey-B/fern/pkg/models"

// Summarize tallies persisted matches by confidence band and match type.
func Summarize(totalRecords int, matches []models.MatchResult) models.SummaryReport {
	summary := models.SummaryReport{
		TotalRecords:    totalRecords,
		DuplicatesFound: len(matches),
	}

	for _, m := range matches {
		switch {
		case m.ConfidenceScore >= models.HighConfidenceScore:
			summary.HighConfidenceMatches++
		case m.ConfidenceScore >= models.MediumConfidenceScore:
			summary.MediumConfidenceMatches++
		}

		switch m.MatchType {
		case models.MatchTypeExact:
			summary.ExactMatches++
		case models.MatchTypeFuzzy:
			summary.FuzzyMatches++
		case models.MatchTypePhonetic:
			summary.PhoneticMatches++
		case models.MatchTypeSemantic:
			summary.SemanticMatches++
		}
	}

	return summary
}
