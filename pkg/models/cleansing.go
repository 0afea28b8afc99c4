package models

import (
	"encoding/json"
	"time"
)

const (
	// DefaultConfidenceThreshold applies when a request does not set one.
	DefaultConfidenceThreshold = 0.75
	// SampleMatchLimit is the number of persisted matches returned with a job response.
	SampleMatchLimit = 10

	HighConfidenceScore   = 0.9
	MediumConfidenceScore = 0.75
)

// JobStatus is the persisted lifecycle state of a cleansing job
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// MatchType names the matcher that accepted a pair
type MatchType string

const (
	MatchTypeExact    MatchType = "exact"
	MatchTypeFuzzy    MatchType = "fuzzy"
	MatchTypePhonetic MatchType = "phonetic"
	MatchTypeSemantic MatchType = "semantic"
)

// SuggestedAction is the recommended disposition for a matched pair
type SuggestedAction string

const (
	ActionMerge     SuggestedAction = "merge"
	ActionOverwrite SuggestedAction = "overwrite"
	ActionKeepBoth  SuggestedAction = "keep_both"
	ActionSkip      SuggestedAction = "skip"
)

// CleansingJob is one invocation of the duplicate-detection engine over a batch.
type CleansingJob struct {
	ID                  string            `json:"id"`
	UserID              string            `json:"userId"`
	MigrationProjectID  *string           `json:"migrationProjectId,omitempty"`
	SourceData          []CandidateRecord `json:"sourceData,omitempty"`
	TargetData          []CandidateRecord `json:"targetData,omitempty"`
	UserRules           json.RawMessage   `json:"userRules,omitempty"`
	ConfidenceThreshold float64           `json:"confidenceThreshold"`
	TotalRecords        int               `json:"totalRecords"`
	ProcessedRecords    int               `json:"processedRecords"`
	Status              JobStatus         `json:"status"`
	Error               *string           `json:"error,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
	CompletedAt         *time.Time        `json:"completedAt,omitempty"`
}

// ReconciliationStrategy carries matcher specific metadata for a match.
type ReconciliationStrategy struct {
	MatchType         MatchType `json:"matchType"`
	ConflictingFields []string  `json:"conflictingFields,omitempty"`
	MatchedFields     []string  `json:"matchedFields,omitempty"`
	SimilarityScore   *float64  `json:"similarityScore,omitempty"`
	Reasoning         string    `json:"reasoning,omitempty"`
}

// MatchResult is an accepted source x target pair.
type MatchResult struct {
	ID                     string                 `json:"id,omitempty"`
	JobID                  string                 `json:"jobId,omitempty"`
	Sequence               int                    `json:"-"`
	SourceRecordID         string                 `json:"sourceRecordId"`
	TargetRecordID         *string                `json:"targetRecordId,omitempty"`
	SourceData             CandidateRecord        `json:"sourceData"`
	TargetData             CandidateRecord        `json:"targetData"`
	ConfidenceScore        float64                `json:"confidenceScore"`
	MatchType              MatchType              `json:"matchType"`
	ConflictFields         []string               `json:"conflictFields"`
	SuggestedAction        SuggestedAction        `json:"suggestedAction"`
	ReconciliationStrategy ReconciliationStrategy `json:"reconciliationStrategy"`
	CreatedAt              time.Time              `json:"createdAt,omitzero"`
}

// SummaryReport tallies the persisted matches of a completed job.
type SummaryReport struct {
	TotalRecords            int `json:"totalRecords"`
	DuplicatesFound         int `json:"duplicatesFound"`
	HighConfidenceMatches   int `json:"highConfidenceMatches"`
	MediumConfidenceMatches int `json:"mediumConfidenceMatches"`
	ExactMatches            int `json:"exactMatches"`
	FuzzyMatches            int `json:"fuzzyMatches"`
	PhoneticMatches         int `json:"phoneticMatches"`
	SemanticMatches         int `json:"semanticMatches"`
}

// CleansingRequest starts a cleansing job.
type CleansingRequest struct {
	SourceData          []CandidateRecord `json:"sourceData" validate:"required"`
	TargetData          []CandidateRecord `json:"targetData"`
	ConfidenceThreshold *float64          `json:"confidenceThreshold" validate:"omitempty,gte=0,lte=1"`
	MigrationProjectID  *string           `json:"migrationProjectId"`
	UserRules           json.RawMessage   `json:"userRules"`
}

// ThresholdOr returns the requested confidence threshold or fallback.
func (r CleansingRequest) ThresholdOr(fallback float64) float64 {
	if r.ConfidenceThreshold == nil {
		return fallback
	}
	return *r.ConfidenceThreshold
}

// CleansingResponse is returned to the caller once a job has run.
type CleansingResponse struct {
	Success bool          `json:"success"`
	JobID   string        `json:"jobId"`
	Summary SummaryReport `json:"summary"`
	Matches []MatchResult `json:"matches"`
}

// FailureResponse is returned when a cleansing job could not be run.
type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
