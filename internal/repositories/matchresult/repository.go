package matchresult

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const table = "match_results"

var columns = []string{
	"id", "job_id", "sequence", "source_record_id", "target_record_id", "source_data", "target_data",
	"confidence_score", "match_type", "conflict_fields", "suggested_action", "reconciliation_strategy", "created_at",
}

type row struct {
	ID                     string                                        `db:"id"`
	JobID                  string                                        `db:"job_id"`
	Sequence               int                                           `db:"sequence"`
	SourceRecordID         string                                        `db:"source_record_id"`
	TargetRecordID         *string                                       `db:"target_record_id"`
	SourceData             database.JSONB[models.CandidateRecord]        `db:"source_data"`
	TargetData             database.JSONB[models.CandidateRecord]        `db:"target_data"`
	ConfidenceScore        float64                                       `db:"confidence_score"`
	MatchType              string                                        `db:"match_type"`
	ConflictFields         database.JSONB[[]string]                      `db:"conflict_fields"`
	SuggestedAction        string                                        `db:"suggested_action"`
	ReconciliationStrategy database.JSONB[models.ReconciliationStrategy] `db:"reconciliation_strategy"`
	CreatedAt              time.Time                                     `db:"created_at"`
}

func (r row) toModel() models.MatchResult {
	conflicts := r.ConflictFields.GetValue()
	if conflicts == nil {
		conflicts = []string{}
	}
	return models.MatchResult{
		ID:                     r.ID,
		JobID:                  r.JobID,
		Sequence:               r.Sequence,
		SourceRecordID:         r.SourceRecordID,
		TargetRecordID:         r.TargetRecordID,
		SourceData:             r.SourceData.GetValue(),
		TargetData:             r.TargetData.GetValue(),
		ConfidenceScore:        r.ConfidenceScore,
		MatchType:              models.MatchType(r.MatchType),
		ConflictFields:         conflicts,
		SuggestedAction:        models.SuggestedAction(r.SuggestedAction),
		ReconciliationStrategy: r.ReconciliationStrategy.GetValue(),
		CreatedAt:              r.CreatedAt.UTC(),
	}
}

// Repository handles match result persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match result repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a match result. Results are immutable once written.
func (r *Repository) Create(ctx context.Context, match *models.MatchResult) error {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.Create")
	defer span.End()

	conflicts := match.ConflictFields
	if conflicts == nil {
		conflicts = []string{}
	}

	sb := r.db.Flavor().NewInsertBuilder()
	sb.InsertInto(table)
	sb.Cols(columns...)
	sb.Values(
		match.ID, match.JobID, match.Sequence, match.SourceRecordID, match.TargetRecordID,
		database.NewJSONB(match.SourceData), database.NewJSONB(match.TargetData),
		match.ConfidenceScore, string(match.MatchType), database.NewJSONB(conflicts),
		string(match.SuggestedAction), database.NewJSONB(match.ReconciliationStrategy), match.CreatedAt,
	)

	query, args := sb.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"job_id":   match.JobID,
			"match_id": match.ID,
		}).Error("Failed to create match result")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create match result")
	}

	return nil
}

// ListByJob returns a page of a job's matches in the order they were found
func (r *Repository) ListByJob(ctx context.Context, jobID string, limit, offset int) ([]models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.ListByJob")
	defer span.End()

	if limit < 1 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("job_id", jobID))
	sb.OrderBy("sequence")
	sb.Limit(limit)
	sb.Offset(offset)

	query, args := sb.Build()
	var rows []row
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("job_id", jobID).Error("Failed to list match results")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match results")
	}

	matches := make([]models.MatchResult, 0, len(rows))
	for _, found := range rows {
		matches = append(matches, found.toModel())
	}
	return matches, nil
}

// CountByJob returns the number of matches persisted for a job
func (r *Repository) CountByJob(ctx context.Context, jobID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.CountByJob")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(table)
	sb.Where(sb.Equal("job_id", jobID))

	query, args := sb.Build()
	var count int
	if err := r.db.Conn(ctx).GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("job_id", jobID).Error("Failed to count match results")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count match results")
	}
	return count, nil
}
