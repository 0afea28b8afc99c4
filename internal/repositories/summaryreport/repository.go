package summaryreport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const table = "summary_reports"

var columns = []string{
	"job_id", "total_records", "duplicates_found", "high_confidence_matches", "medium_confidence_matches",
	"exact_matches", "fuzzy_matches", "phonetic_matches", "semantic_matches", "created_at",
}

type row struct {
	JobID                   string    `db:"job_id"`
	TotalRecords            int       `db:"total_records"`
	DuplicatesFound         int       `db:"duplicates_found"`
	HighConfidenceMatches   int       `db:"high_confidence_matches"`
	MediumConfidenceMatches int       `db:"medium_confidence_matches"`
	ExactMatches            int       `db:"exact_matches"`
	FuzzyMatches            int       `db:"fuzzy_matches"`
	PhoneticMatches         int       `db:"phonetic_matches"`
	SemanticMatches         int       `db:"semantic_matches"`
	CreatedAt               time.Time `db:"created_at"`
}

// Repository handles summary report persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new summary report repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create stores the summary of a finished job. A job has at most one summary.
func (r *Repository) Create(ctx context.Context, jobID string, summary models.SummaryReport) error {
	ctx, span := tracing.StartSpan(ctx, "summaryreport.Repository.Create")
	defer span.End()

	sb := r.db.Flavor().NewInsertBuilder()
	sb.InsertInto(table)
	sb.Cols(columns...)
	sb.Values(
		jobID,
		summary.TotalRecords, summary.DuplicatesFound, summary.HighConfidenceMatches, summary.MediumConfidenceMatches,
		summary.ExactMatches, summary.FuzzyMatches, summary.PhoneticMatches, summary.SemanticMatches,
		time.Now().UTC(),
	)

	query, args := sb.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("job_id", jobID).Error("Failed to create summary report")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create summary report")
	}

	return nil
}

// GetByJob returns the summary of a completed job
func (r *Repository) GetByJob(ctx context.Context, jobID string) (*models.SummaryReport, error) {
	ctx, span := tracing.StartSpan(ctx, "summaryreport.Repository.GetByJob")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("job_id", jobID))

	query, args := sb.Build()
	var found row
	if err := r.db.Conn(ctx).GetContext(ctx, &found, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("summary for cleansing job %s not found", jobID))
		}
		r.logger.WithContext(ctx).WithError(err).WithField("job_id", jobID).Error("Failed to get summary report")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get summary report")
	}

	return &models.SummaryReport{
		TotalRecords:            found.TotalRecords,
		DuplicatesFound:         found.DuplicatesFound,
		HighConfidenceMatches:   found.HighConfidenceMatches,
		MediumConfidenceMatches: found.MediumConfidenceMatches,
		ExactMatches:            found.ExactMatches,
		FuzzyMatches:            found.FuzzyMatches,
		PhoneticMatches:         found.PhoneticMatches,
		SemanticMatches:         found.SemanticMatches,
	}, nil
}
