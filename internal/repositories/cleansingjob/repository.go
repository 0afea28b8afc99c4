package cleansingjob

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const table = "cleansing_jobs"

var columns = []string{
	"id", "user_id", "migration_project_id", "source_data", "target_data", "user_rules",
	"confidence_threshold", "total_records", "processed_records", "status", "error",
	"created_at", "updated_at", "completed_at",
}

// row is the persisted shape of a cleansing job
type row struct {
	ID                  string                                   `db:"id"`
	UserID              string                                   `db:"user_id"`
	MigrationProjectID  *string                                  `db:"migration_project_id"`
	SourceData          database.JSONB[[]models.CandidateRecord] `db:"source_data"`
	TargetData          database.JSONB[[]models.CandidateRecord] `db:"target_data"`
	UserRules           *string                                  `db:"user_rules"`
	ConfidenceThreshold float64                                  `db:"confidence_threshold"`
	TotalRecords        int                                      `db:"total_records"`
	ProcessedRecords    int                                      `db:"processed_records"`
	Status              string                                   `db:"status"`
	Error               *string                                  `db:"error"`
	CreatedAt           time.Time                                `db:"created_at"`
	UpdatedAt           time.Time                                `db:"updated_at"`
	CompletedAt         *time.Time                               `db:"completed_at"`
}

func (r row) toModel() models.CleansingJob {
	job := models.CleansingJob{
		ID:                  r.ID,
		UserID:              r.UserID,
		MigrationProjectID:  r.MigrationProjectID,
		SourceData:          r.SourceData.GetValue(),
		TargetData:          r.TargetData.GetValue(),
		ConfidenceThreshold: r.ConfidenceThreshold,
		TotalRecords:        r.TotalRecords,
		ProcessedRecords:    r.ProcessedRecords,
		Status:              models.JobStatus(r.Status),
		Error:               r.Error,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
	if r.UserRules != nil {
		job.UserRules = json.RawMessage(*r.UserRules)
	}
	if r.CompletedAt != nil {
		completedAt := r.CompletedAt.UTC()
		job.CompletedAt = &completedAt
	}
	return job
}

// Repository handles cleansing job persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
	now    func() time.Time
}

// NewRepository creates a new cleansing job repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a job in the processing state
func (r *Repository) Create(ctx context.Context, job *models.CleansingJob) error {
	ctx, span := tracing.StartSpan(ctx, "cleansingjob.Repository.Create")
	defer span.End()

	var userRules *string
	if len(job.UserRules) > 0 && string(job.UserRules) != "null" {
		rules := string(job.UserRules)
		userRules = &rules
	}

	sb := r.db.Flavor().NewInsertBuilder()
	sb.InsertInto(table)
	sb.Cols(columns...)
	sb.Values(
		job.ID, job.UserID, job.MigrationProjectID,
		database.NewJSONB(nonNil(job.SourceData)), database.NewJSONB(nonNil(job.TargetData)), userRules,
		job.ConfidenceThreshold, job.TotalRecords, job.ProcessedRecords, string(job.Status), job.Error,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)

	query, args := sb.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": job.ID}).Error("Failed to create cleansing job")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create cleansing job")
	}

	return nil
}

// Get retrieves a job owned by userID
func (r *Repository) Get(ctx context.Context, userID string, id string) (*models.CleansingJob, error) {
	ctx, span := tracing.StartSpan(ctx, "cleansingjob.Repository.Get")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("user_id", userID),
	)

	query, args := sb.Build()
	var found row
	if err := r.db.Conn(ctx).GetContext(ctx, &found, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("cleansing job %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get cleansing job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get cleansing job")
	}

	job := found.toModel()
	return &job, nil
}

// List returns the caller's jobs, newest first. Record payloads are omitted.
func (r *Repository) List(ctx context.Context, userID string, limit, offset int) ([]models.CleansingJob, error) {
	ctx, span := tracing.StartSpan(ctx, "cleansingjob.Repository.List")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("user_id", userID))
	sb.OrderBy("created_at DESC", "id")
	sb.Limit(limit)
	sb.Offset(offset)

	query, args := sb.Build()
	var rows []row
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list cleansing jobs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list cleansing jobs")
	}

	jobs := make([]models.CleansingJob, 0, len(rows))
	for _, found := range rows {
		job := found.toModel()
		job.SourceData = nil
		job.TargetData = nil
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// UpdateProgress records how many source records have been scanned
func (r *Repository) UpdateProgress(ctx context.Context, id string, processed int) error {
	ctx, span := tracing.StartSpan(ctx, "cleansingjob.Repository.UpdateProgress")
	defer span.End()

	sb := r.db.Flavor().NewUpdateBuilder()
	sb.Update(table)
	sb.Set(
		sb.Assign("processed_records", processed),
		sb.Assign("updated_at", r.now()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("status", string(models.JobStatusProcessing)),
	)

	return r.exec(ctx, sb, id, "update cleansing job progress")
}

// Complete moves a processing job to completed
func (r *Repository) Complete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "cleansingjob.Repository.Complete")
	defer span.End()

	now := r.now()
	sb := r.db.Flavor().NewUpdateBuilder()
	sb.Update(table)
	sb.Set(
		sb.Assign("status", string(models.JobStatusCompleted)),
		sb.Assign("completed_at", now),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("status", string(models.JobStatusProcessing)),
	)

	return r.exec(ctx, sb, id, "complete cleansing job")
}

// Fail moves a processing job to failed with the given reason
func (r *Repository) Fail(ctx context.Context, id string, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "cleansingjob.Repository.Fail")
	defer span.End()

	sb := r.db.Flavor().NewUpdateBuilder()
	sb.Update(table)
	sb.Set(
		sb.Assign("status", string(models.JobStatusFailed)),
		sb.Assign("error", reason),
		sb.Assign("updated_at", r.now()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("status", string(models.JobStatusProcessing)),
	)

	return r.exec(ctx, sb, id, "fail cleansing job")
}

func (r *Repository) exec(ctx context.Context, sb *sqlbuilder.UpdateBuilder, id string, action string) error {
	query, args := sb.Build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("job_id", id).Errorf("Failed to %s", action)
		return httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to %s", action))
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("processing cleansing job %s not found", id))
	}

	return nil
}

func nonNil(records []models.CandidateRecord) []models.CandidateRecord {
	if records == nil {
		return []models.CandidateRecord{}
	}
	return records
}
