// Package repositories wires the table repositories into the cleansing store.
package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/cleansingjob"
	"github.com/Ramsey-B/fern/internal/repositories/matchresult"
	"github.com/Ramsey-B/fern/internal/repositories/summaryreport"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// CleansingStore persists cleansing jobs, their matches and their summaries
type CleansingStore struct {
	db        database.DB
	logger    ectologger.Logger
	Jobs      *cleansingjob.Repository
	Matches   *matchresult.Repository
	Summaries *summaryreport.Repository
}

// NewCleansingStore creates the store over a migrated database
func NewCleansingStore(db database.DB, logger ectologger.Logger) *CleansingStore {
	return &CleansingStore{
		db:        db,
		logger:    logger,
		Jobs:      cleansingjob.NewRepository(db, logger),
		Matches:   matchresult.NewRepository(db, logger),
		Summaries: summaryreport.NewRepository(db, logger),
	}
}

func (s *CleansingStore) CreateJob(ctx context.Context, job *models.CleansingJob) error {
	return s.Jobs.Create(ctx, job)
}

func (s *CleansingStore) UpdateProgress(ctx context.Context, jobID string, processed int) error {
	return s.Jobs.UpdateProgress(ctx, jobID, processed)
}

func (s *CleansingStore) InsertMatch(ctx context.Context, match *models.MatchResult) error {
	return s.Matches.Create(ctx, match)
}

// CompleteJob writes the summary and flips the job to completed in one transaction
func (s *CleansingStore) CompleteJob(ctx context.Context, jobID string, summary models.SummaryReport) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.CleansingStore.CompleteJob")
	defer span.End()

	txCtx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(txCtx)
	}()

	if err := s.Summaries.Create(txCtx, jobID, summary); err != nil {
		return err
	}
	if err := s.Jobs.Complete(txCtx, jobID); err != nil {
		return err
	}

	return tx.Commit(txCtx)
}

func (s *CleansingStore) FailJob(ctx context.Context, jobID string, reason string) error {
	return s.Jobs.Fail(ctx, jobID, reason)
}

func (s *CleansingStore) GetJob(ctx context.Context, userID string, jobID string) (*models.CleansingJob, error) {
	return s.Jobs.Get(ctx, userID, jobID)
}

func (s *CleansingStore) ListJobs(ctx context.Context, userID string, limit, offset int) ([]models.CleansingJob, error) {
	return s.Jobs.List(ctx, userID, limit, offset)
}

func (s *CleansingStore) ListMatches(ctx context.Context, jobID string, limit, offset int) ([]models.MatchResult, error) {
	return s.Matches.ListByJob(ctx, jobID, limit, offset)
}

func (s *CleansingStore) GetSummary(ctx context.Context, jobID string) (*models.SummaryReport, error) {
	return s.Summaries.GetByJob(ctx, jobID)
}
