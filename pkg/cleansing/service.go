// Package cleansing runs duplicate-detection jobs over a batch of candidate records.
package cleansing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var (
	ErrUnauthenticated = errors.New("caller identity is required")
	ErrJobCreation     = errors.New("failed to create cleansing job")
	ErrJobAborted      = errors.New("cleansing job failed")
)

// Store persists jobs and their results.
type Store interface {
	CreateJob(ctx context.Context, job *models.CleansingJob) error
	UpdateProgress(ctx context.Context, jobID string, processed int) error
	InsertMatch(ctx context.Context, match *models.MatchResult) error
	// CompleteJob persists the summary and marks the job completed.
	CompleteJob(ctx context.Context, jobID string, summary models.SummaryReport) error
	FailJob(ctx context.Context, jobID string, reason string) error
}

// Notifier is told about completed jobs. Notifier errors never fail a job.
type Notifier interface {
	JobCompleted(ctx context.Context, job *models.CleansingJob, summary models.SummaryReport, matches []models.MatchResult) error
}

// Evaluator decides whether a pair is a duplicate.
type Evaluator interface {
	Evaluate(ctx context.Context, pair matching.Pair) *models.MatchResult
}

// Service owns the cleansing job lifecycle.
type Service struct {
	logger    ectologger.Logger
	store     Store
	evaluator Evaluator
	notifiers []Notifier
	threshold float64
	now       func() time.Time
}

// NewService creates a cleansing service
func NewService(logger ectologger.Logger, store Store, evaluator Evaluator, notifiers ...Notifier) *Service {
	return &Service{
		logger:    logger,
		store:     store,
		evaluator: evaluator,
		notifiers: notifiers,
		threshold: models.DefaultConfidenceThreshold,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithDefaultThreshold sets the threshold used when a request does not carry one
func (s *Service) WithDefaultThreshold(threshold float64) *Service {
	s.threshold = threshold
	return s
}

// Run creates a job, scans every source x target pair, persists matches that
// clear the job's threshold and finalizes the job with a summary. The scan is
// not cancelled when ctx is.
func (s *Service) Run(ctx context.Context, userID string, req models.CleansingRequest) (*models.CleansingResponse, error) {
	ctx, span := tracing.StartSpan(context.WithoutCancel(ctx), "cleansing.Service.Run")
	defer span.End()

	if userID == "" {
		return nil, ErrUnauthenticated
	}

	start := s.now()
	targets := req.TargetData
	if targets == nil {
		targets = []models.CandidateRecord{}
	}

	job := &models.CleansingJob{
		ID:                  uuid.NewString(),
		UserID:              userID,
		MigrationProjectID:  req.MigrationProjectID,
		SourceData:          req.SourceData,
		TargetData:          targets,
		UserRules:           req.UserRules,
		ConfidenceThreshold: req.ThresholdOr(s.threshold),
		TotalRecords:        len(req.SourceData),
		ProcessedRecords:    0,
		Status:              models.JobStatusProcessing,
		CreatedAt:           start,
		UpdatedAt:           start,
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"job_id":         job.ID,
		"user_id":        userID,
		"source_records": len(job.SourceData),
		"target_records": len(job.TargetData),
		"threshold":      job.ConfidenceThreshold,
	})

	if err := s.store.CreateJob(ctx, job); err != nil {
		log.WithError(err).Error("Failed to create cleansing job")
		metrics.RecordJob("not_created", s.now().Sub(start).Seconds())
		return nil, fmt.Errorf("%w: %w", ErrJobCreation, err)
	}

	log.Info("Cleansing job started")

	r := newRun(job)
	matches, err := s.scan(ctx, r)
	if err == nil {
		summary := Summarize(job.TotalRecords, matches)
		if err = s.store.CompleteJob(ctx, job.ID, summary); err == nil {
			if err = r.complete(summary); err == nil {
				return s.finish(ctx, log, r, summary, matches, start), nil
			}
		}
	}

	s.abort(ctx, log, r, err, start)
	return nil, fmt.Errorf("%w: %w", ErrJobAborted, err)
}

func (s *Service) scan(ctx context.Context, r *run) ([]models.MatchResult, error) {
	job := r.job
	matches := []models.MatchResult{}

	for i, source := range job.SourceData {
		for _, target := range job.TargetData {
			result := s.evaluator.Evaluate(ctx, matching.NewPair(i, source, target))
			if result == nil {
				continue
			}

			persisted := result.ConfidenceScore >= job.ConfidenceThreshold
			metrics.RecordMatch(string(result.MatchType), persisted)
			if !persisted {
				continue
			}

			result.ID = uuid.NewString()
			result.JobID = job.ID
			result.Sequence = len(matches) + 1
			result.CreatedAt = s.now()
			if err := s.store.InsertMatch(ctx, result); err != nil {
				return nil, fmt.Errorf("failed to persist match for source record %s: %w", result.SourceRecordID, err)
			}
			matches = append(matches, *result)
		}

		processed, err := r.advance()
		if err != nil {
			return nil, err
		}
		if err := s.store.UpdateProgress(ctx, job.ID, processed); err != nil {
			return nil, fmt.Errorf("failed to update job progress: %w", err)
		}
	}

	return matches, nil
}

func (s *Service) finish(ctx context.Context, log ectologger.Logger, r *run, summary models.SummaryReport, matches []models.MatchResult, start time.Time) *models.CleansingResponse {
	completedAt := s.now()
	r.job.CompletedAt = &completedAt
	r.job.UpdatedAt = completedAt

	log.WithFields(map[string]any{
		"duplicates_found": summary.DuplicatesFound,
		"duration_ms":      completedAt.Sub(start).Milliseconds(),
	}).Info("Cleansing job completed")
	metrics.RecordJob(string(models.JobStatusCompleted), completedAt.Sub(start).Seconds())

	for _, n := range s.notifiers {
		if err := n.JobCompleted(ctx, r.job, summary, matches); err != nil {
			log.WithError(err).Warn("Failed to notify job completion")
		}
	}

	sample := matches
	if len(sample) > models.SampleMatchLimit {
		sample = sample[:models.SampleMatchLimit]
	}

	return &models.CleansingResponse{
		Success: true,
		JobID:   r.job.ID,
		Summary: summary,
		Matches: sample,
	}
}

// abort moves the job to failed. The write is best effort: if it fails the
// persisted row stays processing.
func (s *Service) abort(ctx context.Context, log ectologger.Logger, r *run, cause error, start time.Time) {
	reason := cause.Error()
	log.WithError(cause).WithField("processed_records", r.job.ProcessedRecords).Error("Cleansing job aborted")

	if err := s.store.FailJob(ctx, r.job.ID, reason); err != nil {
		log.WithError(err).Error("Failed to mark cleansing job as failed")
	}
	r.fail(reason)

	metrics.RecordJob(string(models.JobStatusFailed), s.now().Sub(start).Seconds())
}
