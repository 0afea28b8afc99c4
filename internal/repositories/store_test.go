package repositories_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/db"
	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/cleansing"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
)

func getTestLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func getTestStore(t *testing.T) *repositories.CleansingStore {
	t.Helper()
	logger := getTestLogger()

	conn, err := database.Connect(context.Background(), database.Config{Driver: "sqlite", Path: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ms := database.NewMigrationService(logger, db.Migrations, &database.MigrationConfig{Dir: db.Dir(conn.DriverName())})
	require.NoError(t, ms.Migrate(conn))

	return repositories.NewCleansingStore(conn, logger)
}

// assertStatus asserts that err is an HTTP error with the given status
func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err), "expected HTTP error, got: %v", err)
	assert.Equal(t, status, httperror.GetStatusCode(err))
}

func newJob(userID string) *models.CleansingJob {
	now := time.Now().UTC().Truncate(time.Millisecond)
	project := "project-7"
	return &models.CleansingJob{
		ID:                  uuid.NewString(),
		UserID:              userID,
		MigrationProjectID:  &project,
		SourceData:          []models.CandidateRecord{{"id": "s-1", "email": "a@example.com"}},
		TargetData:          []models.CandidateRecord{{"id": "t-1", "email": "A@example.com"}},
		UserRules:           []byte(`{"ignore":["notes"]}`),
		ConfidenceThreshold: 0.8,
		TotalRecords:        1,
		Status:              models.JobStatusProcessing,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func newMatch(jobID string, sequence int) *models.MatchResult {
	target := "t-1"
	score := 1.0
	return &models.MatchResult{
		ID:              uuid.NewString(),
		JobID:           jobID,
		Sequence:        sequence,
		SourceRecordID:  "s-1",
		TargetRecordID:  &target,
		SourceData:      models.CandidateRecord{"id": "s-1", "email": "a@example.com"},
		TargetData:      models.CandidateRecord{"id": "t-1", "email": "A@example.com"},
		ConfidenceScore: 1.0,
		MatchType:       models.MatchTypeExact,
		ConflictFields:  []string{},
		SuggestedAction: models.ActionSkip,
		ReconciliationStrategy: models.ReconciliationStrategy{
			MatchType:       models.MatchTypeExact,
			MatchedFields:   []string{"email"},
			SimilarityScore: &score,
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestCleansingStore_JobLifecycle(t *testing.T) {
	store := getTestStore(t)
	ctx := context.Background()
	job := newJob("user-1")

	require.NoError(t, store.CreateJob(ctx, job))
	require.NoError(t, store.UpdateProgress(ctx, job.ID, 1))
	require.NoError(t, store.InsertMatch(ctx, newMatch(job.ID, 1)))

	summary := models.SummaryReport{TotalRecords: 1, DuplicatesFound: 1, HighConfidenceMatches: 1, ExactMatches: 1}
	require.NoError(t, store.CompleteJob(ctx, job.ID, summary))

	found, err := store.Jobs.Get(ctx, "user-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, found.Status)
	assert.Equal(t, 1, found.ProcessedRecords)
	assert.Equal(t, 0.8, found.ConfidenceThreshold)
	assert.Equal(t, "project-7", *found.MigrationProjectID)
	assert.JSONEq(t, `{"ignore":["notes"]}`, string(found.UserRules))
	assert.Equal(t, "a@example.com", found.SourceData[0]["email"])
	require.NotNil(t, found.CompletedAt)
	assert.Nil(t, found.Error)

	stored, err := store.Summaries.GetByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, summary, *stored)

	t.Run("completed jobs are terminal", func(t *testing.T) {
		assertStatus(t, store.FailJob(ctx, job.ID, "late"), http.StatusNotFound)
		assertStatus(t, store.UpdateProgress(ctx, job.ID, 1), http.StatusNotFound)
	})

	t.Run("jobs are scoped to their owner", func(t *testing.T) {
		_, err := store.Jobs.Get(ctx, "user-2", job.ID)
		assertStatus(t, err, http.StatusNotFound)
	})
}

func TestCleansingStore_FailJob(t *testing.T) {
	store := getTestStore(t)
	ctx := context.Background()
	job := newJob("user-1")
	require.NoError(t, store.CreateJob(ctx, job))

	require.NoError(t, store.FailJob(ctx, job.ID, "database unavailable"))

	found, err := store.Jobs.Get(ctx, "user-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, found.Status)
	require.NotNil(t, found.Error)
	assert.Equal(t, "database unavailable", *found.Error)

	_, err = store.Summaries.GetByJob(ctx, job.ID)
	assertStatus(t, err, http.StatusNotFound)
}

func TestCleansingStore_CompleteJobIsAtomic(t *testing.T) {
	store := getTestStore(t)
	ctx := context.Background()
	job := newJob("user-1")
	require.NoError(t, store.CreateJob(ctx, job))
	require.NoError(t, store.FailJob(ctx, job.ID, "boom"))

	// the job is no longer processing so the status flip fails and the summary rolls back
	err := store.CompleteJob(ctx, job.ID, models.SummaryReport{TotalRecords: 1})
	assertStatus(t, err, http.StatusNotFound)

	_, err = store.Summaries.GetByJob(ctx, job.ID)
	assertStatus(t, err, http.StatusNotFound)
}

func TestMatchRepository_ListByJob(t *testing.T) {
	store := getTestStore(t)
	ctx := context.Background()
	job := newJob("user-1")
	require.NoError(t, store.CreateJob(ctx, job))

	for seq := 1; seq <= 5; seq++ {
		require.NoError(t, store.InsertMatch(ctx, newMatch(job.ID, seq)))
	}

	page, err := store.Matches.ListByJob(ctx, job.ID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 2, page[0].Sequence)
	assert.Equal(t, 3, page[1].Sequence)
	assert.Equal(t, "t-1", *page[0].TargetRecordID)
	assert.Equal(t, []string{"email"}, page[0].ReconciliationStrategy.MatchedFields)
	assert.Equal(t, []string{}, page[0].ConflictFields)

	count, err := store.Matches.CountByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	t.Run("sequence is unique per job", func(t *testing.T) {
		assertStatus(t, store.InsertMatch(ctx, newMatch(job.ID, 1)), http.StatusInternalServerError)
	})

	t.Run("matches need an existing job", func(t *testing.T) {
		assertStatus(t, store.InsertMatch(ctx, newMatch(uuid.NewString(), 1)), http.StatusInternalServerError)
	})
}

func TestJobRepository_List(t *testing.T) {
	store := getTestStore(t)
	ctx := context.Background()

	first := newJob("user-1")
	second := newJob("user-1")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	other := newJob("user-2")
	for _, job := range []*models.CleansingJob{first, second, other} {
		require.NoError(t, store.CreateJob(ctx, job))
	}

	jobs, err := store.Jobs.List(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
	assert.Nil(t, jobs[0].SourceData)
}

func TestCleansingStore_WithService(t *testing.T) {
	store := getTestStore(t)
	ctx := context.Background()
	svc := cleansing.NewService(getTestLogger(), store, matching.DefaultCascade(nil, getTestLogger(), matching.DefaultConfig()))

	resp, err := svc.Run(ctx, "user-1", models.CleansingRequest{
		SourceData: []models.CandidateRecord{
			{"id": "s-1", "email": "john@example.com", "name": "John Smith"},
			{"id": "s-2", "name": "Robert Jones"},
		},
		TargetData: []models.CandidateRecord{
			{"id": "t-1", "email": "JOHN@example.com"},
			{"id": "t-2", "name": "Rupert Jones"},
		},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	job, err := store.Jobs.Get(ctx, "user-1", resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.ProcessedRecords)

	matches, err := store.Matches.ListByJob(ctx, resp.JobID, 100, 0)
	require.NoError(t, err)
	assert.Len(t, matches, resp.Summary.DuplicatesFound)
	assert.Equal(t, models.MatchTypeExact, matches[0].MatchType)

	summary, err := store.Summaries.GetByJob(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, resp.Summary, *summary)
}
