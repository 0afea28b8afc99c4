package cleansing_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/db"
	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/cleansing"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	routes "github.com/Ramsey-B/fern/pkg/routes/cleansing"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type failingRunner struct {
	err error
}

func (f failingRunner) Run(context.Context, string, models.CleansingRequest) (*models.CleansingResponse, error) {
	return nil, f.err
}

func newStore(t *testing.T) *repositories.CleansingStore {
	t.Helper()
	logger := testLogger()

	conn, err := database.Connect(context.Background(), database.Config{Driver: "sqlite"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ms := database.NewMigrationService(logger, db.Migrations, &database.MigrationConfig{Dir: db.Dir(conn.DriverName())})
	require.NoError(t, ms.Migrate(conn))

	return repositories.NewCleansingStore(conn, logger)
}

func newContainer(t *testing.T) ectocontainer.DIContainer {
	t.Helper()
	cfg := ectoinject.DefaultContainerConfig
	cfg.ID = uuid.NewString()
	cfg.LoggerConfig = &ectocontainer.DIContainerLoggerConfig{Enabled: false}

	container, err := ectoinject.NewDIContainer(cfg)
	require.NoError(t, err)
	return container
}

func newServerWithContainer(container ectocontainer.DIContainer) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(testLogger())
	e.Use(middleware.Context())

	g := e.Group("/api/v1/cleansing/jobs",
		middleware.Failure(testLogger()),
		middleware.Authentication(testLogger(), nil),
		middleware.Container(container.GetContainerID()),
	)
	routes.Register(g)
	return e
}

func newServer(t *testing.T, runner routes.Runner, reader routes.Reader) *echo.Echo {
	t.Helper()
	container := newContainer(t)
	require.NoError(t, routes.RegisterDependencies(container, runner, reader, testLogger()))
	return newServerWithContainer(container)
}

func newRealServer(t *testing.T) *echo.Echo {
	t.Helper()
	store := newStore(t)
	svc := cleansing.NewService(testLogger(), store, matching.DefaultCascade(nil, testLogger(), matching.DefaultConfig()))
	return newServer(t, svc, store)
}

func request(e *echo.Echo, method, path, userID, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req.Header.Set(middleware.HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const emailPair = `{
	"sourceData": [{"id": "c-1", "email": "john@example.com", "name": "John Smith"}],
	"targetData": [{"id": "c-9", "email": "JOHN@example.com", "name": "John Smith"}]
}`

func TestCreate(t *testing.T) {
	e := newRealServer(t)

	rec := request(e, http.MethodPost, "/api/v1/cleansing/jobs", "user-1", emailPair)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.CleansingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, 1, resp.Summary.TotalRecords)
	assert.Equal(t, 1, resp.Summary.ExactMatches)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, models.ActionSkip, resp.Matches[0].SuggestedAction)
	assert.Equal(t, 1.0, resp.Matches[0].ConfidenceScore)
}

func TestCreate_EmptyInputs(t *testing.T) {
	e := newRealServer(t)

	rec := request(e, http.MethodPost, "/api/v1/cleansing/jobs", "user-1", `{"sourceData": []}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.CleansingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.SummaryReport{}, resp.Summary)
	assert.Empty(t, resp.Matches)
	assert.Contains(t, rec.Body.String(), `"matches":[]`)
}

func TestCreate_Rejections(t *testing.T) {
	e := newRealServer(t)

	tests := []struct {
		name   string
		userID string
		body   string
		status int
		error  string
	}{
		{name: "unauthenticated", body: emailPair, status: http.StatusUnauthorized, error: "authentication required"},
		{name: "missing source data", userID: "user-1", body: `{"targetData": []}`, status: http.StatusBadRequest, error: "sourceData is required"},
		{name: "threshold out of range", userID: "user-1", body: `{"sourceData": [], "confidenceThreshold": 1.5}`, status: http.StatusBadRequest, error: "confidenceThreshold must be between 0 and 1"},
		{name: "malformed body", userID: "user-1", body: `{"sourceData": `, status: http.StatusBadRequest, error: "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(e, http.MethodPost, "/api/v1/cleansing/jobs", tt.userID, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			if tt.error != "" {
				var resp models.FailureResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.False(t, resp.Success)
				assert.Equal(t, tt.error, resp.Error)
			}
		})
	}
}

func TestCreate_Failures(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		error string
	}{
		{name: "job creation", err: fmt.Errorf("%w: insert failed", cleansing.ErrJobCreation), error: "failed to create cleansing job"},
		{name: "aborted run", err: fmt.Errorf("%w: disk full", cleansing.ErrJobAborted), error: "cleansing job failed"},
		{name: "unexpected", err: errors.New("boom"), error: "cleansing job failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newServer(t, failingRunner{err: tt.err}, newStore(t))

			rec := request(e, http.MethodPost, "/api/v1/cleansing/jobs", "user-1", emailPair)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)

			var resp models.FailureResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.error, resp.Error)
		})
	}
}

func TestReadRoutes(t *testing.T) {
	e := newRealServer(t)

	body := `{
		"sourceData": [
			{"id": "s-1", "email": "a@example.com"},
			{"id": "s-2", "email": "b@example.com"},
			{"id": "s-3", "email": "c@example.com"}
		],
		"targetData": [
			{"id": "t-1", "email": "A@example.com"},
			{"id": "t-2", "email": "B@example.com"},
			{"id": "t-3", "email": "C@example.com"}
		]
	}`
	rec := request(e, http.MethodPost, "/api/v1/cleansing/jobs", "user-1", body)
	require.Equal(t, http.StatusOK, rec.Code)
	var created models.CleansingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	jobPath := "/api/v1/cleansing/jobs/" + created.JobID

	t.Run("get job", func(t *testing.T) {
		rec := request(e, http.MethodGet, jobPath, "user-1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var job models.CleansingJob
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		assert.Equal(t, models.JobStatusCompleted, job.Status)
		assert.Equal(t, 3, job.ProcessedRecords)
		assert.NotNil(t, job.CompletedAt)
	})

	t.Run("other users cannot see the job", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, request(e, http.MethodGet, jobPath, "user-2", "").Code)
		assert.Equal(t, http.StatusNotFound, request(e, http.MethodGet, jobPath+"/matches", "user-2", "").Code)
		assert.Equal(t, http.StatusNotFound, request(e, http.MethodGet, jobPath+"/summary", "user-2", "").Code)
	})

	t.Run("list jobs", func(t *testing.T) {
		rec := request(e, http.MethodGet, "/api/v1/cleansing/jobs", "user-1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var jobs []models.CleansingJob
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
		require.Len(t, jobs, 1)
		assert.Equal(t, created.JobID, jobs[0].ID)
	})

	t.Run("paged matches", func(t *testing.T) {
		rec := request(e, http.MethodGet, jobPath+"/matches?limit=2&offset=1", "user-1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var matches []models.MatchResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matches))
		require.Len(t, matches, 2)
		assert.Equal(t, "s-2", matches[0].SourceRecordID)
		assert.Equal(t, "s-3", matches[1].SourceRecordID)
	})

	t.Run("bad paging", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, request(e, http.MethodGet, jobPath+"/matches?limit=zero", "user-1", "").Code)
		assert.Equal(t, http.StatusBadRequest, request(e, http.MethodGet, jobPath+"/matches?offset=-1", "user-1", "").Code)
	})

	t.Run("summary", func(t *testing.T) {
		rec := request(e, http.MethodGet, jobPath+"/summary", "user-1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var summary models.SummaryReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
		assert.Equal(t, created.Summary, summary)
		assert.Equal(t, 3, summary.ExactMatches)
	})

	t.Run("unknown job", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, request(e, http.MethodGet, "/api/v1/cleansing/jobs/missing", "user-1", "").Code)
	})
}

func TestFailureShape(t *testing.T) {
	e := newRealServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		userID string
		status int
		error  string
	}{
		{name: "list without user", method: http.MethodGet, path: "/api/v1/cleansing/jobs", status: http.StatusUnauthorized, error: "authentication required"},
		{name: "get without user", method: http.MethodGet, path: "/api/v1/cleansing/jobs/j-1", status: http.StatusUnauthorized, error: "authentication required"},
		{name: "bad paging", method: http.MethodGet, path: "/api/v1/cleansing/jobs?limit=0", userID: "user-1", status: http.StatusBadRequest, error: "limit must be a positive integer"},
		{name: "unknown job", method: http.MethodGet, path: "/api/v1/cleansing/jobs/missing/summary", userID: "user-1", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(e, tt.method, tt.path, tt.userID, "")
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Len(t, body, 2, rec.Body.String())
			assert.Equal(t, false, body["success"])
			if tt.error != "" {
				assert.Equal(t, tt.error, body["error"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestUnresolvedDependencies(t *testing.T) {
	e := newServerWithContainer(newContainer(t))

	t.Run("create", func(t *testing.T) {
		rec := request(e, http.MethodPost, "/api/v1/cleansing/jobs", "user-1", emailPair)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var resp models.FailureResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, "service unavailable", resp.Error)
	})

	t.Run("read", func(t *testing.T) {
		for _, path := range []string{"/api/v1/cleansing/jobs", "/api/v1/cleansing/jobs/j-1", "/api/v1/cleansing/jobs/j-1/matches"} {
			rec := request(e, http.MethodGet, path, "user-1", "")
			assert.Equal(t, http.StatusInternalServerError, rec.Code, path)

			var resp models.FailureResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "service unavailable", resp.Error)
		}
	})

	t.Run("unknown container", func(t *testing.T) {
		e := echo.New()
		g := e.Group("/api/v1/cleansing/jobs",
			middleware.Failure(testLogger()),
			middleware.Authentication(testLogger(), nil),
			middleware.Container(uuid.NewString()),
		)
		routes.Register(g)

		rec := request(e, http.MethodGet, "/api/v1/cleansing/jobs", "user-1", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"service unavailable"}`, rec.Body.String())
	})
}
