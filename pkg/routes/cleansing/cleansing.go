package cleansing

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/cleansing"
	ctxmiddleware "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Runner executes a cleansing job for a caller
type Runner interface {
	Run(ctx context.Context, userID string, req models.CleansingRequest) (*models.CleansingResponse, error)
}

// Reader exposes persisted jobs to their owners
type Reader interface {
	GetJob(ctx context.Context, userID string, jobID string) (*models.CleansingJob, error)
	ListJobs(ctx context.Context, userID string, limit, offset int) ([]models.CleansingJob, error)
	ListMatches(ctx context.Context, jobID string, limit, offset int) ([]models.MatchResult, error)
	GetSummary(ctx context.Context, jobID string) (*models.SummaryReport, error)
}

// RegisterDependencies registers the collaborators the handlers resolve per request
func RegisterDependencies(container ectocontainer.DIContainer, runner Runner, reader Reader, logger ectologger.Logger) error {
	if err := ectoinject.RegisterInstance[Runner](container, runner); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[Reader](container, reader); err != nil {
		return err
	}
	return ectoinject.RegisterInstance[ectologger.Logger](container, logger)
}

// Register registers cleansing job routes
func Register(g *echo.Group) {
	g.POST("", Create)
	g.GET("", List)
	g.GET("/:id", Get)
	g.GET("/:id/matches", ListMatches)
	g.GET("/:id/summary", GetSummary)
}

// Create runs a cleansing job synchronously and returns its summary and sample matches
func Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "cleansing_handler.Create")
	defer span.End()

	userID := ctxmiddleware.GetUserID(ctx)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, models.FailureResponse{Error: "authentication required"})
	}

	var req models.CleansingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.FailureResponse{Error: "invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.FailureResponse{Error: validationMessage(err)})
	}

	ctx, runner, err := ectoinject.GetContext[Runner](ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.FailureResponse{Error: "service unavailable"})
	}

	resp, err := runner.Run(ctx, userID, req)
	if err != nil {
		message := cleansing.ErrJobAborted.Error()
		switch {
		case errors.Is(err, cleansing.ErrUnauthenticated):
			return c.JSON(http.StatusUnauthorized, models.FailureResponse{Error: "authentication required"})
		case errors.Is(err, cleansing.ErrJobCreation):
			message = cleansing.ErrJobCreation.Error()
		}

		ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
		if logger != nil {
			logger.WithContext(ctx).WithError(err).Error("Cleansing request failed")
		}
		return c.JSON(http.StatusInternalServerError, models.FailureResponse{Error: message})
	}

	return c.JSON(http.StatusOK, resp)
}

// List returns the caller's jobs, newest first
func List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "cleansing_handler.List")
	defer span.End()

	userID := ctxmiddleware.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	limit, offset, err := pagination(c, 50)
	if err != nil {
		return err
	}

	ctx, reader, err := ectoinject.GetContext[Reader](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	jobs, err := reader.ListJobs(ctx, userID, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jobs)
}

// Get returns one of the caller's jobs
func Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "cleansing_handler.Get")
	defer span.End()

	_, _, job, err := ownedJob(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, job)
}

// ListMatches returns a page of a job's persisted matches
func ListMatches(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "cleansing_handler.ListMatches")
	defer span.End()

	ctx, reader, job, err := ownedJob(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	limit, offset, err := pagination(c, 100)
	if err != nil {
		return err
	}

	matches, err := reader.ListMatches(ctx, job.ID, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, matches)
}

// GetSummary returns the summary of a completed job
func GetSummary(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "cleansing_handler.GetSummary")
	defer span.End()

	ctx, reader, job, err := ownedJob(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	summary, err := reader.GetSummary(ctx, job.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, summary)
}

// ownedJob resolves the Reader and loads jobID when the caller owns it
func ownedJob(ctx context.Context, jobID string) (context.Context, Reader, *models.CleansingJob, error) {
	userID := ctxmiddleware.GetUserID(ctx)
	if userID == "" {
		return ctx, nil, nil, httperror.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if jobID == "" {
		return ctx, nil, nil, httperror.NewHTTPError(http.StatusBadRequest, "job id is required")
	}

	ctx, reader, err := ectoinject.GetContext[Reader](ctx)
	if err != nil {
		return ctx, nil, nil, httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	job, err := reader.GetJob(ctx, userID, jobID)
	return ctx, reader, job, err
}

func pagination(c echo.Context, defaultLimit int) (int, int, error) {
	limit, offset := defaultLimit, 0

	if raw := c.QueryParam("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			return 0, 0, httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = value
	}
	if raw := c.QueryParam("offset"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return 0, 0, httperror.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
		offset = value
	}

	return limit, offset, nil
}

func validationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return "invalid request"
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fe.Field()+" is required")
		case "gte", "lte":
			messages = append(messages, fe.Field()+" must be between 0 and 1")
		default:
			messages = append(messages, fe.Field()+" is invalid")
		}
	}
	return strings.Join(messages, "; ")
}
