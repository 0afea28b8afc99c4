package middleware

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		if c.Response().Committed {
			return
		}

		code, message, meta := describe(err)
		logError(logger, c, err, code)

		_ = c.JSON(code, ErrorResponse{
			Message:   message,
			RequestID: context.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      meta,
		})
	}
}

// Failure renders errors from the wrapped handlers, and from any middleware
// registered after it, as models.FailureResponse
func Failure(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil || c.Response().Committed {
				return err
			}

			code, message, _ := describe(err)
			logError(logger, c, err, code)

			return c.JSON(code, models.FailureResponse{Error: message})
		}
	}
}

func describe(err error) (int, string, map[string]any) {
	code := http.StatusInternalServerError
	message := "Internal Server Error"
	meta := map[string]any{}

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		}
	}

	if httperror.IsHTTPError(err) {
		httperr := httperror.ToHTTPError(err)
		code = httperror.GetStatusCode(err)
		message = httperr.Error()
		if httperr.Meta != nil {
			meta = httperr.Meta
		}
	}

	return code, message, meta
}

func logError(logger ectologger.Logger, c echo.Context, err error, code int) {
	log := logger.WithContext(c.Request().Context()).WithError(err).WithField("status", code)
	if code >= http.StatusInternalServerError {
		log.Error("api is returning an error")
	} else {
		log.Warn("api is returning an error")
	}
}
