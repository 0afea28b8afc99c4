package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(e *echo.Echo, path string) (int, Response) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body Response
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec.Code, body
}

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestChecker(t *testing.T) {
	t.Run("liveness ignores dependencies", func(t *testing.T) {
		e := echo.New()
		c := NewChecker("test")
		c.Register("database", PingFunc(down), true)
		c.RegisterRoutes(e)

		code, body := get(e, "/api/v1/health/live")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, StatusHealthy, body.Status)
	})

	t.Run("not ready until marked", func(t *testing.T) {
		e := echo.New()
		c := NewChecker("test")
		c.Register("database", PingFunc(ok), true)
		c.RegisterRoutes(e)

		code, _ := get(e, "/api/v1/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, code)

		c.SetReady(true)
		code, body := get(e, "/api/v1/health/ready")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, StatusHealthy, body.Checks["database"].Status)
	})

	t.Run("optional dependency degrades", func(t *testing.T) {
		e := echo.New()
		c := NewChecker("test")
		c.Register("database", PingFunc(ok), true)
		c.Register("redis", PingFunc(down), false)
		c.RegisterRoutes(e)

		code, body := get(e, "/api/v1/health")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, StatusDegraded, body.Status)
		require.Contains(t, body.Checks, "redis")
		assert.Equal(t, "connection refused", body.Checks["redis"].Message)
	})

	t.Run("critical dependency fails", func(t *testing.T) {
		e := echo.New()
		c := NewChecker("test")
		c.Register("database", PingFunc(down), true)
		c.RegisterRoutes(e)

		code, body := get(e, "/api/v1/health")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, StatusUnhealthy, body.Status)
	})
}
