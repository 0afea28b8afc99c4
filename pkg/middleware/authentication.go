package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type UserClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// Verifier turns a bearer token into the caller's subject
type Verifier interface {
	Subject(ctx context.Context, rawToken string) (string, error)
}

type oidcVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and verifies tokens issued for clientID
func NewOIDCVerifier(ctx context.Context, issuer string, clientID string) (Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	return &oidcVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (v *oidcVerifier) Subject(ctx context.Context, rawToken string) (string, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", err
	}

	var claims UserClaims
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("cannot parse claims: %w", err)
	}
	return claims.Sub, nil
}

// Authentication resolves the caller identity. With a verifier the caller must
// present a valid bearer token, otherwise the X-User-ID header is trusted.
func Authentication(logger ectologger.Logger, verifier Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracing.StartSpan(c.Request().Context(), "middleware.Authentication")
			defer span.End()

			var userID string
			if verifier == nil {
				userID = strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
				if userID == "" {
					logger.WithContext(ctx).Warn("request is missing user id")
					return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
				}
			} else {
				auth := c.Request().Header.Get(echo.HeaderAuthorization)
				if !strings.HasPrefix(auth, "Bearer ") {
					logger.WithContext(ctx).Warn("request is missing bearer token")
					return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer")
				}

				verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				subject, err := verifier.Subject(verifyCtx, strings.TrimPrefix(auth, "Bearer "))
				cancel()
				if err != nil {
					logger.WithContext(ctx).WithError(err).Warn("token is invalid")
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
				}
				if subject == "" {
					return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
				}
				userID = subject
			}

			ctx = appctx.SetUserID(ctx, userID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
