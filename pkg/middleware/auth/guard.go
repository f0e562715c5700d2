package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/issue_logger/pkg/logging"
	"github.com/Skotchmaster/issue_logger/pkg/tokens"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"

	CodeTokenExpired = "token_expired"
	CodeTokenInvalid = "token_invalid"

	claimsKey = "claims"
)

// Guard authenticates requests with a verified access token. Identity comes
// only from the verified claims, never from the request body.
type Guard struct {
	Verifier tokens.AccessVerifier
}

func NewGuard(v tokens.AccessVerifier) *Guard {
	return &Guard{Verifier: v}
}

type ValidatorFunc func(claims *tokens.Claims) error

func (g *Guard) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return g.requireAuthWithValidator(next, nil)
}

// RequireAdmin authenticates like RequireAuth and then demands the admin role.
func (g *Guard) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return g.requireAuthWithValidator(next, func(claims *tokens.Claims) error {
		if claims.Role != "admin" {
			return echo.NewHTTPError(http.StatusForbidden, "Admin access required")
		}
		return nil
	})
}

func (g *Guard) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := logging.FromContext(c.Request().Context()).With("handler", "auth.guard")

		raw := BearerOrCookie(c)
		if raw == "" {
			l.Warn("auth_failed", "status", 401, "reason", "missing access token")
			return echo.NewHTTPError(http.StatusUnauthorized, "Access token required")
		}

		claims, err := g.Verifier.VerifyAccess(raw)
		if err != nil {
			if errors.Is(err, tokens.ErrTokenExpired) {
				l.Info("auth_failed", "status", 401, "reason", "access token expired")
				return TokenError(CodeTokenExpired, "Token expired")
			}
			l.Warn("auth_failed", "status", 401, "reason", "invalid access token", "error", err)
			return TokenError(CodeTokenInvalid, "Invalid token")
		}

		if validator != nil {
			if validationErr := validator(claims); validationErr != nil {
				l.Warn("auth_failed", "status", 403, "reason", "validator rejected", "user_id", claims.UserID)
				return validationErr
			}
		}

		setUserContext(c, claims)
		return next(c)
	}
}

// TokenError is a 401 whose body carries a machine readable code next to the
// message so clients can tell an expired token from a bad one.
func TokenError(code, msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnauthorized, echo.Map{"error": msg, "code": code})
}

// BearerOrCookie returns the access token from the Authorization header, or
// from the access cookie when the header is absent.
func BearerOrCookie(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if ck, err := c.Cookie(AccessCookie); err == nil {
		return ck.Value
	}
	return ""
}

func setUserContext(c echo.Context, claims *tokens.Claims) {
	c.Set(claimsKey, claims)
	c.Set("user_id", claims.UserID)
	c.Set("role", claims.Role)
}

// ClaimsFrom returns the claims stored by the guard, or nil on unguarded routes.
func ClaimsFrom(c echo.Context) *tokens.Claims {
	claims, _ := c.Get(claimsKey).(*tokens.Claims)
	return claims
}
