package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/issue_logger/internal/service"
)

// serviceError maps a service error onto an HTTP error and logs it under
// event. notFound is the message used for ErrNotFound.
func serviceError(l *slog.Logger, event string, err error, notFound string) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		l.Warn(event, "status", 400, "reason", ve.Msg)
		return echo.NewHTTPError(http.StatusBadRequest, ve.Msg)
	case errors.Is(err, service.ErrConflict):
		l.Warn(event, "status", 409, "reason", "email taken")
		return echo.NewHTTPError(http.StatusConflict, "User with this email already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		l.Warn(event, "status", 401, "reason", "invalid credentials")
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrUnauthenticated):
		l.Warn(event, "status", 401, "reason", "unauthenticated", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired refresh token")
	case errors.Is(err, service.ErrForbidden):
		l.Warn(event, "status", 403, "reason", "not owner")
		return echo.NewHTTPError(http.StatusForbidden, "You can only modify your own issues")
	case errors.Is(err, service.ErrNotFound):
		l.Warn(event, "status", 404, "reason", notFound)
		return echo.NewHTTPError(http.StatusNotFound, notFound)
	default:
		l.Error(event, "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
}
