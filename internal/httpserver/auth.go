package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/issue_logger/internal/service"
	"github.com/Skotchmaster/issue_logger/internal/transport"
	"github.com/Skotchmaster/issue_logger/pkg/logging"
	authmw "github.com/Skotchmaster/issue_logger/pkg/middleware/auth"
)

type AuthHTTP struct {
	Svc     *service.AuthService
	Cookies Cookies
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	user, err := h.Svc.Register(ctx, service.RegisterInput{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
	})
	if err != nil {
		return serviceError(l, "register_failed", err, "User not found")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"user":    transport.NewUserResponse(user),
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	res, err := h.Svc.Login(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return serviceError(l, "login_failed", err, "User not found")
	}

	c.SetCookie(h.Cookies.Access(res.AccessToken))
	c.SetCookie(h.Cookies.Refresh(res.RefreshToken))

	return c.JSON(http.StatusOK, echo.Map{
		"message":      "Login successful",
		"accessToken":  res.AccessToken,
		"refreshToken": res.RefreshToken,
		"user":         transport.NewUserResponse(res.User),
	})
}

// refreshTokenFrom reads the refresh token from its cookie, falling back to
// the JSON body.
func refreshTokenFrom(c echo.Context) string {
	if ck, err := c.Cookie(authmw.RefreshCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return ""
	}
	return req.RefreshToken
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	token := refreshTokenFrom(c)
	if token == "" {
		l.Warn("refresh_failed", "status", 401, "reason", "missing refresh token")
		return echo.NewHTTPError(http.StatusUnauthorized, "Refresh token required")
	}

	res, err := h.Svc.Refresh(ctx, token)
	if err != nil {
		return serviceError(l, "refresh_failed", err, "User not found")
	}

	c.SetCookie(h.Cookies.Access(res.AccessToken))
	return c.JSON(http.StatusOK, echo.Map{
		"message":     "Token refreshed",
		"accessToken": res.AccessToken,
	})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	err := h.Svc.Logout(ctx, refreshTokenFrom(c))

	c.SetCookie(h.Cookies.Delete(authmw.AccessCookie))
	c.SetCookie(h.Cookies.Delete(authmw.RefreshCookie))

	if err != nil {
		return serviceError(l, "logout_failed", err, "User not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

func (h *AuthHTTP) Profile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.profile")

	claims := authmw.ClaimsFrom(c)
	profile, err := h.Svc.GetFullProfile(ctx, claims.UserID)
	if err != nil {
		return serviceError(l, "profile_failed", err, "User not found")
	}
	return c.JSON(http.StatusOK, transport.NewProfileResponse(profile))
}

func (h *AuthHTTP) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_users")

	users, err := h.Svc.ListUsers(ctx)
	if err != nil {
		return serviceError(l, "list_users_failed", err, "User not found")
	}
	return c.JSON(http.StatusOK, transport.NewUserList(users))
}
