package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/issue_logger/internal/db"
	authmw "github.com/Skotchmaster/issue_logger/pkg/middleware/auth"
)

type Deps struct {
	DB           *gorm.DB
	AuthHandler  *AuthHTTP
	IssueHandler *IssueHTTP
	Guard        *authmw.Guard
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.ready)

	auth := e.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout, d.Guard.RequireAuth)
	auth.GET("/profile", d.AuthHandler.Profile, d.Guard.RequireAuth)

	issues := e.Group("/issues")
	issues.GET("", d.IssueHandler.List)
	issues.GET("/search", d.IssueHandler.Search)

	private := issues.Group("", d.Guard.RequireAuth)
	private.POST("", d.IssueHandler.Create)
	private.PUT("/:id", d.IssueHandler.Update)
	private.DELETE("/:id", d.IssueHandler.Delete)

	admin := e.Group("/admin", d.Guard.RequireAdmin)
	admin.GET("/users", d.AuthHandler.ListUsers)
}

func (d *Deps) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := db.Ping(ctx, d.DB); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
