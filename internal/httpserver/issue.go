package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/issue_logger/internal/service"
	"github.com/Skotchmaster/issue_logger/internal/transport"
	"github.com/Skotchmaster/issue_logger/internal/util"
	"github.com/Skotchmaster/issue_logger/pkg/logging"
	authmw "github.com/Skotchmaster/issue_logger/pkg/middleware/auth"
)

const issueNotFound = "Issue not found"

type IssueHTTP struct {
	Svc *service.IssueService
}

func issueID(c echo.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *IssueHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "issues.list")

	issues, err := h.Svc.List(ctx)
	if err != nil {
		return serviceError(l, "list_issues_failed", err, issueNotFound)
	}
	return c.JSON(http.StatusOK, transport.NewIssueList(issues))
}

func (h *IssueHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "issues.create")

	var req transport.IssueRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_issue_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	issue, err := h.Svc.Create(ctx, authmw.ClaimsFrom(c), req.IssueText)
	if err != nil {
		return serviceError(l, "create_issue_failed", err, issueNotFound)
	}

	l.Info("issue_created", "issue_id", issue.ID)
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Issue created successfully",
		"issue":   transport.NewIssueResponse(issue),
	})
}

func (h *IssueHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "issues.update")

	id, ok := issueID(c)
	if !ok {
		l.Warn("update_issue_failed", "status", 400, "reason", "bad id", "id", c.Param("id"))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid issue id")
	}

	var req transport.IssueRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_issue_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	issue, err := h.Svc.Update(ctx, authmw.ClaimsFrom(c), id, req.IssueText)
	if err != nil {
		return serviceError(l, "update_issue_failed", err, issueNotFound)
	}

	l.Info("issue_updated", "issue_id", id)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Issue updated successfully",
		"issue":   transport.NewIssueResponse(issue),
	})
}

func (h *IssueHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "issues.delete")

	id, ok := issueID(c)
	if !ok {
		l.Warn("delete_issue_failed", "status", 400, "reason", "bad id", "id", c.Param("id"))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid issue id")
	}

	if err := h.Svc.Delete(ctx, authmw.ClaimsFrom(c), id); err != nil {
		return serviceError(l, "delete_issue_failed", err, issueNotFound)
	}

	l.Info("issue_deleted", "issue_id", id)
	return c.JSON(http.StatusOK, echo.Map{"message": "Issue deleted successfully"})
}

func (h *IssueHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "issues.search")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, issues, err := h.Svc.Search(ctx, c.QueryParam("q"), offset, limit)
	if err != nil {
		return serviceError(l, "search_issues_failed", err, issueNotFound)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"total":  total,
		"page":   page,
		"size":   limit,
		"issues": transport.NewIssueList(issues),
	})
}
