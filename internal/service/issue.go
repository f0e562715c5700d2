package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/issue_logger/internal/events"
	"github.com/Skotchmaster/issue_logger/internal/models"
	"github.com/Skotchmaster/issue_logger/internal/search"
	"github.com/Skotchmaster/issue_logger/pkg/logging"
	"github.com/Skotchmaster/issue_logger/pkg/tokens"
)

// CanModify is the ownership rule for issues: the submitter or any admin.
// An issue whose submitter was deleted can only be changed by an admin.
func CanModify(claims *tokens.Claims, issue *models.Issue) bool {
	if claims == nil || issue == nil {
		return false
	}
	if claims.Role == models.RoleAdmin {
		return true
	}
	return issue.UserID != nil && *issue.UserID == claims.UserID
}

type IssueService struct {
	Store  IssueStore
	Events events.Publisher
	Index  IssueIndex
	Cache  FeedCache

	now func() time.Time
}

func NewIssueService(store IssueStore, pub events.Publisher, index IssueIndex, cache FeedCache) *IssueService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &IssueService{
		Store:  store,
		Events: pub,
		Index:  index,
		Cache:  cache,
		now:    time.Now,
	}
}

func normalizeText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", invalid("Issue text is required")
	}
	return text, nil
}

// List returns the feed newest first, from the cache when it holds a copy.
func (s *IssueService) List(ctx context.Context) ([]models.Issue, error) {
	l := logging.FromContext(ctx).With("svc", "issues.list")

	var version int64
	cacheable := false
	if s.Cache != nil {
		cached, ok, err := s.Cache.Get(ctx)
		if err != nil {
			l.Warn("feed_cache_get_failed", "error", err)
		}
		if ok {
			return cached, nil
		}
		// read before the query so a write racing it makes Set a no-op
		if version, err = s.Cache.Version(ctx); err != nil {
			l.Warn("feed_cache_version_failed", "error", err)
		} else {
			cacheable = true
		}
	}

	issues, err := s.Store.ListIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	if cacheable {
		if err := s.Cache.Set(ctx, issues, version); err != nil {
			l.Warn("feed_cache_set_failed", "error", err)
		}
	}
	return issues, nil
}

func (s *IssueService) Create(ctx context.Context, claims *tokens.Claims, text string) (*models.Issue, error) {
	if claims == nil {
		return nil, ErrUnauthenticated
	}
	text, err := normalizeText(text)
	if err != nil {
		return nil, err
	}

	userID := claims.UserID
	issue := &models.Issue{IssueText: text, UserID: &userID}
	if err := s.Store.CreateIssue(ctx, issue); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	created, err := s.Store.IssueByID(ctx, issue.ID)
	if err != nil {
		return nil, fmt.Errorf("reload issue: %w", err)
	}

	s.afterWrite(ctx, events.TypeIssueCreated, created, claims)
	return created, nil
}

// Update validates the text, then existence, then ownership.
func (s *IssueService) Update(ctx context.Context, claims *tokens.Claims, id uint, text string) (*models.Issue, error) {
	if claims == nil {
		return nil, ErrUnauthenticated
	}
	text, err := normalizeText(text)
	if err != nil {
		return nil, err
	}

	if _, err := s.authorize(ctx, claims, id); err != nil {
		return nil, err
	}

	updated, err := s.Store.UpdateIssueText(ctx, id, text)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update issue: %w", err)
	}

	s.afterWrite(ctx, events.TypeIssueUpdated, updated, claims)
	return updated, nil
}

func (s *IssueService) Delete(ctx context.Context, claims *tokens.Claims, id uint) error {
	if claims == nil {
		return ErrUnauthenticated
	}

	issue, err := s.authorize(ctx, claims, id)
	if err != nil {
		return err
	}

	if err := s.Store.DeleteIssue(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete issue: %w", err)
	}

	s.afterWrite(ctx, events.TypeIssueDeleted, issue, claims)
	return nil
}

func (s *IssueService) authorize(ctx context.Context, claims *tokens.Claims, id uint) (*models.Issue, error) {
	issue, err := s.Store.IssueByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find issue: %w", err)
	}
	if !CanModify(claims, issue) {
		return nil, ErrForbidden
	}
	return issue, nil
}

// Search uses the search index when one is configured and falls back to a
// substring match in the database when it is not or when it fails.
func (s *IssueService) Search(ctx context.Context, query string, offset, limit int) (int64, []models.Issue, error) {
	l := logging.FromContext(ctx).With("svc", "issues.search")

	query = strings.TrimSpace(query)
	if query == "" {
		return 0, nil, invalid("Search query is required")
	}

	if s.Index != nil {
		total, docs, err := s.Index.Search(ctx, query, offset, limit)
		if err == nil {
			issues := make([]models.Issue, len(docs))
			for i, d := range docs {
				issues[i] = d.Issue()
			}
			return total, issues, nil
		}
		l.Warn("search_index_failed", "error", err)
	}

	total, issues, err := s.Store.SearchIssues(ctx, query, offset, limit)
	if err != nil {
		return 0, nil, fmt.Errorf("search issues: %w", err)
	}
	return total, issues, nil
}

func (s *IssueService) afterWrite(ctx context.Context, eventType string, issue *models.Issue, claims *tokens.Claims) {
	l := logging.FromContext(ctx).With("svc", "issues", "issue_id", issue.ID)

	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx); err != nil {
			l.Warn("feed_cache_invalidate_failed", "error", err)
		}
	}

	if s.Index != nil {
		var err error
		if eventType == events.TypeIssueDeleted {
			err = s.Index.DeleteIssue(ctx, issue.ID)
		} else {
			err = s.Index.IndexIssue(ctx, search.DocFromIssue(issue))
		}
		if err != nil {
			l.Warn("search_index_sync_failed", "type", eventType, "error", err)
		}
	}

	ev := events.Event{
		Type:    eventType,
		IssueID: issue.ID,
		UserID:  claims.UserID,
		Role:    claims.Role,
		At:      s.now().UTC(),
	}
	if err := s.Events.PublishEvent(ctx, events.TopicIssues, strconv.FormatUint(uint64(issue.ID), 10), ev); err != nil {
		l.Warn("event_publish_failed", "type", eventType, "error", err)
	}
}
