package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/issue_logger/internal/models"
	"github.com/Skotchmaster/issue_logger/internal/search"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id uint) (*models.User, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// RefreshStore is the store-backed half of refresh token checking: a token
// that verifies cryptographically is only usable while its row exists.
type RefreshStore interface {
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	RefreshTokenValid(ctx context.Context, token string, userID uint, now time.Time) (bool, error)
	DeleteRefreshToken(ctx context.Context, token string) (int64, error)
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type ProfileStore interface {
	CreateProfile(ctx context.Context, profile *models.UserProfile) error
	CreatePreference(ctx context.Context, pref *models.UserPreference) error
	ProfileByUserID(ctx context.Context, userID uint) (*models.UserProfile, error)
	PreferenceByUserID(ctx context.Context, userID uint) (*models.UserPreference, error)
	AddressesByUserID(ctx context.Context, userID uint) ([]models.UserAddress, error)
}

type AuthStore interface {
	UserStore
	RefreshStore
	ProfileStore
}

type IssueStore interface {
	ListIssues(ctx context.Context) ([]models.Issue, error)
	IssueByID(ctx context.Context, id uint) (*models.Issue, error)
	CreateIssue(ctx context.Context, issue *models.Issue) error
	UpdateIssueText(ctx context.Context, id uint, text string) (*models.Issue, error)
	DeleteIssue(ctx context.Context, id uint) error
	SearchIssues(ctx context.Context, query string, offset, limit int) (int64, []models.Issue, error)
}

type IssueIndex interface {
	IndexIssue(ctx context.Context, doc search.IssueDoc) error
	DeleteIssue(ctx context.Context, id uint) error
	Search(ctx context.Context, query string, from, size int) (int64, []search.IssueDoc, error)
}

type FeedCache interface {
	Get(ctx context.Context) ([]models.Issue, bool, error)
	Version(ctx context.Context) (int64, error)
	Set(ctx context.Context, issues []models.Issue, version int64) error
	Invalidate(ctx context.Context) error
}
