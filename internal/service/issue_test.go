package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/issue_logger/internal/db/dbtest"
	"github.com/Skotchmaster/issue_logger/internal/events"
	"github.com/Skotchmaster/issue_logger/internal/models"
	"github.com/Skotchmaster/issue_logger/internal/repo"
	"github.com/Skotchmaster/issue_logger/internal/search"
	"github.com/Skotchmaster/issue_logger/pkg/tokens"
)

type memoryCache struct {
	mu          sync.Mutex
	issues      []models.Issue
	ok          bool
	sets        int
	invalidated int
}

func (c *memoryCache) Get(context.Context) ([]models.Issue, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.issues, c.ok, nil
}

func (c *memoryCache) Version(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(c.invalidated), nil
}

func (c *memoryCache) Set(_ context.Context, issues []models.Issue, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version != int64(c.invalidated) {
		return nil
	}
	c.issues, c.ok = issues, true
	c.sets++
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issues, c.ok = nil, false
	c.invalidated++
	return nil
}

// interleavedStore runs beforeList inside ListIssues, after the service has
// looked at the cache and before the rows are returned.
type interleavedStore struct {
	IssueStore
	beforeList func()
}

func (s *interleavedStore) ListIssues(ctx context.Context) ([]models.Issue, error) {
	issues, err := s.IssueStore.ListIssues(ctx)
	if s.beforeList != nil {
		s.beforeList()
	}
	return issues, err
}

type fakeIndex struct {
	mu      sync.Mutex
	docs    map[uint]search.IssueDoc
	failing bool
}

func (x *fakeIndex) IndexIssue(_ context.Context, doc search.IssueDoc) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.docs[doc.ID] = doc
	return nil
}

func (x *fakeIndex) DeleteIssue(_ context.Context, id uint) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.docs, id)
	return nil
}

func (x *fakeIndex) Search(context.Context, string, int, int) (int64, []search.IssueDoc, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.failing {
		return 0, nil, errors.New("cluster red")
	}
	out := make([]search.IssueDoc, 0, len(x.docs))
	for _, d := range x.docs {
		out = append(out, d)
	}
	return int64(len(out)), out, nil
}

type issueEnv struct {
	svc   *IssueService
	repo  *repo.GormRepo
	pub   *recordingPublisher
	cache *memoryCache
	index *fakeIndex

	owner *models.User
	other *models.User
	admin *models.User
}

func claimsFor(u *models.User) *tokens.Claims {
	return &tokens.Claims{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func newIssueEnv(t *testing.T) *issueEnv {
	t.Helper()

	r := repo.New(dbtest.Open(t), time.Second)
	env := &issueEnv{
		repo:  r,
		pub:   &recordingPublisher{},
		cache: &memoryCache{},
		index: &fakeIndex{docs: map[uint]search.IssueDoc{}},
	}
	env.svc = NewIssueService(r, env.pub, env.index, env.cache)

	mk := func(email, role string) *models.User {
		u := &models.User{Email: email, PasswordHash: "x", Role: role}
		require.NoError(t, r.CreateUser(context.Background(), u))
		return u
	}
	env.owner = mk("owner@example.com", models.RoleUser)
	env.other = mk("other@example.com", models.RoleUser)
	env.admin = mk("admin@example.com", models.RoleAdmin)
	return env
}

func TestCanModify(t *testing.T) {
	t.Parallel()

	owner := uint(1)
	issue := &models.Issue{ID: 10, UserID: &owner}
	orphan := &models.Issue{ID: 11}

	assert.True(t, CanModify(&tokens.Claims{UserID: 1, Role: "user"}, issue))
	assert.False(t, CanModify(&tokens.Claims{UserID: 2, Role: "user"}, issue))
	assert.True(t, CanModify(&tokens.Claims{UserID: 2, Role: "admin"}, issue))
	assert.False(t, CanModify(&tokens.Claims{UserID: 1, Role: "user"}, orphan))
	assert.True(t, CanModify(&tokens.Claims{UserID: 3, Role: "admin"}, orphan))
	assert.False(t, CanModify(nil, issue))
}

func TestIssueCreate_TrimsAndAttributes(t *testing.T) {
	env := newIssueEnv(t)
	ctx := context.Background()

	issue, err := env.svc.Create(ctx, claimsFor(env.owner), "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", issue.IssueText)
	require.NotNil(t, issue.UserID)
	assert.Equal(t, env.owner.ID, *issue.UserID)
	require.NotNil(t, issue.User)
	assert.Equal(t, "owner@example.com", issue.User.Email)

	_, err = env.svc.Create(ctx, claimsFor(env.owner), " \t\n ")
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.svc.Create(ctx, nil, "hello")
	require.ErrorIs(t, err, ErrUnauthenticated)

	assert.Contains(t, env.index.docs, issue.ID)
	assert.Equal(t, []string{events.TypeIssueCreated}, env.pub.types())
}

func TestIssueUpdate_Ownership(t *testing.T) {
	env := newIssueEnv(t)
	ctx := context.Background()

	issue, err := env.svc.Create(ctx, claimsFor(env.owner), "first")
	require.NoError(t, err)

	_, err = env.svc.Update(ctx, claimsFor(env.other), issue.ID, "hijack")
	require.ErrorIs(t, err, ErrForbidden)

	updated, err := env.svc.Update(ctx, claimsFor(env.owner), issue.ID, "  second ")
	require.NoError(t, err)
	assert.Equal(t, "second", updated.IssueText)

	updated, err = env.svc.Update(ctx, claimsFor(env.admin), issue.ID, "moderated")
	require.NoError(t, err)
	assert.Equal(t, "moderated", updated.IssueText)
	require.NotNil(t, updated.UserID)
	assert.Equal(t, env.owner.ID, *updated.UserID, "ownership does not move to the editor")

	_, err = env.svc.Update(ctx, claimsFor(env.owner), issue.ID, "   ")
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.svc.Update(ctx, claimsFor(env.owner), 9999, "text")
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, "moderated", env.index.docs[issue.ID].IssueText)
}

func TestIssueDelete_Ownership(t *testing.T) {
	env := newIssueEnv(t)
	ctx := context.Background()

	mine, err := env.svc.Create(ctx, claimsFor(env.owner), "mine")
	require.NoError(t, err)
	theirs, err := env.svc.Create(ctx, claimsFor(env.other), "theirs")
	require.NoError(t, err)

	require.ErrorIs(t, env.svc.Delete(ctx, claimsFor(env.owner), theirs.ID), ErrForbidden)
	require.NoError(t, env.svc.Delete(ctx, claimsFor(env.owner), mine.ID))
	require.ErrorIs(t, env.svc.Delete(ctx, claimsFor(env.owner), mine.ID), ErrNotFound)
	require.NoError(t, env.svc.Delete(ctx, claimsFor(env.admin), theirs.ID))

	assert.Empty(t, env.index.docs)
	assert.Equal(t, []string{
		events.TypeIssueCreated, events.TypeIssueCreated,
		events.TypeIssueDeleted, events.TypeIssueDeleted,
	}, env.pub.types())
}

func TestIssueList_UsesCacheAndInvalidatesOnWrite(t *testing.T) {
	env := newIssueEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, claimsFor(env.owner), "older")
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, claimsFor(env.other), "newer")
	require.NoError(t, err)

	issues, err := env.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "newer", issues[0].IssueText)
	assert.Equal(t, 1, env.cache.sets)

	_, err = env.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, env.cache.sets, "second read served from cache")

	_, err = env.svc.Create(ctx, claimsFor(env.owner), "newest")
	require.NoError(t, err)
	assert.False(t, env.cache.ok)

	issues, err = env.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, issues, 3)
}

func TestIssueList_DoesNotCacheFeedReadBeforeConcurrentWrite(t *testing.T) {
	env := newIssueEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, claimsFor(env.owner), "first")
	require.NoError(t, err)

	writer := NewIssueService(env.repo, nil, nil, env.cache)
	env.svc.Store = &interleavedStore{IssueStore: env.repo, beforeList: func() {
		_, err := writer.Create(ctx, claimsFor(env.other), "second")
		require.NoError(t, err)
	}}

	issues, err := env.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, issues, 1, "rows read before the write")
	assert.False(t, env.cache.ok, "stale feed must not be cached")

	env.svc.Store = env.repo
	issues, err = env.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, issues, 2)
	assert.True(t, env.cache.ok)
}

func TestIssueList_OrphanedIssuesSurviveUserDeletion(t *testing.T) {
	env := newIssueEnv(t)
	env.svc.Cache = nil
	ctx := context.Background()

	issue, err := env.svc.Create(ctx, claimsFor(env.other), "left behind")
	require.NoError(t, err)
	require.NoError(t, env.repo.DB.Delete(&models.User{}, env.other.ID).Error)

	issues, err := env.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Nil(t, issues[0].UserID)
	assert.Nil(t, issues[0].User)

	_, err = env.svc.Update(ctx, claimsFor(env.owner), issue.ID, "x")
	require.ErrorIs(t, err, ErrForbidden)
	require.NoError(t, env.svc.Delete(ctx, claimsFor(env.admin), issue.ID))
}

func TestIssueSearch_FallsBackToStore(t *testing.T) {
	env := newIssueEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, claimsFor(env.owner), "printer jam")
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, claimsFor(env.owner), "door squeaks")
	require.NoError(t, err)

	total, hits, err := env.svc.Search(ctx, "printer", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total, "fake index returns everything it holds")
	assert.Len(t, hits, 2)

	env.index.failing = true
	total, hits, err = env.svc.Search(ctx, "printer", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, hits, 1)
	assert.Equal(t, "printer jam", hits[0].IssueText)

	env.svc.Index = nil
	total, _, err = env.svc.Search(ctx, "squeak", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, _, err = env.svc.Search(ctx, "   ", 0, 10)
	require.ErrorIs(t, err, ErrValidation)
}
