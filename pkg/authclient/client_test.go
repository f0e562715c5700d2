package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI accepts exactly one access token value and counts refreshes.
type fakeAPI struct {
	mu         sync.Mutex
	validToken string
	refreshOK  bool
	// stuck keeps rejecting access tokens even after a successful refresh
	stuck     bool
	refreshes int
	hits      int
	logouts   int
}

func (f *fakeAPI) setValid(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validToken = token
}

func (f *fakeAPI) counts() (refreshes, hits, logouts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes, f.hits, f.logouts
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	writeJSON := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	switch r.URL.Path {
	case "/auth/login":
		f.validToken = "access-1"
		writeJSON(http.StatusOK, map[string]any{
			"message": "Login successful", "accessToken": "access-1", "refreshToken": "refresh-1",
			"user": map[string]any{"id": 1, "email": "ann@example.com", "role": "user"},
		})
	case "/auth/refresh":
		f.refreshes++
		if !f.refreshOK {
			writeJSON(http.StatusUnauthorized, map[string]any{"error": "Invalid or expired refresh token"})
			return
		}
		if !f.stuck {
			f.validToken = "access-2"
		}
		writeJSON(http.StatusOK, map[string]any{"message": "Token refreshed", "accessToken": "access-2"})
	case "/auth/logout":
		f.logouts++
		writeJSON(http.StatusOK, map[string]any{"message": "Logged out successfully"})
	default:
		f.hits++
		if strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != f.validToken {
			writeJSON(http.StatusUnauthorized, map[string]any{"error": "Token expired", "code": "token_expired"})
			return
		}
		writeJSON(http.StatusOK, []map[string]any{{"id": 1, "issue_text": "hello"}})
	}
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestLogin_StoresTokens(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	res, err := c.Login(context.Background(), "ann@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", res.User.Email)

	access, refresh := c.Tokens()
	assert.Equal(t, "access-1", access)
	assert.Equal(t, "refresh-1", refresh)
}

func TestDo_RefreshesOnceAndRetries(t *testing.T) {
	api := &fakeAPI{refreshOK: true}
	c := newTestClient(t, api)
	_, err := c.Login(context.Background(), "ann@example.com", "secret123")
	require.NoError(t, err)

	// the server now only accepts the token handed out by a refresh
	api.setValid("access-2")

	var issues []map[string]any
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/issues", nil, &issues))
	assert.Len(t, issues, 1)
	refreshes, hits, _ := api.counts()
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, 2, hits)

	access, _ := c.Tokens()
	assert.Equal(t, "access-2", access)
}

func TestDo_SessionExpiredWhenRefreshFails(t *testing.T) {
	api := &fakeAPI{refreshOK: false}
	c := newTestClient(t, api)
	c.SetTokens("stale", "refresh-1")

	err := c.Do(context.Background(), http.MethodGet, "/issues", nil, nil)
	require.ErrorIs(t, err, ErrSessionExpired)
	refreshes, hits, _ := api.counts()
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, 1, hits, "no retry after a failed refresh")

	access, refresh := c.Tokens()
	assert.Empty(t, access)
	assert.Empty(t, refresh)
}

func TestDo_RetriesAtMostOnce(t *testing.T) {
	api := &fakeAPI{refreshOK: true, stuck: true, validToken: "never-issued"}
	c := newTestClient(t, api)
	c.SetTokens("stale", "refresh-1")

	err := c.Do(context.Background(), http.MethodGet, "/issues", nil, nil)
	require.ErrorIs(t, err, ErrSessionExpired)
	refreshes, hits, _ := api.counts()
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, 2, hits)
}

func TestDo_PassesThroughOtherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"You can only modify your own issues"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL)
	c.SetTokens("a", "r")
	err := c.Do(context.Background(), http.MethodDelete, "/issues/1", nil, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "You can only modify your own issues", apiErr.Message)
	assert.NotErrorIs(t, err, ErrSessionExpired)
}

func TestLogout_ForgetsTokens(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	_, err := c.Login(context.Background(), "ann@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, c.Logout(context.Background()))
	_, _, logouts := api.counts()
	assert.Equal(t, 1, logouts)
	access, refresh := c.Tokens()
	assert.Empty(t, access)
	assert.Empty(t, refresh)
}
