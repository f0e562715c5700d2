package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/issue_logger/internal/models"
)

type fakeES struct {
	mu      sync.Mutex
	indexed map[string][]byte
	queries []map[string]any
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`)
	case strings.Contains(r.URL.Path, "/_doc/") && r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"result":"not_found"}`)
	case strings.Contains(r.URL.Path, "/_doc/"):
		body, _ := io.ReadAll(r.Body)
		id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		f.indexed[id] = body
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		var q map[string]any
		_ = json.NewDecoder(r.Body).Decode(&q)
		f.queries = append(f.queries, q)
		if mm, _ := q["query"].(map[string]any)["multi_match"].(map[string]any); mm["query"] == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":"shard failure"}`)
			return
		}
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":3},"hits":[
			{"_source":{"id":5,"issue_text":"printer jam","user_id":2,"submitter_email":"a@b.co","created_at":"2026-01-02T03:04:05Z"}},
			{"_source":{"id":4,"issue_text":"printer toner","user_id":null,"created_at":"2026-01-01T03:04:05Z"}}
		]}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{}`)
	}
}

func newTestIndex(t *testing.T) (*ESIndex, *fakeES) {
	t.Helper()
	fake := &fakeES{indexed: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "", "")
	require.NoError(t, err)
	return NewESIndex(client, "issues"), fake
}

func TestNewClient_FailsWhenUnreachable(t *testing.T) {
	t.Parallel()

	_, err := NewClient("http://127.0.0.1:1", "", "")
	require.Error(t, err)
}

func TestESIndex_IndexAndDelete(t *testing.T) {
	t.Parallel()

	idx, fake := newTestIndex(t)
	uid := uint(2)
	name := "Alice"
	issue := &models.Issue{
		ID:        5,
		IssueText: "printer jam",
		UserID:    &uid,
		User:      &models.User{ID: uid, Email: "a@b.co", FullName: &name},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, idx.IndexIssue(context.Background(), DocFromIssue(issue)))

	var stored IssueDoc
	require.NoError(t, json.Unmarshal(fake.indexed["5"], &stored))
	assert.Equal(t, "printer jam", stored.IssueText)
	assert.Equal(t, "a@b.co", stored.SubmitterEmail)
	require.NotNil(t, stored.SubmitterName)
	assert.Equal(t, "Alice", *stored.SubmitterName)

	require.NoError(t, idx.DeleteIssue(context.Background(), 5), "missing documents are not an error")
}

func TestESIndex_Search(t *testing.T) {
	t.Parallel()

	idx, fake := newTestIndex(t)

	total, docs, err := idx.Search(context.Background(), "printer", 10, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, docs, 2)

	first := docs[0].Issue()
	assert.EqualValues(t, 5, first.ID)
	require.NotNil(t, first.User)
	assert.Equal(t, "a@b.co", first.User.Email)
	assert.Nil(t, docs[1].Issue().User)

	require.Len(t, fake.queries, 1)
	assert.EqualValues(t, 10, fake.queries[0]["from"])
	assert.EqualValues(t, 5, fake.queries[0]["size"])

	_, _, err = idx.Search(context.Background(), "boom", 0, 5)
	require.Error(t, err)
}
