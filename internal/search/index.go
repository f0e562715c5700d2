package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/issue_logger/internal/models"
)

type IssueDoc struct {
	ID             uint      `json:"id"`
	IssueText      string    `json:"issue_text"`
	UserID         *uint     `json:"user_id"`
	SubmitterEmail string    `json:"submitter_email,omitempty"`
	SubmitterName  *string   `json:"submitter_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func DocFromIssue(issue *models.Issue) IssueDoc {
	doc := IssueDoc{
		ID:        issue.ID,
		IssueText: issue.IssueText,
		UserID:    issue.UserID,
		CreatedAt: issue.CreatedAt,
		UpdatedAt: issue.UpdatedAt,
	}
	if issue.User != nil {
		doc.SubmitterEmail = issue.User.Email
		doc.SubmitterName = issue.User.FullName
	}
	return doc
}

func (d IssueDoc) Issue() models.Issue {
	issue := models.Issue{
		ID:        d.ID,
		IssueText: d.IssueText,
		UserID:    d.UserID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.UserID != nil && d.SubmitterEmail != "" {
		issue.User = &models.User{ID: *d.UserID, Email: d.SubmitterEmail, FullName: d.SubmitterName}
	}
	return issue
}

// ESIndex keeps a searchable copy of issues in one Elasticsearch index.
type ESIndex struct {
	ES    *elasticsearch.Client
	Index string
}

func NewESIndex(es *elasticsearch.Client, index string) *ESIndex {
	return &ESIndex{ES: es, Index: index}
}

func (x *ESIndex) IndexIssue(ctx context.Context, doc IssueDoc) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("index issue: %w", err)
	}

	res, err := x.ES.Index(
		x.Index,
		&buf,
		x.ES.Index.WithContext(ctx),
		x.ES.Index.WithDocumentID(strconv.FormatUint(uint64(doc.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index issue: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index issue", res.Status(), res.Body)
	}
	return nil
}

func (x *ESIndex) DeleteIssue(ctx context.Context, id uint) error {
	res, err := x.ES.Delete(
		x.Index,
		strconv.FormatUint(uint64(id), 10),
		x.ES.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return responseError("delete issue", res.Status(), res.Body)
	}
	return nil
}

func (x *ESIndex) Search(ctx context.Context, query string, from, size int) (int64, []IssueDoc, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"issue_text^2", "submitter_name", "submitter_email"},
				"fuzziness": "AUTO",
			},
		},
		"sort": []any{
			"_score",
			map[string]any{"created_at": map[string]any{"order": "desc"}},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}

	res, err := x.ES.Search(
		x.ES.Search.WithContext(ctx),
		x.ES.Search.WithIndex(x.Index),
		x.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, responseError("search", res.Status(), res.Body)
	}

	var r struct {
		Hits struct {
			Total struct{ Value int64 } `json:"total"`
			Hits  []struct {
				Source IssueDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("search decode: %w", err)
	}

	docs := make([]IssueDoc, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		docs[i] = hit.Source
	}
	return r.Hits.Total.Value, docs, nil
}

func responseError(op, status string, body io.Reader) error {
	b, _ := io.ReadAll(io.LimitReader(body, 4096))
	return fmt.Errorf("%s: elasticsearch %s: %s", op, status, b)
}
