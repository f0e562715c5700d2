package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	TopicUsers  = "user_events"
	TopicIssues = "issue_events"

	TypeUserRegistered = "user_registered"
	TypeUserLoggedIn   = "user_logged_in"
	TypeUserLoggedOut  = "user_logged_out"
	TypeIssueCreated   = "issue_created"
	TypeIssueUpdated   = "issue_updated"
	TypeIssueDeleted   = "issue_deleted"
)

type Event struct {
	Type    string    `json:"type"`
	UserID  uint      `json:"userID,omitempty"`
	IssueID uint      `json:"issueID,omitempty"`
	Email   string    `json:"email,omitempty"`
	Role    string    `json:"role,omitempty"`
	At      time.Time `json:"at"`
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
	Close() error
}

func encode(event any) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("events: json.Marshal failed: %w", err)
	}
	return data, nil
}

type Nop struct{}

func (Nop) PublishEvent(context.Context, string, string, any) error { return nil }
func (Nop) Close() error                                            { return nil }
