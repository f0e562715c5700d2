package transport

import (
	"time"

	"github.com/Skotchmaster/issue_logger/internal/models"
	"github.com/Skotchmaster/issue_logger/internal/service"
)

type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name"`
	Role     string  `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type IssueRequest struct {
	IssueText string `json:"issue_text"`
}

type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	FullName  *string   `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func NewUserList(users []models.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = NewUserResponse(&users[i])
	}
	return out
}

type SubmitterResponse struct {
	ID       uint    `json:"id"`
	Email    string  `json:"email"`
	FullName *string `json:"full_name"`
}

type IssueResponse struct {
	ID        uint               `json:"id"`
	IssueText string             `json:"issue_text"`
	UserID    *uint              `json:"user_id"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Submitter *SubmitterResponse `json:"submitter"`
}

func NewIssueResponse(i *models.Issue) IssueResponse {
	resp := IssueResponse{
		ID:        i.ID,
		IssueText: i.IssueText,
		UserID:    i.UserID,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
	if i.User != nil {
		resp.Submitter = &SubmitterResponse{ID: i.User.ID, Email: i.User.Email, FullName: i.User.FullName}
	}
	return resp
}

func NewIssueList(issues []models.Issue) []IssueResponse {
	out := make([]IssueResponse, len(issues))
	for i := range issues {
		out[i] = NewIssueResponse(&issues[i])
	}
	return out
}

type ProfileResponse struct {
	User        UserResponse           `json:"user"`
	Profile     *models.UserProfile    `json:"profile"`
	Preferences *models.UserPreference `json:"preferences"`
	Addresses   []models.UserAddress   `json:"addresses"`
}

func NewProfileResponse(p *service.FullProfile) ProfileResponse {
	addrs := p.Addresses
	if addrs == nil {
		addrs = []models.UserAddress{}
	}
	return ProfileResponse{
		User:        NewUserResponse(p.User),
		Profile:     p.Profile,
		Preferences: p.Preferences,
		Addresses:   addrs,
	}
}
