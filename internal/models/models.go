package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"            json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null"       json:"email"`
	PasswordHash string    `gorm:"size:255;not null"                   json:"-"`
	FullName     *string   `gorm:"size:255"                            json:"full_name"`
	Role         string    `gorm:"size:20;not null;default:'user'"       json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	RefreshTokens []RefreshToken  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Profile       *UserProfile    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Preference    *UserPreference `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Addresses     []UserAddress   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"            json:"id"`
	UserID    uint      `gorm:"index;not null"        json:"user_id"`
	Token     string    `gorm:"type:text;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null"        json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type Issue struct {
	ID        uint      `gorm:"primaryKey"     json:"id"`
	IssueText string    `gorm:"type:text;not null" json:"issue_text"`
	UserID    *uint     `gorm:"index"          json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:SET NULL" json:"submitter,omitempty"`
	CreatedAt time.Time `gorm:"index"          json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserProfile struct {
	ID          uint       `gorm:"primaryKey"           json:"id"`
	UserID      uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	Phone       *string    `gorm:"size:20"              json:"phone"`
	DateOfBirth *time.Time `gorm:"type:date"            json:"date_of_birth"`
	Bio         *string    `gorm:"type:text"            json:"bio"`
	AvatarURL   *string    `gorm:"size:500"             json:"avatar_url"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type UserPreference struct {
	ID                   uint      `gorm:"primaryKey"                 json:"id"`
	UserID               uint      `gorm:"uniqueIndex;not null"       json:"user_id"`
	Theme                string    `gorm:"size:20;default:'light'"      json:"theme"`
	Language             string    `gorm:"size:10;default:'en'"         json:"language"`
	NotificationsEnabled bool      `gorm:"default:true"               json:"notifications_enabled"`
	EmailNotifications   bool      `gorm:"default:true"               json:"email_notifications"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func DefaultPreference(userID uint) UserPreference {
	return UserPreference{
		UserID:               userID,
		Theme:                "light",
		Language:             "en",
		NotificationsEnabled: true,
		EmailNotifications:   true,
	}
}

type UserAddress struct {
	ID          uint      `gorm:"primaryKey"             json:"id"`
	UserID      uint      `gorm:"index;not null"         json:"user_id"`
	AddressType string    `gorm:"size:20;default:'home'"   json:"address_type"`
	Street      *string   `gorm:"size:255"               json:"street"`
	City        *string   `gorm:"size:100"               json:"city"`
	State       *string   `gorm:"size:100"               json:"state"`
	PostalCode  *string   `gorm:"size:20"                json:"postal_code"`
	Country     *string   `gorm:"size:100"               json:"country"`
	IsPrimary   bool      `gorm:"default:false"          json:"is_primary"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func All() []any {
	return []any{
		&User{},
		&RefreshToken{},
		&Issue{},
		&UserProfile{},
		&UserPreference{},
		&UserAddress{},
	}
}
