package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const DefaultTimeout = 5 * time.Second

// GormRepo is the relational store for users, refresh tokens, issues and the
// profile side tables. Every call is bounded by Timeout.
type GormRepo struct {
	DB      *gorm.DB
	Timeout time.Duration
}

func New(db *gorm.DB, timeout time.Duration) *GormRepo {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GormRepo{DB: db, Timeout: timeout}
}

func (r *GormRepo) db(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	return r.DB.WithContext(ctx), cancel
}
