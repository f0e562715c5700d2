package repo

import (
	"context"
	"time"

	"github.com/Skotchmaster/issue_logger/internal/models"
)

func (r *GormRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	db, cancel := r.db(ctx)
	defer cancel()
	return db.Create(token).Error
}

// RefreshTokenValid reports whether token is on record for userID and has
// not expired at now.
func (r *GormRepo) RefreshTokenValid(ctx context.Context, token string, userID uint, now time.Time) (bool, error) {
	db, cancel := r.db(ctx)
	defer cancel()

	var count int64
	if err := db.Model(&models.RefreshToken{}).
		Where("token = ? AND user_id = ? AND expires_at > ?", token, userID, now).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormRepo) DeleteRefreshToken(ctx context.Context, token string) (int64, error) {
	db, cancel := r.db(ctx)
	defer cancel()

	res := db.Where("token = ?", token).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

func (r *GormRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	db, cancel := r.db(ctx)
	defer cancel()

	res := db.Where("expires_at <= ?", now).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}
