package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/issue_logger/internal/models"
)

func (r *GormRepo) CreateProfile(ctx context.Context, profile *models.UserProfile) error {
	db, cancel := r.db(ctx)
	defer cancel()
	return db.Create(profile).Error
}

func (r *GormRepo) CreatePreference(ctx context.Context, pref *models.UserPreference) error {
	db, cancel := r.db(ctx)
	defer cancel()
	return db.Create(pref).Error
}

// ProfileByUserID returns nil without error when the user has no profile row.
func (r *GormRepo) ProfileByUserID(ctx context.Context, userID uint) (*models.UserProfile, error) {
	db, cancel := r.db(ctx)
	defer cancel()

	var profile models.UserProfile
	if err := db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *GormRepo) PreferenceByUserID(ctx context.Context, userID uint) (*models.UserPreference, error) {
	db, cancel := r.db(ctx)
	defer cancel()

	var pref models.UserPreference
	if err := db.Where("user_id = ?", userID).First(&pref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pref, nil
}

func (r *GormRepo) AddressesByUserID(ctx context.Context, userID uint) ([]models.UserAddress, error) {
	db, cancel := r.db(ctx)
	defer cancel()

	addrs := []models.UserAddress{}
	if err := db.Where("user_id = ?", userID).
		Order("is_primary DESC").Order("id ASC").
		Find(&addrs).Error; err != nil {
		return nil, err
	}
	return addrs, nil
}
