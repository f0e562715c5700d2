package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/issue_logger/internal/models"
)

func withSubmitter(db *gorm.DB) *gorm.DB {
	return db.Preload("User")
}

// ListIssues returns every issue newest first with its submitter attached.
// Issues whose submitter was deleted have a nil User.
func (r *GormRepo) ListIssues(ctx context.Context) ([]models.Issue, error) {
	db, cancel := r.db(ctx)
	defer cancel()

	var issues []models.Issue
	if err := withSubmitter(db).Order("created_at DESC").Order("id DESC").Find(&issues).Error; err != nil {
		return nil, err
	}
	return issues, nil
}

func (r *GormRepo) IssueByID(ctx context.Context, id uint) (*models.Issue, error) {
	db, cancel := r.db(ctx)
	defer cancel()

	var issue models.Issue
	if err := withSubmitter(db).First(&issue, id).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *GormRepo) CreateIssue(ctx context.Context, issue *models.Issue) error {
	db, cancel := r.db(ctx)
	defer cancel()
	return db.Omit("User").Create(issue).Error
}

func (r *GormRepo) UpdateIssueText(ctx context.Context, id uint, text string) (*models.Issue, error) {
	db, cancel := r.db(ctx)
	defer cancel()

	res := db.Model(&models.Issue{ID: id}).Update("issue_text", text)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var issue models.Issue
	if err := withSubmitter(db).First(&issue, id).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *GormRepo) DeleteIssue(ctx context.Context, id uint) error {
	db, cancel := r.db(ctx)
	defer cancel()

	res := db.Delete(&models.Issue{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// SearchIssues is a case-insensitive substring match over issue text.
func (r *GormRepo) SearchIssues(ctx context.Context, query string, offset, limit int) (int64, []models.Issue, error) {
	db, cancel := r.db(ctx)
	defer cancel()

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	scope := db.Model(&models.Issue{}).
		Where(`LOWER(issue_text) LIKE ? ESCAPE '\'`, pattern).
		Session(&gorm.Session{})

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var issues []models.Issue
	if err := withSubmitter(scope).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&issues).Error; err != nil {
		return 0, nil, err
	}
	return total, issues, nil
}
