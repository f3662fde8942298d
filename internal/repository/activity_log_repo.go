package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/models"
)

// ActivityLogRepository persists audit trail events. Entries are never updated or removed.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, q listquery.Query) ([]models.ActivityLog, int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *activityLogRepository) List(ctx context.Context, q listquery.Query) ([]models.ActivityLog, int64, error) {
	query := q.Scope(r.db.WithContext(ctx).Model(&models.ActivityLog{}))

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.ActivityLog
	if err := q.Paginate(query).Order("created_at DESC, id DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
