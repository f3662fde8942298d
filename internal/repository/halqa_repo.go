package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/models"
)

// HalqaRow is a halqa joined with its teacher and enrolment count.
type HalqaRow struct {
	models.Halqa   `gorm:"embedded"`
	TeacherName    string
	ActiveStudents int64
}

// HalqaStats aggregates halaqat within a scope.
type HalqaStats struct {
	Active   int64
	Inactive int64
	Capacity int64
	Enrolled int64
}

// HalqaRepository persists study circles.
type HalqaRepository interface {
	List(ctx context.Context, q listquery.Query) ([]HalqaRow, int64, error)
	GetByID(ctx context.Context, id uint) (models.Halqa, error)
	Create(ctx context.Context, halqa *models.Halqa) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	SetStatus(ctx context.Context, id uint, status models.Status) error
	NameTaken(ctx context.Context, name string, excludeID uint) (bool, error)
	ListActive(ctx context.Context, scopes []listquery.Condition) ([]models.Halqa, error)
	Stats(ctx context.Context, scopes []listquery.Condition) (HalqaStats, error)
}

type halqaRepository struct {
	db *gorm.DB
}

// NewHalqaRepository constructs the halqa repository.
func NewHalqaRepository(db *gorm.DB) HalqaRepository {
	return &halqaRepository{db: db}
}

func (r *halqaRepository) base(ctx context.Context, q listquery.Query) *gorm.DB {
	return q.Scope(r.db.WithContext(ctx).Table("halaqat").
		Joins("LEFT JOIN users ON users.id = halaqat.teacher_id"))
}

func (r *halqaRepository) List(ctx context.Context, q listquery.Query) ([]HalqaRow, int64, error) {
	var total int64
	if err := r.base(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []HalqaRow
	err := q.Paginate(r.base(ctx, q)).
		Select("halaqat.*, COALESCE(users.full_name, '') AS teacher_name, " +
			"(SELECT COUNT(*) FROM students WHERE students.halqa_id = halaqat.id AND students.status = 'active') AS active_students").
		Order("halaqat.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func (r *halqaRepository) GetByID(ctx context.Context, id uint) (models.Halqa, error) {
	var halqa models.Halqa
	if err := r.db.WithContext(ctx).First(&halqa, id).Error; err != nil {
		return models.Halqa{}, err
	}
	return halqa, nil
}

func (r *halqaRepository) Create(ctx context.Context, halqa *models.Halqa) error {
	return r.db.WithContext(ctx).Create(halqa).Error
}

func (r *halqaRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Halqa{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *halqaRepository) SetStatus(ctx context.Context, id uint, status models.Status) error {
	return r.Update(ctx, id, map[string]interface{}{"status": status})
}

func (r *halqaRepository) NameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Halqa{}).
		Where("LOWER(name) = LOWER(?)", name).
		Where("id <> ?", excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *halqaRepository) ListActive(ctx context.Context, scopes []listquery.Condition) ([]models.Halqa, error) {
	var halaqat []models.Halqa
	err := scopeOnly(scopes).Scope(r.db.WithContext(ctx).Model(&models.Halqa{})).
		Where("halaqat.status = ?", models.StatusActive).
		Order("halaqat.name ASC").
		Find(&halaqat).Error
	return halaqat, err
}

func (r *halqaRepository) Stats(ctx context.Context, scopes []listquery.Condition) (HalqaStats, error) {
	q := scopeOnly(scopes)
	counts, err := countByGroup(ctx, r.db, "halaqat", "halaqat.status", q)
	if err != nil {
		return HalqaStats{}, err
	}

	stats := HalqaStats{
		Active:   counts[string(models.StatusActive)],
		Inactive: counts[string(models.StatusInactive)],
	}

	var capacity struct{ Total int64 }
	err = q.Scope(r.db.WithContext(ctx).Table("halaqat")).
		Where("halaqat.status = ?", models.StatusActive).
		Select("COALESCE(SUM(halaqat.capacity), 0) AS total").
		Scan(&capacity).Error
	if err != nil {
		return HalqaStats{}, err
	}
	stats.Capacity = capacity.Total

	err = q.Scope(r.db.WithContext(ctx).Table("students").
		Joins("JOIN halaqat ON halaqat.id = students.halqa_id")).
		Where("students.status = ?", models.StatusActive).
		Count(&stats.Enrolled).Error
	if err != nil {
		return HalqaStats{}, err
	}

	return stats, nil
}
