package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/models"
)

// GradeRow is a grade joined with student, halqa and recorder names.
type GradeRow struct {
	models.Grade   `gorm:"embedded"`
	StudentName    string
	HalqaName      string
	RecordedByName string
}

// GradeStats aggregates active grades within a scope.
type GradeStats struct {
	Count          int64
	AveragePercent float64
	ThisWeek       int64
}

// GradeRepository persists grades.
type GradeRepository interface {
	List(ctx context.Context, q listquery.Query) ([]GradeRow, int64, error)
	GetByID(ctx context.Context, id uint) (models.Grade, error)
	Create(ctx context.Context, grade *models.Grade) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	SetStatus(ctx context.Context, id uint, status models.Status) error
	Stats(ctx context.Context, scopes []listquery.Condition, weekStart time.Time) (GradeStats, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository constructs the grade repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) base(ctx context.Context, q listquery.Query) *gorm.DB {
	return q.Scope(r.db.WithContext(ctx).Table("grades").
		Joins("LEFT JOIN students ON students.id = grades.student_id").
		Joins("LEFT JOIN halaqat ON halaqat.id = grades.halqa_id").
		Joins("LEFT JOIN users ON users.id = grades.recorded_by"))
}

func (r *gradeRepository) List(ctx context.Context, q listquery.Query) ([]GradeRow, int64, error) {
	var total int64
	if err := r.base(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []GradeRow
	err := q.Paginate(r.base(ctx, q)).
		Select("grades.*, COALESCE(students.full_name, '') AS student_name, " +
			"COALESCE(halaqat.name, '') AS halqa_name, COALESCE(users.full_name, '') AS recorded_by_name").
		Order("grades.graded_on DESC, grades.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func (r *gradeRepository) GetByID(ctx context.Context, id uint) (models.Grade, error) {
	var grade models.Grade
	if err := r.db.WithContext(ctx).First(&grade, id).Error; err != nil {
		return models.Grade{}, err
	}
	return grade, nil
}

func (r *gradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Create(grade).Error
}

func (r *gradeRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Grade{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gradeRepository) SetStatus(ctx context.Context, id uint, status models.Status) error {
	return r.Update(ctx, id, map[string]interface{}{"status": status})
}

func (r *gradeRepository) Stats(ctx context.Context, scopes []listquery.Condition, weekStart time.Time) (GradeStats, error) {
	q := scopeOnly(scopes)

	var aggregate struct {
		Total   int64
		Average float64
	}
	err := q.Scope(r.db.WithContext(ctx).Table("grades")).
		Where("grades.status = ?", models.StatusActive).
		Select("COUNT(*) AS total, COALESCE(AVG(CASE WHEN grades.max_value > 0 THEN grades.value * 100.0 / grades.max_value END), 0) AS average").
		Scan(&aggregate).Error
	if err != nil {
		return GradeStats{}, err
	}

	stats := GradeStats{Count: aggregate.Total, AveragePercent: aggregate.Average}
	err = q.Scope(r.db.WithContext(ctx).Table("grades")).
		Where("grades.status = ? AND grades.graded_on >= ?", models.StatusActive, weekStart).
		Count(&stats.ThisWeek).Error
	if err != nil {
		return GradeStats{}, err
	}
	return stats, nil
}
