package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/models"
)

// CourseRow is a course with its active enrolment count.
type CourseRow struct {
	models.Course  `gorm:"embedded"`
	ActiveStudents int64
}

// CourseStats aggregates courses.
type CourseStats struct {
	Active   int64
	Inactive int64
	Enrolled int64
}

// CourseRepository persists courses.
type CourseRepository interface {
	List(ctx context.Context, q listquery.Query) ([]CourseRow, int64, error)
	GetByID(ctx context.Context, id uint) (models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	SetStatus(ctx context.Context, id uint, status models.Status) error
	NameTaken(ctx context.Context, name string, excludeID uint) (bool, error)
	ListActive(ctx context.Context) ([]models.Course, error)
	Stats(ctx context.Context) (CourseStats, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs the course repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) List(ctx context.Context, q listquery.Query) ([]CourseRow, int64, error) {
	var total int64
	if err := q.Scope(r.db.WithContext(ctx).Table("courses")).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []CourseRow
	err := q.Paginate(q.Scope(r.db.WithContext(ctx).Table("courses"))).
		Select("courses.*, " +
			"(SELECT COUNT(*) FROM students WHERE students.course_id = courses.id AND students.status = 'active') AS active_students").
		Order("courses.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Course{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *courseRepository) SetStatus(ctx context.Context, id uint, status models.Status) error {
	return r.Update(ctx, id, map[string]interface{}{"status": status})
}

func (r *courseRepository) NameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Course{}).
		Where("LOWER(name) = LOWER(?)", name).
		Where("id <> ?", excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *courseRepository) ListActive(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	err := r.db.WithContext(ctx).
		Where("status = ?", models.StatusActive).
		Order("name ASC").
		Find(&courses).Error
	return courses, err
}

func (r *courseRepository) Stats(ctx context.Context) (CourseStats, error) {
	counts, err := countByGroup(ctx, r.db, "courses", "courses.status", listquery.Query{})
	if err != nil {
		return CourseStats{}, err
	}

	stats := CourseStats{
		Active:   counts[string(models.StatusActive)],
		Inactive: counts[string(models.StatusInactive)],
	}
	err = r.db.WithContext(ctx).Model(&models.Student{}).
		Where("status = ?", models.StatusActive).
		Count(&stats.Enrolled).Error
	if err != nil {
		return CourseStats{}, err
	}
	return stats, nil
}
