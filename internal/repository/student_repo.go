package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/models"
)

// StudentRow is a student joined with the names of its halqa and course.
type StudentRow struct {
	models.Student `gorm:"embedded"`
	HalqaName      string
	CourseName     string
}

// StudentRepository persists students.
type StudentRepository interface {
	List(ctx context.Context, q listquery.Query) ([]StudentRow, int64, error)
	GetByID(ctx context.Context, id uint) (models.Student, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	SetStatus(ctx context.Context, id uint, status models.Status) error
	PersonalIDTaken(ctx context.Context, personalID string, excludeID uint) (bool, error)
	CountActiveByHalqa(ctx context.Context, halqaID uint) (int64, error)
	CountActiveByCourse(ctx context.Context, courseID uint) (int64, error)
	ListActiveByHalqa(ctx context.Context, halqaID uint) ([]models.Student, error)
	ListActive(ctx context.Context, scopes []listquery.Condition) ([]models.Student, error)
	CountByStatus(ctx context.Context, scopes []listquery.Condition) (map[string]int64, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs the student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) base(ctx context.Context, q listquery.Query) *gorm.DB {
	return q.Scope(r.db.WithContext(ctx).Table("students").
		Joins("LEFT JOIN halaqat ON halaqat.id = students.halqa_id").
		Joins("LEFT JOIN courses ON courses.id = students.course_id"))
}

func (r *studentRepository) List(ctx context.Context, q listquery.Query) ([]StudentRow, int64, error) {
	var total int64
	if err := r.base(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []StudentRow
	err := q.Paginate(r.base(ctx, q)).
		Select("students.*, COALESCE(halaqat.name, '') AS halqa_name, COALESCE(courses.name, '') AS course_name").
		Order("students.full_name ASC, students.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var students []models.Student
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&students).Error
	return students, err
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *studentRepository) SetStatus(ctx context.Context, id uint, status models.Status) error {
	return r.Update(ctx, id, map[string]interface{}{"status": status})
}

func (r *studentRepository) PersonalIDTaken(ctx context.Context, personalID string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("personal_id = ?", personalID).
		Where("id <> ?", excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *studentRepository) CountActiveByHalqa(ctx context.Context, halqaID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("halqa_id = ? AND status = ?", halqaID, models.StatusActive).
		Count(&count).Error
	return count, err
}

func (r *studentRepository) CountActiveByCourse(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("course_id = ? AND status = ?", courseID, models.StatusActive).
		Count(&count).Error
	return count, err
}

func (r *studentRepository) ListActiveByHalqa(ctx context.Context, halqaID uint) ([]models.Student, error) {
	var students []models.Student
	err := r.db.WithContext(ctx).
		Where("halqa_id = ? AND status = ?", halqaID, models.StatusActive).
		Order("full_name ASC").
		Find(&students).Error
	return students, err
}

func (r *studentRepository) ListActive(ctx context.Context, scopes []listquery.Condition) ([]models.Student, error) {
	var students []models.Student
	err := scopeOnly(scopes).Scope(r.db.WithContext(ctx).Model(&models.Student{})).
		Where("students.status = ?", models.StatusActive).
		Order("students.full_name ASC").
		Find(&students).Error
	return students, err
}

func (r *studentRepository) CountByStatus(ctx context.Context, scopes []listquery.Condition) (map[string]int64, error) {
	return countByGroup(ctx, r.db, "students", "students.status", scopeOnly(scopes))
}
