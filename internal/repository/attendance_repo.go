package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/models"
)

// AttendanceRow is an attendance record joined with student and halqa names.
type AttendanceRow struct {
	models.Attendance `gorm:"embedded"`
	StudentName       string
	HalqaName         string
}

// AttendanceRepository persists daily attendance.
type AttendanceRepository interface {
	List(ctx context.Context, q listquery.Query) ([]AttendanceRow, int64, error)
	GetByID(ctx context.Context, id uint) (models.Attendance, error)
	ForDay(ctx context.Context, halqaID uint, day time.Time) ([]models.Attendance, error)
	ReplaceDay(ctx context.Context, halqaID uint, day time.Time, records []models.Attendance) error
	UpdateStatus(ctx context.Context, id uint, status models.AttendanceStatus, notes string) error
	CountByStatus(ctx context.Context, scopes []listquery.Condition, from, to time.Time) (map[string]int64, error)
}

type attendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository constructs the attendance repository.
func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) base(ctx context.Context, q listquery.Query) *gorm.DB {
	return q.Scope(r.db.WithContext(ctx).Table("attendance").
		Joins("LEFT JOIN students ON students.id = attendance.student_id").
		Joins("LEFT JOIN halaqat ON halaqat.id = attendance.halqa_id"))
}

func (r *attendanceRepository) List(ctx context.Context, q listquery.Query) ([]AttendanceRow, int64, error) {
	var total int64
	if err := r.base(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []AttendanceRow
	err := q.Paginate(r.base(ctx, q)).
		Select("attendance.*, COALESCE(students.full_name, '') AS student_name, COALESCE(halaqat.name, '') AS halqa_name").
		Order("attendance.attended_on DESC, students.full_name ASC, attendance.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func (r *attendanceRepository) GetByID(ctx context.Context, id uint) (models.Attendance, error) {
	var record models.Attendance
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return models.Attendance{}, err
	}
	return record, nil
}

func (r *attendanceRepository) ForDay(ctx context.Context, halqaID uint, day time.Time) ([]models.Attendance, error) {
	var records []models.Attendance
	err := r.db.WithContext(ctx).
		Where("halqa_id = ? AND attended_on = ?", halqaID, day).
		Order("student_id ASC").
		Find(&records).Error
	return records, err
}

// ReplaceDay deletes every record of the halqa for the day and inserts records in their place.
func (r *attendanceRepository) ReplaceDay(ctx context.Context, halqaID uint, day time.Time, records []models.Attendance) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("halqa_id = ? AND attended_on = ?", halqaID, day).Delete(&models.Attendance{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(&records, 100).Error
	})
}

func (r *attendanceRepository) UpdateStatus(ctx context.Context, id uint, status models.AttendanceStatus, notes string) error {
	result := r.db.WithContext(ctx).Model(&models.Attendance{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "notes": notes})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *attendanceRepository) CountByStatus(ctx context.Context, scopes []listquery.Condition, from, to time.Time) (map[string]int64, error) {
	window := append(append([]listquery.Condition{}, scopes...), listquery.Condition{
		Expr: "attendance.attended_on >= ? AND attendance.attended_on <= ?",
		Args: []interface{}{from, to},
	})
	return countByGroup(ctx, r.db, "attendance", "attendance.status", scopeOnly(window))
}
