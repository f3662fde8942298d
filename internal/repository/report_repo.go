package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/halqat/internal/listquery"
)

// AttendanceSummaryRow counts attendance statuses per student.
type AttendanceSummaryRow struct {
	StudentID   uint   `json:"student_id"`
	StudentName string `json:"student_name"`
	HalqaName   string `json:"halqa_name"`
	Present     int64  `json:"present"`
	Absent      int64  `json:"absent"`
	Late        int64  `json:"late"`
	Total       int64  `json:"total"`
}

// GradeSummaryRow aggregates active grades per student.
type GradeSummaryRow struct {
	StudentID      uint    `json:"student_id"`
	StudentName    string  `json:"student_name"`
	HalqaName      string  `json:"halqa_name"`
	Grades         int64   `json:"grades"`
	AveragePercent float64 `json:"average_percent"`
}

// HalqaSummaryRow aggregates enrolment and attendance per halqa.
type HalqaSummaryRow struct {
	HalqaID           uint   `json:"halqa_id"`
	HalqaName         string `json:"halqa_name"`
	TeacherName       string `json:"teacher_name"`
	ActiveStudents    int64  `json:"active_students"`
	AttendanceRecords int64  `json:"attendance_records"`
	Present           int64  `json:"present"`
}

// ReportRepository runs the aggregate queries behind the reports endpoint.
type ReportRepository interface {
	AttendanceSummary(ctx context.Context, q listquery.Query) ([]AttendanceSummaryRow, error)
	GradesSummary(ctx context.Context, q listquery.Query) ([]GradeSummaryRow, error)
	HalqaSummary(ctx context.Context, q listquery.Query, from, to time.Time) ([]HalqaSummaryRow, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository constructs the report repository.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) AttendanceSummary(ctx context.Context, q listquery.Query) ([]AttendanceSummaryRow, error) {
	sql := "SELECT students.id AS student_id, students.full_name AS student_name, halaqat.name AS halqa_name, " +
		"SUM(CASE WHEN attendance.status = 'present' THEN 1 ELSE 0 END) AS present, " +
		"SUM(CASE WHEN attendance.status = 'absent' THEN 1 ELSE 0 END) AS absent, " +
		"SUM(CASE WHEN attendance.status = 'late' THEN 1 ELSE 0 END) AS late, " +
		"COUNT(*) AS total " +
		"FROM attendance " +
		"JOIN students ON students.id = attendance.student_id " +
		"JOIN halaqat ON halaqat.id = attendance.halqa_id" +
		q.WhereClause() +
		" GROUP BY students.id, students.full_name, halaqat.name" +
		" ORDER BY halaqat.name ASC, students.full_name ASC"

	var rows []AttendanceSummaryRow
	err := r.db.WithContext(ctx).Raw(sql, q.Args...).Scan(&rows).Error
	return rows, err
}

func (r *reportRepository) GradesSummary(ctx context.Context, q listquery.Query) ([]GradeSummaryRow, error) {
	sql := "SELECT students.id AS student_id, students.full_name AS student_name, halaqat.name AS halqa_name, " +
		"COUNT(*) AS grades, " +
		"COALESCE(AVG(CASE WHEN grades.max_value > 0 THEN grades.value * 100.0 / grades.max_value END), 0) AS average_percent " +
		"FROM grades " +
		"JOIN students ON students.id = grades.student_id " +
		"JOIN halaqat ON halaqat.id = grades.halqa_id" +
		q.WhereClause() +
		" GROUP BY students.id, students.full_name, halaqat.name" +
		" ORDER BY halaqat.name ASC, students.full_name ASC"

	var rows []GradeSummaryRow
	err := r.db.WithContext(ctx).Raw(sql, q.Args...).Scan(&rows).Error
	return rows, err
}

func (r *reportRepository) HalqaSummary(ctx context.Context, q listquery.Query, from, to time.Time) ([]HalqaSummaryRow, error) {
	sql := "SELECT halaqat.id AS halqa_id, halaqat.name AS halqa_name, COALESCE(users.full_name, '') AS teacher_name, " +
		"(SELECT COUNT(*) FROM students WHERE students.halqa_id = halaqat.id AND students.status = 'active') AS active_students, " +
		"COUNT(attendance.id) AS attendance_records, " +
		"COALESCE(SUM(CASE WHEN attendance.status = 'present' THEN 1 ELSE 0 END), 0) AS present " +
		"FROM halaqat " +
		"LEFT JOIN users ON users.id = halaqat.teacher_id " +
		"LEFT JOIN attendance ON attendance.halqa_id = halaqat.id AND attendance.attended_on >= ? AND attendance.attended_on <= ?" +
		q.WhereClause() +
		" GROUP BY halaqat.id, halaqat.name, users.full_name" +
		" ORDER BY halaqat.name ASC"

	args := append([]interface{}{from, to}, q.Args...)
	var rows []HalqaSummaryRow
	err := r.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error
	return rows, err
}
