package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/noah-isme/halqat/internal/listquery"
)

// Store groups every repository over one connection or transaction.
type Store struct {
	db         *gorm.DB
	Users      UserRepository
	Halaqat    HalqaRepository
	Courses    CourseRepository
	Students   StudentRepository
	Attendance AttendanceRepository
	Grades     GradeRepository
	Activity   ActivityLogRepository
	Reports    ReportRepository
}

// NewStore constructs the repositories over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:         db,
		Users:      NewUserRepository(db),
		Halaqat:    NewHalqaRepository(db),
		Courses:    NewCourseRepository(db),
		Students:   NewStudentRepository(db),
		Attendance: NewAttendanceRepository(db),
		Grades:     NewGradeRepository(db),
		Activity:   NewActivityLogRepository(db),
		Reports:    NewReportRepository(db),
	}
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn against a store bound to a single database transaction.
// Any error returned by fn rolls the transaction back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// IsUniqueViolation reports whether err is a unique-constraint failure raised by the database.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "duplicate key") || strings.Contains(message, "unique constraint")
}

// StatusCount is one row of a grouped count.
type StatusCount struct {
	GroupKey string
	Total    int64
}

func countByGroup(ctx context.Context, db *gorm.DB, table, column string, q listquery.Query) (map[string]int64, error) {
	var rows []StatusCount
	err := q.Scope(db.WithContext(ctx).Table(table)).
		Select(column + " AS group_key, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.GroupKey] = row.Total
	}
	return counts, nil
}

func scopeOnly(scopes []listquery.Condition) listquery.Query {
	q, _ := listquery.Build(scopes, nil, 1, 1)
	return q
}
