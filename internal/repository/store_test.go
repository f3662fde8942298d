package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repository_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func strPtr(s string) *string { return &s }

type fixture struct {
	teacherA, teacherB models.User
	circleA, circleB   models.Halqa
	course             models.Course
	students           []models.Student
}

func seedFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	f := fixture{
		teacherA: models.User{PersonalCode: strPtr("T-1"), PasswordHash: "x", Role: models.RoleTeacher, FullName: "Teacher A", IsActive: true},
		teacherB: models.User{PersonalCode: strPtr("T-2"), PasswordHash: "x", Role: models.RoleTeacher, FullName: "Teacher B", IsActive: true},
	}
	require.NoError(t, db.Create(&f.teacherA).Error)
	require.NoError(t, db.Create(&f.teacherB).Error)

	f.circleA = models.Halqa{Name: "Circle A", TeacherID: &f.teacherA.ID, Capacity: 10, Status: models.StatusActive}
	f.circleB = models.Halqa{Name: "Circle B", TeacherID: &f.teacherB.ID, Capacity: 5, Status: models.StatusActive}
	require.NoError(t, db.Create(&f.circleA).Error)
	require.NoError(t, db.Create(&f.circleB).Error)

	f.course = models.Course{Name: "Juz Amma", TotalPages: 23, Category: models.CourseCategoryMemorization, Level: models.LevelBeginner, Status: models.StatusActive}
	require.NoError(t, db.Create(&f.course).Error)

	enrolled := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i, halqa := range []models.Halqa{f.circleA, f.circleA, f.circleA, f.circleB} {
		student := models.Student{
			PersonalID: fmt.Sprintf("P-%03d", i),
			FullName:   fmt.Sprintf("Student %d", i),
			HalqaID:    halqa.ID,
			CourseID:   f.course.ID,
			EnrolledOn: enrolled,
			Status:     models.StatusActive,
		}
		require.NoError(t, db.Create(&student).Error)
		f.students = append(f.students, student)
	}
	return f
}

func TestHalqaRepositoryListAppliesTeacherScope(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	store := NewStore(db)

	q, err := listquery.Build(
		[]listquery.Condition{{Expr: "halaqat.teacher_id = ?", Args: []interface{}{f.teacherA.ID}}},
		[]listquery.Filter{{Column: "halaqat.teacher_id", Operator: listquery.OpEq, Value: fmt.Sprint(f.teacherB.ID), Kind: listquery.KindInt}},
		1, 20)
	require.NoError(t, err)
	rows, total, err := store.Halaqat.List(context.Background(), q)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, rows)

	q, err = listquery.Build([]listquery.Condition{{Expr: "halaqat.teacher_id = ?", Args: []interface{}{f.teacherA.ID}}}, nil, 1, 20)
	require.NoError(t, err)
	rows, total, err = store.Halaqat.List(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	require.Equal(t, "Circle A", rows[0].Name)
	require.Equal(t, "Teacher A", rows[0].TeacherName)
	require.Equal(t, int64(3), rows[0].ActiveStudents)
}

func TestHalqaStats(t *testing.T) {
	db := setupTestDB(t)
	seedFixture(t, db)
	stats, err := NewHalqaRepository(db).Stats(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, HalqaStats{Active: 2, Capacity: 15, Enrolled: 4}, stats)
}

func TestStudentUniqueConstraintIsDetected(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)

	duplicate := models.Student{PersonalID: f.students[0].PersonalID, FullName: "Copy", HalqaID: f.circleA.ID, CourseID: f.course.ID, Status: models.StatusActive}
	err := NewStudentRepository(db).Create(context.Background(), &duplicate)
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))
	require.False(t, IsUniqueViolation(nil))
}

func TestAttendanceReplaceDayOverwrites(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	day := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)

	first := make([]models.Attendance, 0, 3)
	for _, student := range f.students[:3] {
		first = append(first, models.Attendance{StudentID: student.ID, HalqaID: f.circleA.ID, AttendedOn: day, Status: models.AttendancePresent, RecordedBy: f.teacherA.ID})
	}
	require.NoError(t, repo.ReplaceDay(ctx, f.circleA.ID, day, first))

	records, err := repo.ForDay(ctx, f.circleA.ID, day)
	require.NoError(t, err)
	require.Len(t, records, 3)

	second := []models.Attendance{{StudentID: f.students[1].ID, HalqaID: f.circleA.ID, AttendedOn: day, Status: models.AttendanceAbsent, RecordedBy: f.teacherA.ID}}
	require.NoError(t, repo.ReplaceDay(ctx, f.circleA.ID, day, second))

	records, err = repo.ForDay(ctx, f.circleA.ID, day)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, f.students[1].ID, records[0].StudentID)
	require.Equal(t, models.AttendanceAbsent, records[0].Status)

	counts, err := repo.CountByStatus(ctx, nil, day, day)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[string(models.AttendanceAbsent)])
	require.Zero(t, counts[string(models.AttendancePresent)])
}

func TestStoreTransactionRollsBack(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	store := NewStore(db)

	err := store.Transaction(context.Background(), func(tx *Store) error {
		grade := models.Grade{StudentID: f.students[0].ID, HalqaID: f.circleA.ID, GradeType: models.GradeTypeExam, Value: 50, MaxValue: 100, GradedOn: time.Now().UTC(), RecordedBy: f.teacherA.ID, Status: models.StatusActive}
		require.NoError(t, tx.Grades.Create(context.Background(), &grade))
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Grade{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestUserRepositoryListUsesRawQuery(t *testing.T) {
	db := setupTestDB(t)
	seedFixture(t, db)
	repo := NewUserRepository(db)

	q, err := listquery.Build(nil, []listquery.Filter{{Column: "full_name", Operator: listquery.OpContains, Value: "teacher b"}}, 1, 10)
	require.NoError(t, err)
	users, total, err := repo.List(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, users, 1)
	require.Equal(t, "T-2", *users[0].PersonalCode)

	found, err := repo.FindByIdentifier(context.Background(), "T-1")
	require.NoError(t, err)
	require.Equal(t, "Teacher A", found.FullName)

	twins := []models.User{
		{PersonalCode: strPtr("T-3"), PasswordHash: "x", Role: models.RoleTeacher, FullName: "Ahmad Ali", IsActive: true},
		{PersonalCode: strPtr("T-4"), PasswordHash: "x", Role: models.RoleTeacher, FullName: "Ahmad Ali", IsActive: true},
	}
	require.NoError(t, db.Create(&twins).Error)

	seen := make([]uint, 0, len(twins))
	for page := 1; page <= 2; page++ {
		q, err := listquery.Build(nil, []listquery.Filter{{Column: "full_name", Operator: listquery.OpContains, Value: "ahmad ali"}}, page, 1)
		require.NoError(t, err)
		users, total, err := repo.List(context.Background(), q)
		require.NoError(t, err)
		require.Equal(t, int64(2), total)
		require.Len(t, users, 1)
		seen = append(seen, users[0].ID)
	}
	require.Equal(t, []uint{twins[0].ID, twins[1].ID}, seen)
}

func TestReportAttendanceSummary(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	day := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, NewAttendanceRepository(db).ReplaceDay(context.Background(), f.circleA.ID, day, []models.Attendance{
		{StudentID: f.students[0].ID, HalqaID: f.circleA.ID, AttendedOn: day, Status: models.AttendancePresent, RecordedBy: 1},
		{StudentID: f.students[1].ID, HalqaID: f.circleA.ID, AttendedOn: day, Status: models.AttendanceLate, RecordedBy: 1},
	}))

	q, err := listquery.Build(nil, []listquery.Filter{{Column: "attendance.halqa_id", Operator: listquery.OpEq, Value: fmt.Sprint(f.circleA.ID), Kind: listquery.KindInt}}, 1, 1)
	require.NoError(t, err)
	rows, err := NewReportRepository(db).AttendanceSummary(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	halqaRows, err := NewReportRepository(db).HalqaSummary(context.Background(), listquery.Query{}, day, day)
	require.NoError(t, err)
	require.Len(t, halqaRows, 2)
	require.Equal(t, "Circle A", halqaRows[0].HalqaName)
	require.Equal(t, int64(2), halqaRows[0].AttendanceRecords)
	require.Equal(t, int64(1), halqaRows[0].Present)
	require.Equal(t, int64(3), halqaRows[0].ActiveStudents)
}
