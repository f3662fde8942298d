package service

import (
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/repository"
)

func init() {
	passwordCost = bcrypt.MinCost
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// school is the shared fixture: Circle A (teacher A, three active students), Circle B
// (teacher B, one active student) and one course.
type school struct {
	db         *gorm.DB
	store      *repository.Store
	programmer models.User
	supervisor models.User
	teacherA   models.User
	teacherB   models.User
	teacherC   models.User
	circleA    models.Halqa
	circleB    models.Halqa
	course     models.Course
	students   []models.Student
}

func strPtr(s string) *string { return &s }

func newSchool(t *testing.T) *school {
	t.Helper()
	db := setupTestDB(t)
	s := &school{db: db, store: repository.NewStore(db)}

	hash, err := hashPassword("password123")
	require.NoError(t, err)

	s.programmer = models.User{Username: strPtr("root"), PasswordHash: hash, Role: models.RoleProgrammer, FullName: "Root", IsActive: true}
	s.supervisor = models.User{Username: strPtr("super"), PasswordHash: hash, Role: models.RoleSupervisor, FullName: "Supervisor", IsActive: true}
	s.teacherA = models.User{PersonalCode: strPtr("T-100"), PasswordHash: hash, Role: models.RoleTeacher, FullName: "Teacher A", IsActive: true}
	s.teacherB = models.User{PersonalCode: strPtr("T-200"), PasswordHash: hash, Role: models.RoleTeacher, FullName: "Teacher B", IsActive: true}
	s.teacherC = models.User{PersonalCode: strPtr("T-300"), PasswordHash: hash, Role: models.RoleTeacher, FullName: "Teacher C", IsActive: true}
	for _, user := range []*models.User{&s.programmer, &s.supervisor, &s.teacherA, &s.teacherB, &s.teacherC} {
		require.NoError(t, db.Create(user).Error)
	}

	s.circleA = models.Halqa{Name: "Circle A", TeacherID: &s.teacherA.ID, Capacity: 10, Level: models.LevelBeginner, Status: models.StatusActive}
	s.circleB = models.Halqa{Name: "Circle B", TeacherID: &s.teacherB.ID, Capacity: 10, Level: models.LevelAdvanced, Status: models.StatusActive}
	require.NoError(t, db.Create(&s.circleA).Error)
	require.NoError(t, db.Create(&s.circleB).Error)

	s.course = models.Course{Name: "Juz Amma", TotalPages: 23, Category: models.CourseCategoryMemorization, Level: models.LevelBeginner, Status: models.StatusActive}
	require.NoError(t, db.Create(&s.course).Error)

	enrolled := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i, halqa := range []models.Halqa{s.circleA, s.circleA, s.circleA, s.circleB} {
		student := models.Student{
			PersonalID: fmt.Sprintf("S-%03d", i+1),
			FullName:   fmt.Sprintf("Student %d", i+1),
			HalqaID:    halqa.ID,
			CourseID:   s.course.ID,
			EnrolledOn: enrolled,
			Status:     models.StatusActive,
		}
		require.NoError(t, db.Create(&student).Error)
		s.students = append(s.students, student)
	}
	return s
}

func (s *school) deps() MutationDeps {
	return MutationDeps{Store: s.store, Validator: NewValidator(), Logger: testLogger()}
}

func (s *school) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var total int64
	q := s.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&total).Error)
	return total
}

func asProgrammer(s *school) RequestContext { return NewRequestContext(s.programmer) }
func asSupervisor(s *school) RequestContext { return NewRequestContext(s.supervisor) }
func asTeacherA(s *school) RequestContext   { return NewRequestContext(s.teacherA) }

func form(pairs ...string) url.Values {
	values := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		values.Add(pairs[i], pairs[i+1])
	}
	return values
}

func idString(id uint) string {
	return fmt.Sprintf("%d", id)
}
