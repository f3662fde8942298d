package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/halqat/internal/models"
)

func TestHalqaAddWritesAuditEntry(t *testing.T) {
	s := newSchool(t)
	svc := NewHalqaService(s.deps())

	result := svc.Handle(context.Background(), asSupervisor(s), "add", form(
		"name", "  Circle C ", "teacher_id", idString(s.teacherC.ID), "capacity", "12",
		"level", "intermediate", "notes", "<b>Evening</b> group",
	))
	require.True(t, result.Success, result.Message)
	require.NotZero(t, result.AffectedID)

	halqa, err := s.store.Halaqat.GetByID(context.Background(), result.AffectedID)
	require.NoError(t, err)
	require.Equal(t, "Circle C", halqa.Name)
	require.Equal(t, "Evening group", halqa.Notes)
	require.Equal(t, s.teacherC.ID, *halqa.TeacherID)

	var entry models.ActivityLog
	require.NoError(t, s.db.Where("action = ?", "halqa.add").First(&entry).Error)
	require.Equal(t, s.supervisor.ID, entry.ActorID)
	require.Equal(t, "supervisor", entry.ActorRole)
	require.Equal(t, result.AffectedID, *entry.EntityID)
}

func TestDuplicateNaturalKeysAreRejected(t *testing.T) {
	s := newSchool(t)
	ctx := context.Background()

	halqa := NewHalqaService(s.deps()).Handle(ctx, asProgrammer(s), "add", form("name", "circle a"))
	require.False(t, halqa.Success)
	require.Contains(t, halqa.Message, "already exists")
	require.Equal(t, int64(2), s.count(t, &models.Halqa{}, ""))

	course := NewCourseService(s.deps()).Handle(ctx, asProgrammer(s), "add", form(
		"name", "Juz Amma", "category", "memorization", "level", "beginner",
	))
	require.False(t, course.Success)
	require.Equal(t, int64(1), s.count(t, &models.Course{}, ""))

	student := NewStudentService(s.deps()).Handle(ctx, asProgrammer(s), "add", form(
		"personal_id", s.students[0].PersonalID, "full_name", "Copy", "halqa_id", idString(s.circleA.ID), "course_id", idString(s.course.ID),
	))
	require.False(t, student.Success)
	require.Contains(t, student.Message, s.students[0].PersonalID)
	require.Equal(t, int64(4), s.count(t, &models.Student{}, ""))

	require.Zero(t, s.count(t, &models.ActivityLog{}, ""))
}

func TestEditKeepsOwnNameButRejectsOthers(t *testing.T) {
	s := newSchool(t)
	svc := NewHalqaService(s.deps())
	ctx := context.Background()

	same := svc.Handle(ctx, asProgrammer(s), "edit", form("id", idString(s.circleA.ID), "name", "Circle A", "capacity", "5"))
	require.True(t, same.Success, same.Message)

	clash := svc.Handle(ctx, asProgrammer(s), "edit", form("id", idString(s.circleA.ID), "name", "Circle B"))
	require.False(t, clash.Success)

	tooSmall := svc.Handle(ctx, asProgrammer(s), "edit", form("id", idString(s.circleA.ID), "name", "Circle A", "capacity", "2"))
	require.False(t, tooSmall.Success)
	require.Contains(t, tooSmall.Message, "3 students")
}

func TestReferentialGuardBlocksDeactivation(t *testing.T) {
	s := newSchool(t)
	ctx := context.Background()

	result := NewHalqaService(s.deps()).Handle(ctx, asProgrammer(s), "delete", form("id", idString(s.circleA.ID)))
	require.False(t, result.Success)
	require.Contains(t, result.Message, "3 active students")
	halqa, err := s.store.Halaqat.GetByID(ctx, s.circleA.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, halqa.Status)

	course := NewCourseService(s.deps()).Handle(ctx, asProgrammer(s), "delete", form("id", idString(s.course.ID)))
	require.False(t, course.Success)
	require.Contains(t, course.Message, "4 active students")
}

func TestHalqaDeactivateAndActivate(t *testing.T) {
	s := newSchool(t)
	ctx := context.Background()
	require.NoError(t, s.db.Model(&models.Student{}).Where("halqa_id = ?", s.circleB.ID).Update("status", models.StatusTransferred).Error)
	svc := NewHalqaService(s.deps())

	require.True(t, svc.Handle(ctx, asProgrammer(s), "delete", form("id", idString(s.circleB.ID))).Success)
	again := svc.Handle(ctx, asProgrammer(s), "delete", form("id", idString(s.circleB.ID)))
	require.False(t, again.Success)
	require.True(t, svc.Handle(ctx, asProgrammer(s), "activate", form("id", idString(s.circleB.ID))).Success)
}

func TestHalqaChangesDropTeacherScopedStats(t *testing.T) {
	s := newSchool(t)
	ctx := context.Background()
	cache, mr := newTestCache(t)
	deps := s.deps()
	deps.Cache = cache

	scope := "teacher:" + idString(s.teacherA.ID)
	for _, kind := range []ListKind{KindHalaqat, KindStudents, KindAttendance, KindGrades, KindCourses} {
		cache.Set(ctx, kind, scope, QuickStats{"total": 1})
	}

	result := NewHalqaService(deps).Handle(ctx, asProgrammer(s), "add", form("name", "Circle Z", "teacher_id", idString(s.teacherA.ID)))
	require.True(t, result.Success, result.Message)

	for _, kind := range []ListKind{KindHalaqat, KindStudents, KindAttendance, KindGrades} {
		require.False(t, mr.Exists("stats:"+string(kind)+":"+scope), kind)
	}
	require.True(t, mr.Exists("stats:"+string(KindCourses)+":"+scope))
}

func TestUnknownActionAndMissingPermission(t *testing.T) {
	s := newSchool(t)
	svc := NewHalqaService(s.deps())

	unknown := svc.Handle(context.Background(), asProgrammer(s), "purge", form())
	require.False(t, unknown.Success)
	require.Equal(t, ErrUnknownAction.Error(), unknown.Message)

	forbidden := svc.Handle(context.Background(), asTeacherA(s), "add", form("name", "Mine"))
	require.False(t, forbidden.Success)
	require.Equal(t, ErrForbidden.Error(), forbidden.Message)
}

func TestStudentLifecycleTransitions(t *testing.T) {
	s := newSchool(t)
	svc := NewStudentService(s.deps())
	ctx := context.Background()
	id := idString(s.students[0].ID)

	graduated := svc.Handle(ctx, asProgrammer(s), "change_status", form("id", id, "status", "graduated"))
	require.True(t, graduated.Success, graduated.Message)

	back := svc.Handle(ctx, asProgrammer(s), "change_status", form("id", id, "status", "active"))
	require.False(t, back.Success)
	require.Contains(t, back.Message, "cannot move")

	bogus := svc.Handle(ctx, asProgrammer(s), "change_status", form("id", idString(s.students[1].ID), "status", "expelled"))
	require.False(t, bogus.Success)
}

func TestStudentAddValidatesPlacementAndDates(t *testing.T) {
	s := newSchool(t)
	svc := NewStudentService(s.deps())
	ctx := context.Background()

	badDate := svc.Handle(ctx, asProgrammer(s), "add", form(
		"personal_id", "NEW-1", "full_name", "New", "halqa_id", idString(s.circleA.ID), "course_id", idString(s.course.ID),
		"birth_date", "01/02/2015",
	))
	require.False(t, badDate.Success)
	require.Contains(t, badDate.Message, "YYYY-MM-DD")

	missingHalqa := svc.Handle(ctx, asProgrammer(s), "add", form(
		"personal_id", "NEW-1", "full_name", "New", "halqa_id", "9999", "course_id", idString(s.course.ID),
	))
	require.False(t, missingHalqa.Success)

	ok := svc.Handle(ctx, asProgrammer(s), "add", form(
		"personal_id", "NEW-1", "full_name", "New", "halqa_id", idString(s.circleA.ID), "course_id", idString(s.course.ID),
		"birth_date", "2015-02-01", "gender", "male",
	))
	require.True(t, ok.Success, ok.Message)
	student, err := s.store.Students.GetByID(ctx, ok.AffectedID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, student.Status)
	require.Equal(t, 2015, student.BirthDate.Year())
}

func bulkAttendance(s *school, statuses map[uint]string) url.Values {
	values := form("halqa_id", idString(s.circleA.ID), "attendance_date", "2024-01-10")
	for id, status := range statuses {
		values.Set("attendance["+idString(id)+"]", status)
	}
	return values
}

func TestBulkAttendanceOverwritesDay(t *testing.T) {
	s := newSchool(t)
	svc := NewAttendanceService(s.deps())
	ctx := context.Background()
	day := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)

	all := map[uint]string{}
	for _, student := range s.students[:3] {
		all[student.ID] = "present"
	}
	first := svc.Handle(ctx, asTeacherA(s), "bulk_attendance", bulkAttendance(s, all))
	require.True(t, first.Success, first.Message)

	records, err := s.store.Attendance.ForDay(ctx, s.circleA.ID, day)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, record := range records {
		require.Equal(t, models.AttendancePresent, record.Status)
	}

	second := svc.Handle(ctx, asTeacherA(s), "bulk_attendance", bulkAttendance(s, map[uint]string{s.students[1].ID: "absent"}))
	require.True(t, second.Success, second.Message)

	records, err = s.store.Attendance.ForDay(ctx, s.circleA.ID, day)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, s.students[1].ID, records[0].StudentID)
	require.Equal(t, models.AttendanceAbsent, records[0].Status)
}

func TestBulkAttendanceIsIdempotent(t *testing.T) {
	s := newSchool(t)
	svc := NewAttendanceService(s.deps())
	ctx := context.Background()
	day := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	sheet := map[uint]string{s.students[0].ID: "present", s.students[1].ID: "late", s.students[2].ID: "absent"}

	require.True(t, svc.Handle(ctx, asProgrammer(s), "bulk_attendance", bulkAttendance(s, sheet)).Success)
	once, err := s.store.Attendance.ForDay(ctx, s.circleA.ID, day)
	require.NoError(t, err)

	require.True(t, svc.Handle(ctx, asProgrammer(s), "bulk_attendance", bulkAttendance(s, sheet)).Success)
	twice, err := s.store.Attendance.ForDay(ctx, s.circleA.ID, day)
	require.NoError(t, err)

	require.Len(t, twice, len(once))
	for i := range once {
		require.Equal(t, once[i].StudentID, twice[i].StudentID)
		require.Equal(t, once[i].Status, twice[i].Status)
	}
}

func TestBulkAttendanceRejectsForeignHalqaAndStudents(t *testing.T) {
	s := newSchool(t)
	svc := NewAttendanceService(s.deps())
	ctx := context.Background()

	foreign := form("halqa_id", idString(s.circleB.ID), "attendance_date", "2024-01-10", "attendance["+idString(s.students[3].ID)+"]", "present")
	result := svc.Handle(ctx, asTeacherA(s), "bulk_attendance", foreign)
	require.False(t, result.Success)
	require.Equal(t, ErrForbidden.Error(), result.Message)

	stranger := bulkAttendance(s, map[uint]string{s.students[3].ID: "present"})
	result = svc.Handle(ctx, asTeacherA(s), "bulk_attendance", stranger)
	require.False(t, result.Success)
	require.Zero(t, s.count(t, &models.Attendance{}, ""))
}

func TestBulkGradesRollBackOnInvalidRow(t *testing.T) {
	s := newSchool(t)
	svc := NewGradeService(s.deps())

	values := form("halqa_id", idString(s.circleA.ID), "grade_type", "memorization", "max_grade", "100", "graded_on", "2024-01-10")
	values.Set("grades["+idString(s.students[0].ID)+"]", "80")
	values.Set("grades["+idString(s.students[1].ID)+"]", "150")
	values.Set("grades["+idString(s.students[2].ID)+"]", "90")

	result := svc.Handle(context.Background(), asTeacherA(s), "bulk_grades", values)
	require.False(t, result.Success)
	require.Contains(t, result.Message, "between 0 and 100")
	require.Zero(t, s.count(t, &models.Grade{}, ""))
	require.Zero(t, s.count(t, &models.ActivityLog{}, ""))

	for _, bad := range []string{"NaN", "+Inf"} {
		values.Set("grades["+idString(s.students[1].ID)+"]", bad)
		result = svc.Handle(context.Background(), asTeacherA(s), "bulk_grades", values)
		require.False(t, result.Success, bad)
		require.Contains(t, result.Message, "between 0 and 100", bad)
		require.Zero(t, s.count(t, &models.Grade{}, ""))
	}

	values.Set("grades["+idString(s.students[1].ID)+"]", "95")
	result = svc.Handle(context.Background(), asTeacherA(s), "bulk_grades", values)
	require.True(t, result.Success, result.Message)
	require.Equal(t, int64(3), s.count(t, &models.Grade{}, "halqa_id = ?", s.circleA.ID))
	require.Equal(t, int64(1), s.count(t, &models.ActivityLog{}, "action = ?", "grade.bulk_grades"))
}

func TestGradeAddSnapshotsHalqaAndChecksRange(t *testing.T) {
	s := newSchool(t)
	svc := NewGradeService(s.deps())
	ctx := context.Background()

	over := svc.Handle(ctx, asProgrammer(s), "add", form(
		"student_id", idString(s.students[3].ID), "grade_type", "exam", "grade_value", "11", "max_grade", "10", "graded_on", "2024-01-10",
	))
	require.False(t, over.Success)

	added := svc.Handle(ctx, asProgrammer(s), "add", form(
		"student_id", idString(s.students[3].ID), "grade_type", "exam", "grade_value", "9.5", "max_grade", "10", "graded_on", "2024-01-10",
	))
	require.True(t, added.Success, added.Message)
	grade, err := s.store.Grades.GetByID(ctx, added.AffectedID)
	require.NoError(t, err)
	require.Equal(t, s.circleB.ID, grade.HalqaID)
	require.InDelta(t, 95.0, grade.Percent(), 0.001)

	foreign := svc.Handle(ctx, asTeacherA(s), "delete", form("id", idString(grade.ID)))
	require.False(t, foreign.Success)
	require.Equal(t, ErrForbidden.Error(), foreign.Message)

	removed := svc.Handle(ctx, asProgrammer(s), "delete", form("id", idString(grade.ID)))
	require.True(t, removed.Success, removed.Message)
}

func TestUserManagementRules(t *testing.T) {
	s := newSchool(t)
	svc := NewUserService(s.deps())
	ctx := context.Background()

	programmer := svc.Handle(ctx, asSupervisor(s), "add", form(
		"role", "programmer", "full_name", "Another Root", "username", "root2", "password", "password123",
	))
	require.False(t, programmer.Success)
	require.Equal(t, ErrForbidden.Error(), programmer.Message)

	noCode := svc.Handle(ctx, asSupervisor(s), "add", form("role", "teacher", "full_name", "New Teacher", "password", "password123"))
	require.False(t, noCode.Success)
	require.Contains(t, noCode.Message, "Personal code")

	teacher := svc.Handle(ctx, asSupervisor(s), "add", form(
		"role", "teacher", "full_name", "New Teacher", "personal_code", "T-400", "username", "ignored", "password", "password123",
	))
	require.True(t, teacher.Success, teacher.Message)
	created, err := s.store.Users.GetByID(ctx, teacher.AffectedID)
	require.NoError(t, err)
	require.Nil(t, created.Username)
	require.Equal(t, "T-400", *created.PersonalCode)

	duplicate := svc.Handle(ctx, asSupervisor(s), "add", form(
		"role", "teacher", "full_name", "Clone", "personal_code", "T-400", "password", "password123",
	))
	require.False(t, duplicate.Success)

	self := svc.Handle(ctx, asSupervisor(s), "toggle_active", form("id", idString(s.supervisor.ID)))
	require.False(t, self.Success)

	toggled := svc.Handle(ctx, asSupervisor(s), "toggle_active", form("id", idString(teacher.AffectedID)))
	require.True(t, toggled.Success, toggled.Message)
	created, err = s.store.Users.GetByID(ctx, teacher.AffectedID)
	require.NoError(t, err)
	require.False(t, created.IsActive)

	reset := svc.Handle(ctx, asSupervisor(s), "reset_password", form("id", idString(s.programmer.ID), "password", "newpassword"))
	require.False(t, reset.Success)

	var entry models.ActivityLog
	require.NoError(t, s.db.Where("action = ?", "user.add").First(&entry).Error)
	require.NotContains(t, entry.Metadata, "password")
}
