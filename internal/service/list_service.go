package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/repository"
)

const tracerName = "github.com/noah-isme/halqat/internal/service"

// ListKind names a management list.
type ListKind string

const (
	KindHalaqat    ListKind = "halaqat"
	KindCourses    ListKind = "courses"
	KindStudents   ListKind = "students"
	KindAttendance ListKind = "attendance"
	KindGrades     ListKind = "grades"
	KindUsers      ListKind = "users"
	KindActivity   ListKind = "activity"
)

// Params holds raw query-string values.
type Params map[string]string

// Get returns the trimmed value of key.
func (p Params) Get(key string) string {
	return strings.TrimSpace(p[key])
}

// ListResult is one rendered page of a list. Failed lists carry no rows and a message.
type ListResult[T any] struct {
	Rows         []T
	TotalCount   int64
	TotalPages   int
	Page         int
	PageSize     int
	Stats        QuickStats
	Failed       bool
	ErrorMessage string
}

var listFields = map[ListKind]listquery.Fields{
	KindHalaqat: {
		{Param: "search", Column: "halaqat.name,halaqat.location", Operator: listquery.OpSearch},
		{Param: "teacher_filter", Column: "halaqat.teacher_id", Operator: listquery.OpEq, Kind: listquery.KindInt},
		{Param: "level_filter", Column: "halaqat.level", Operator: listquery.OpEq},
		{Param: "gender_filter", Column: "halaqat.gender", Operator: listquery.OpEq},
		{Param: "status_filter", Column: "halaqat.status", Operator: listquery.OpEq},
	},
	KindCourses: {
		{Param: "search", Column: "courses.name,courses.description", Operator: listquery.OpSearch},
		{Param: "category_filter", Column: "courses.category", Operator: listquery.OpEq},
		{Param: "level_filter", Column: "courses.level", Operator: listquery.OpEq},
		{Param: "status_filter", Column: "courses.status", Operator: listquery.OpEq},
	},
	KindStudents: {
		{Param: "search", Column: "students.full_name,students.personal_id", Operator: listquery.OpSearch},
		{Param: "halqa_filter", Column: "students.halqa_id", Operator: listquery.OpEq, Kind: listquery.KindInt},
		{Param: "course_filter", Column: "students.course_id", Operator: listquery.OpEq, Kind: listquery.KindInt},
		{Param: "gender_filter", Column: "students.gender", Operator: listquery.OpEq},
		{Param: "status_filter", Column: "students.status", Operator: listquery.OpEq},
	},
	KindAttendance: {
		{Param: "halqa_filter", Column: "attendance.halqa_id", Operator: listquery.OpEq, Kind: listquery.KindInt},
		{Param: "student_filter", Column: "attendance.student_id", Operator: listquery.OpEq, Kind: listquery.KindInt},
		{Param: "status_filter", Column: "attendance.status", Operator: listquery.OpEq},
		{Param: "date_from", Column: "attendance.attended_on", Operator: listquery.OpGte, Kind: listquery.KindDate},
		{Param: "date_to", Column: "attendance.attended_on", Operator: listquery.OpLte, Kind: listquery.KindDate},
	},
	KindGrades: {
		{Param: "search", Column: "students.full_name", Operator: listquery.OpContains},
		{Param: "halqa_filter", Column: "grades.halqa_id", Operator: listquery.OpEq, Kind: listquery.KindInt},
		{Param: "student_filter", Column: "grades.student_id", Operator: listquery.OpEq, Kind: listquery.KindInt},
		{Param: "grade_type_filter", Column: "grades.grade_type", Operator: listquery.OpEq},
		{Param: "date_from", Column: "grades.graded_on", Operator: listquery.OpGte, Kind: listquery.KindDate},
		{Param: "date_to", Column: "grades.graded_on", Operator: listquery.OpLte, Kind: listquery.KindDate},
		{Param: "status_filter", Column: "grades.status", Operator: listquery.OpEq},
	},
	KindUsers: {
		{Param: "search", Column: "users.full_name,users.username,users.personal_code", Operator: listquery.OpSearch},
		{Param: "role_filter", Column: "users.role", Operator: listquery.OpEq},
		{Param: "status_filter", Column: "users.is_active", Operator: listquery.OpEq, Kind: listquery.KindBool},
	},
	KindActivity: {
		{Param: "action_filter", Column: "activity_logs.action", Operator: listquery.OpContains},
		{Param: "entity_filter", Column: "activity_logs.entity_type", Operator: listquery.OpEq},
		{Param: "actor_filter", Column: "activity_logs.actor_id", Operator: listquery.OpEq, Kind: listquery.KindInt},
	},
}

var statKeys = map[ListKind][]string{
	KindHalaqat:    {"active", "inactive", "capacity", "enrolled"},
	KindCourses:    {"active", "inactive", "enrolled"},
	KindStudents:   {"active", "inactive", "graduated", "transferred"},
	KindAttendance: {"today_present", "today_absent", "today_late", "week_present", "week_absent", "week_late"},
	KindGrades:     {"count", "average_percent", "this_week"},
	KindUsers:      {"programmer", "supervisor", "teacher", "active", "inactive"},
	KindActivity:   {},
}

var viewPermissions = map[ListKind]models.Permission{
	KindHalaqat:    models.PermViewHalaqat,
	KindCourses:    models.PermViewCourses,
	KindStudents:   models.PermViewStudents,
	KindAttendance: models.PermViewAttendance,
	KindGrades:     models.PermViewGrades,
	KindUsers:      models.PermManageUsers,
	KindActivity:   models.PermViewActivity,
}

// FieldsFor returns the filter declaration of kind.
func FieldsFor(kind ListKind) listquery.Fields {
	return listFields[kind]
}

func zeroStats(kind ListKind) QuickStats {
	stats := make(QuickStats, len(statKeys[kind]))
	for _, key := range statKeys[kind] {
		stats[key] = 0
	}
	return stats
}

// FormOptions feeds the select boxes of list filters and modal forms.
type FormOptions struct {
	Halaqat  []models.Halqa
	Courses  []models.Course
	Teachers []models.User
	Students []models.Student
}

// ListService renders the role-scoped, filtered and paginated management lists.
type ListService interface {
	Halaqat(ctx context.Context, rc RequestContext, params Params) ListResult[repository.HalqaRow]
	Courses(ctx context.Context, rc RequestContext, params Params) ListResult[repository.CourseRow]
	Students(ctx context.Context, rc RequestContext, params Params) ListResult[repository.StudentRow]
	Attendance(ctx context.Context, rc RequestContext, params Params) ListResult[repository.AttendanceRow]
	Grades(ctx context.Context, rc RequestContext, params Params) ListResult[repository.GradeRow]
	Users(ctx context.Context, rc RequestContext, params Params) ListResult[models.User]
	Activity(ctx context.Context, rc RequestContext, params Params) ListResult[models.ActivityLog]
	Options(ctx context.Context, rc RequestContext) FormOptions
}

type listService struct {
	store    *repository.Store
	cache    StatsCache
	pageSize int
	location *time.Location
	logger   zerolog.Logger
	now      func() time.Time
}

// NewListService constructs the list service.
func NewListService(store *repository.Store, cache StatsCache, pageSize int, location *time.Location, logger zerolog.Logger) ListService {
	if cache == nil {
		cache = noopStatsCache{}
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if location == nil {
		location = time.UTC
	}
	return &listService{
		store:    store,
		cache:    cache,
		pageSize: pageSize,
		location: location,
		logger:   logger.With().Str("component", "list_service").Logger(),
		now:      time.Now,
	}
}

func (s *listService) Halaqat(ctx context.Context, rc RequestContext, params Params) ListResult[repository.HalqaRow] {
	return runList(ctx, s, KindHalaqat, rc, params, s.store.Halaqat.List)
}

func (s *listService) Courses(ctx context.Context, rc RequestContext, params Params) ListResult[repository.CourseRow] {
	return runList(ctx, s, KindCourses, rc, params, s.store.Courses.List)
}

func (s *listService) Students(ctx context.Context, rc RequestContext, params Params) ListResult[repository.StudentRow] {
	return runList(ctx, s, KindStudents, rc, params, s.store.Students.List)
}

func (s *listService) Attendance(ctx context.Context, rc RequestContext, params Params) ListResult[repository.AttendanceRow] {
	return runList(ctx, s, KindAttendance, rc, params, s.store.Attendance.List)
}

func (s *listService) Grades(ctx context.Context, rc RequestContext, params Params) ListResult[repository.GradeRow] {
	return runList(ctx, s, KindGrades, rc, params, s.store.Grades.List)
}

func (s *listService) Users(ctx context.Context, rc RequestContext, params Params) ListResult[models.User] {
	return runList(ctx, s, KindUsers, rc, params, s.store.Users.List)
}

func (s *listService) Activity(ctx context.Context, rc RequestContext, params Params) ListResult[models.ActivityLog] {
	return runList(ctx, s, KindActivity, rc, params, s.store.Activity.List)
}

func runList[T any](ctx context.Context, s *listService, kind ListKind, rc RequestContext, params Params, fetch func(context.Context, listquery.Query) ([]T, int64, error)) ListResult[T] {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "list."+string(kind))
	defer span.End()

	page := listquery.ParsePage(params.Get("page"))
	result := ListResult[T]{Rows: []T{}, Page: page, PageSize: s.pageSize, TotalPages: 1}
	logger := s.logger.With().Str("kind", string(kind)).Uint("actor_id", rc.User.ID).Logger()

	if !rc.Has(viewPermissions[kind]) {
		result.Stats = zeroStats(kind)
		result.Failed = true
		result.ErrorMessage = ErrForbidden.Error()
		return result
	}

	result.Stats = s.quickStats(ctx, kind, rc)

	q, err := listquery.Build(scopeFor(kind, rc), FieldsFor(kind).Bind(params.Get), page, s.pageSize)
	if err != nil {
		logger.Info().Err(err).Msg("rejected list filters")
		result.Failed = true
		result.ErrorMessage = "One of the filters has an invalid value"
		return result
	}
	span.SetAttributes(attribute.Int("list.page", page), attribute.Bool("list.filtered", q.HasWhere()))

	rows, total, err := fetch(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_failed")
		logger.Error().Err(err).Msg("failed to list records")
		result.Failed = true
		result.ErrorMessage = genericFailureMessage
		return result
	}

	if rows != nil {
		result.Rows = rows
	}
	result.TotalCount = total
	result.TotalPages = listquery.TotalPages(total, s.pageSize)
	span.SetAttributes(attribute.Int64("list.total", total))
	return result
}

func (s *listService) quickStats(ctx context.Context, kind ListKind, rc RequestContext) QuickStats {
	if len(statKeys[kind]) == 0 {
		return QuickStats{}
	}

	scope := rc.ScopeKey()
	if cached, ok := s.cache.Get(ctx, kind, scope); ok {
		return cached
	}

	stats, err := s.computeStats(ctx, kind, rc)
	if err != nil {
		s.logger.Warn().Err(err).Str("kind", string(kind)).Msg("quick stats unavailable")
		return zeroStats(kind)
	}
	s.cache.Set(ctx, kind, scope, stats)
	return stats
}

func (s *listService) computeStats(ctx context.Context, kind ListKind, rc RequestContext) (QuickStats, error) {
	stats := zeroStats(kind)
	scopes := scopeFor(kind, rc)

	switch kind {
	case KindHalaqat:
		halaqat, err := s.store.Halaqat.Stats(ctx, scopes)
		if err != nil {
			return nil, err
		}
		stats["active"] = float64(halaqat.Active)
		stats["inactive"] = float64(halaqat.Inactive)
		stats["capacity"] = float64(halaqat.Capacity)
		stats["enrolled"] = float64(halaqat.Enrolled)
	case KindCourses:
		courses, err := s.store.Courses.Stats(ctx)
		if err != nil {
			return nil, err
		}
		stats["active"] = float64(courses.Active)
		stats["inactive"] = float64(courses.Inactive)
		stats["enrolled"] = float64(courses.Enrolled)
	case KindStudents:
		counts, err := s.store.Students.CountByStatus(ctx, scopes)
		if err != nil {
			return nil, err
		}
		for _, key := range statKeys[kind] {
			stats[key] = float64(counts[key])
		}
	case KindAttendance:
		today := calendarDay(s.now(), s.location)
		daily, err := s.store.Attendance.CountByStatus(ctx, scopes, today, today)
		if err != nil {
			return nil, err
		}
		weekly, err := s.store.Attendance.CountByStatus(ctx, scopes, weekStart(today), today)
		if err != nil {
			return nil, err
		}
		for _, status := range []models.AttendanceStatus{models.AttendancePresent, models.AttendanceAbsent, models.AttendanceLate} {
			stats["today_"+string(status)] = float64(daily[string(status)])
			stats["week_"+string(status)] = float64(weekly[string(status)])
		}
	case KindGrades:
		today := calendarDay(s.now(), s.location)
		grades, err := s.store.Grades.Stats(ctx, scopes, weekStart(today))
		if err != nil {
			return nil, err
		}
		stats["count"] = float64(grades.Count)
		stats["average_percent"] = grades.AveragePercent
		stats["this_week"] = float64(grades.ThisWeek)
	case KindUsers:
		roles, err := s.store.Users.CountByGroup(ctx, "role")
		if err != nil {
			return nil, err
		}
		for _, role := range []models.Role{models.RoleProgrammer, models.RoleSupervisor, models.RoleTeacher} {
			stats[string(role)] = float64(roles[string(role)])
		}
		flags, err := s.store.Users.CountByGroup(ctx, "is_active")
		if err != nil {
			return nil, err
		}
		for key, total := range flags {
			switch strings.ToLower(key) {
			case "1", "true", "t":
				stats["active"] += float64(total)
			default:
				stats["inactive"] += float64(total)
			}
		}
	}
	return stats, nil
}

func (s *listService) Options(ctx context.Context, rc RequestContext) FormOptions {
	options := FormOptions{}
	var err error

	if options.Halaqat, err = s.store.Halaqat.ListActive(ctx, scopeFor(KindHalaqat, rc)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to load halaqat options")
	}
	if options.Courses, err = s.store.Courses.ListActive(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to load course options")
	}
	if options.Students, err = s.store.Students.ListActive(ctx, scopeFor(KindStudents, rc)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to load student options")
	}
	if !rc.IsTeacher() {
		if options.Teachers, err = s.store.Users.ListActiveTeachers(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to load teacher options")
		}
	}
	return options
}
