package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/halqat/internal/middleware"
	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/service"
	"github.com/noah-isme/halqat/internal/utils"
)

type pageLink struct {
	Number  int
	URL     string
	Current bool
}

// listView is one page of rows as the templates see it.
type listView struct {
	Rows         interface{}
	TotalCount   int64
	Page         int
	TotalPages   int
	Stats        service.QuickStats
	Failed       bool
	ErrorMessage string
	Links        []pageLink
	PrevURL      string
	NextURL      string
}

func viewOf[T any](result service.ListResult[T]) listView {
	return listView{
		Rows:         result.Rows,
		TotalCount:   result.TotalCount,
		Page:         result.Page,
		TotalPages:   result.TotalPages,
		Stats:        result.Stats,
		Failed:       result.Failed,
		ErrorMessage: result.ErrorMessage,
	}
}

// maxPageLinks bounds the numbered links around the current page.
const maxPageLinks = 7

func (v *listView) paginate(path string, params service.Params) {
	first := v.Page - maxPageLinks/2
	if first < 1 {
		first = 1
	}
	last := first + maxPageLinks - 1
	if last > v.TotalPages {
		last = v.TotalPages
	}
	for number := first; number <= last; number++ {
		v.Links = append(v.Links, pageLink{Number: number, URL: pageURL(path, params, number), Current: number == v.Page})
	}
	if v.Page > 1 {
		v.PrevURL = pageURL(path, params, v.Page-1)
	}
	if v.Page < v.TotalPages {
		v.NextURL = pageURL(path, params, v.Page+1)
	}
}

type statCard struct {
	Label string
	Value float64
}

type statLabel struct {
	key   string
	label string
}

type choices struct {
	Levels             []string
	Genders            []string
	Statuses           []string
	StudentStatuses    []string
	Categories         []string
	GradeTypes         []string
	AttendanceStatuses []string
	Roles              []string
	Entities           []string
}

var formChoices = choices{
	Levels:             []string{models.LevelBeginner, models.LevelIntermediate, models.LevelAdvanced},
	Genders:            []string{models.GenderMale, models.GenderFemale},
	Statuses:           statusNames(models.HalqaLifecycle),
	StudentStatuses:    statusNames(models.StudentLifecycle),
	Categories:         []string{models.CourseCategoryMemorization, models.CourseCategoryRevision, models.CourseCategoryTajweed, models.CourseCategoryTafsir},
	GradeTypes:         []string{models.GradeTypeMemorization, models.GradeTypeRevision, models.GradeTypeTajweed, models.GradeTypeRecitation, models.GradeTypeExam},
	AttendanceStatuses: []string{string(models.AttendancePresent), string(models.AttendanceAbsent), string(models.AttendanceLate)},
	Roles:              []string{string(models.RoleTeacher), string(models.RoleSupervisor), string(models.RoleProgrammer)},
	Entities:           []string{"halqa", "course", "student", "attendance", "grade", "user", "session"},
}

func statusNames(lifecycle models.Lifecycle) []string {
	statuses := lifecycle.Statuses()
	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		names = append(names, string(status))
	}
	return names
}

// listPage is the data of every management template.
type listPage struct {
	basePage
	Path        string
	FormAction  string
	Filters     service.Params
	Options     service.FormOptions
	Choices     choices
	List        listView
	StatCards   []statCard
	CanManage   bool
	Roster      []models.Student
	RosterHalqa models.Halqa
	Today       string
}

type pageConfig struct {
	kind        service.ListKind
	path        string
	title       string
	template    string
	view        models.Permission
	manage      models.Permission
	stats       []statLabel
	withOptions bool
	withRoster  bool
}

// PageHandler serves one management page: GET renders the filtered list, POST runs the
// submitted action and redirects back with a flash message.
type PageHandler struct {
	cfg       pageConfig
	appName   string
	lists     service.ListService
	mutations service.MutationHandler
	location  *time.Location
	logger    zerolog.Logger
	fetch     func(ctx context.Context, rc service.RequestContext, params service.Params) listView
}

// PageDeps groups what every page handler needs.
type PageDeps struct {
	AppName  string
	Lists    service.ListService
	Location *time.Location
	Logger   zerolog.Logger
}

func newPageHandler(deps PageDeps, cfg pageConfig, mutations service.MutationHandler, fetch func(context.Context, service.RequestContext, service.Params) listView) *PageHandler {
	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	return &PageHandler{
		cfg:       cfg,
		appName:   deps.AppName,
		lists:     deps.Lists,
		mutations: mutations,
		location:  location,
		logger:    deps.Logger.With().Str("component", string(cfg.kind)+"_page").Logger(),
		fetch:     fetch,
	}
}

// NewHalaqatPage constructs the study circle page.
func NewHalaqatPage(deps PageDeps, mutations service.MutationHandler) *PageHandler {
	return newPageHandler(deps, pageConfig{
		kind: service.KindHalaqat, path: "/halaqat", title: "Halaqat", template: "halaqat",
		view: models.PermViewHalaqat, manage: models.PermManageHalaqat, withOptions: true,
		stats: []statLabel{{"active", "Active halaqat"}, {"inactive", "Inactive halaqat"}, {"capacity", "Total capacity"}, {"enrolled", "Enrolled students"}},
	}, mutations, func(ctx context.Context, rc service.RequestContext, params service.Params) listView {
		return viewOf(deps.Lists.Halaqat(ctx, rc, params))
	})
}

// NewCoursesPage constructs the course page.
func NewCoursesPage(deps PageDeps, mutations service.MutationHandler) *PageHandler {
	return newPageHandler(deps, pageConfig{
		kind: service.KindCourses, path: "/courses", title: "Courses", template: "courses",
		view: models.PermViewCourses, manage: models.PermManageCourses,
		stats: []statLabel{{"active", "Active courses"}, {"inactive", "Inactive courses"}, {"enrolled", "Students enrolled"}},
	}, mutations, func(ctx context.Context, rc service.RequestContext, params service.Params) listView {
		return viewOf(deps.Lists.Courses(ctx, rc, params))
	})
}

// NewStudentsPage constructs the student page.
func NewStudentsPage(deps PageDeps, mutations service.MutationHandler) *PageHandler {
	return newPageHandler(deps, pageConfig{
		kind: service.KindStudents, path: "/students", title: "Students", template: "students",
		view: models.PermViewStudents, manage: models.PermManageStudents, withOptions: true,
		stats: []statLabel{{"active", "Active"}, {"inactive", "Inactive"}, {"graduated", "Graduated"}, {"transferred", "Transferred"}},
	}, mutations, func(ctx context.Context, rc service.RequestContext, params service.Params) listView {
		return viewOf(deps.Lists.Students(ctx, rc, params))
	})
}

// NewAttendancePage constructs the attendance page with its day sheet.
func NewAttendancePage(deps PageDeps, mutations service.MutationHandler) *PageHandler {
	return newPageHandler(deps, pageConfig{
		kind: service.KindAttendance, path: "/attendance", title: "Attendance", template: "attendance",
		view: models.PermViewAttendance, manage: models.PermManageAttendance, withOptions: true, withRoster: true,
		stats: []statLabel{
			{"today_present", "Present today"}, {"today_absent", "Absent today"}, {"today_late", "Late today"},
			{"week_present", "Present this week"}, {"week_absent", "Absent this week"}, {"week_late", "Late this week"},
		},
	}, mutations, func(ctx context.Context, rc service.RequestContext, params service.Params) listView {
		return viewOf(deps.Lists.Attendance(ctx, rc, params))
	})
}

// NewGradesPage constructs the grade page with its grade sheet.
func NewGradesPage(deps PageDeps, mutations service.MutationHandler) *PageHandler {
	return newPageHandler(deps, pageConfig{
		kind: service.KindGrades, path: "/grades", title: "Grades", template: "grades",
		view: models.PermViewGrades, manage: models.PermManageGrades, withOptions: true, withRoster: true,
		stats: []statLabel{{"count", "Grades"}, {"average_percent", "Average %"}, {"this_week", "This week"}},
	}, mutations, func(ctx context.Context, rc service.RequestContext, params service.Params) listView {
		return viewOf(deps.Lists.Grades(ctx, rc, params))
	})
}

// NewUsersPage constructs the account management page.
func NewUsersPage(deps PageDeps, mutations service.MutationHandler) *PageHandler {
	return newPageHandler(deps, pageConfig{
		kind: service.KindUsers, path: "/users", title: "Users", template: "users",
		view: models.PermManageUsers, manage: models.PermManageUsers,
		stats: []statLabel{{"programmer", "Programmers"}, {"supervisor", "Supervisors"}, {"teacher", "Teachers"}, {"active", "Active"}, {"inactive", "Inactive"}},
	}, mutations, func(ctx context.Context, rc service.RequestContext, params service.Params) listView {
		return viewOf(deps.Lists.Users(ctx, rc, params))
	})
}

// NewActivityPage constructs the read-only audit log page.
func NewActivityPage(deps PageDeps) *PageHandler {
	return newPageHandler(deps, pageConfig{
		kind: service.KindActivity, path: "/activity", title: "Activity log", template: "activity",
		view: models.PermViewActivity,
	}, nil, func(ctx context.Context, rc service.RequestContext, params service.Params) listView {
		return viewOf(deps.Lists.Activity(ctx, rc, params))
	})
}

// Register mounts the page on r.
func (h *PageHandler) Register(r fiber.Router) {
	r.Get(h.cfg.path, middleware.RequirePermission(h.cfg.view), h.Show)
	if h.mutations != nil {
		r.Post(h.cfg.path, h.Submit)
	}
}

// Show renders the list page.
func (h *PageHandler) Show(c *fiber.Ctx) error {
	rc := requestContext(c)
	params := listParams(c, service.FieldsFor(h.cfg.kind))
	ctx := c.UserContext()

	list := h.fetch(ctx, rc, params)
	list.paginate(h.cfg.path, params)

	page := listPage{
		basePage:   newBasePage(c, h.appName, h.cfg.title),
		Path:       h.cfg.path,
		FormAction: pageURL(h.cfg.path, params, list.Page),
		Filters:    params,
		Choices:    formChoices,
		List:       list,
		CanManage:  h.mutations != nil && rc.Has(h.cfg.manage),
		Today:      time.Now().In(h.location).Format("2006-01-02"),
	}
	for _, stat := range h.cfg.stats {
		page.StatCards = append(page.StatCards, statCard{Label: stat.label, Value: list.Stats[stat.key]})
	}
	if h.cfg.withOptions {
		page.Options = h.lists.Options(ctx, rc)
	}
	if h.cfg.withRoster && page.CanManage {
		page.RosterHalqa, page.Roster = roster(page.Options, params.Get("halqa_filter"))
	}
	if list.Failed {
		requestLogger(h.logger, c).Warn().Str("kind", string(h.cfg.kind)).Msg("list rendered without rows")
	}

	return c.Render(h.cfg.template, page, layout)
}

// Submit runs the posted action and redirects back to the list.
func (h *PageHandler) Submit(c *fiber.Ctx) error {
	form := formValues(c)
	result := h.mutations.Handle(c.UserContext(), requestContext(c), form.Get("action"), form)
	if !result.Success {
		requestLogger(h.logger, c).Info().Str("action", form.Get("action")).Str("message", result.Message).Msg("action refused")
	}
	return utils.RedirectWithFlash(c, c.OriginalURL(), result.Success, result.Message)
}

// roster picks the visible halqa selected in the filter and its active students.
func roster(options service.FormOptions, rawHalqaID string) (models.Halqa, []models.Student) {
	id, err := strconv.ParseUint(rawHalqaID, 10, 64)
	if err != nil || id == 0 {
		return models.Halqa{}, nil
	}
	for _, halqa := range options.Halaqat {
		if halqa.ID != uint(id) {
			continue
		}
		students := make([]models.Student, 0)
		for _, student := range options.Students {
			if student.HalqaID == halqa.ID {
				students = append(students, student)
			}
		}
		return halqa, students
	}
	return models.Halqa{}, nil
}
