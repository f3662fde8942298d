package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/halqat/internal/config"
	"github.com/noah-isme/halqat/internal/middleware"
	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/repository"
	"github.com/noah-isme/halqat/internal/service"
	"github.com/noah-isme/halqat/internal/utils"
	"github.com/noah-isme/halqat/internal/views"
)

const testSecret = "handler-test-secret"

type testEnv struct {
	app        *fiber.App
	db         *gorm.DB
	auth       service.AuthService
	programmer models.User
	teacherA   models.User
	circleA    models.Halqa
	circleB    models.Halqa
}

func strPtr(s string) *string { return &s }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	env := &testEnv{db: db}
	env.programmer = models.User{Username: strPtr("root"), PasswordHash: string(hash), Role: models.RoleProgrammer, FullName: "Root", IsActive: true}
	env.teacherA = models.User{PersonalCode: strPtr("T-100"), PasswordHash: string(hash), Role: models.RoleTeacher, FullName: "Teacher A", IsActive: true}
	teacherB := models.User{PersonalCode: strPtr("T-200"), PasswordHash: string(hash), Role: models.RoleTeacher, FullName: "Teacher B", IsActive: true}
	for _, user := range []*models.User{&env.programmer, &env.teacherA, &teacherB} {
		require.NoError(t, db.Create(user).Error)
	}

	env.circleA = models.Halqa{Name: "Circle A", TeacherID: &env.teacherA.ID, Capacity: 10, Status: models.StatusActive}
	env.circleB = models.Halqa{Name: "Circle B", TeacherID: &teacherB.ID, Capacity: 10, Status: models.StatusActive}
	require.NoError(t, db.Create(&env.circleA).Error)
	require.NoError(t, db.Create(&env.circleB).Error)

	course := models.Course{Name: "Juz Amma", Category: models.CourseCategoryMemorization, Level: models.LevelBeginner, Status: models.StatusActive}
	require.NoError(t, db.Create(&course).Error)
	for i, halqa := range []models.Halqa{env.circleA, env.circleA, env.circleB} {
		student := models.Student{
			PersonalID: fmt.Sprintf("S-%03d", i+1),
			FullName:   fmt.Sprintf("Pupil %d", i+1),
			HalqaID:    halqa.ID,
			CourseID:   course.ID,
			EnrolledOn: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			Status:     models.StatusActive,
		}
		require.NoError(t, db.Create(&student).Error)
	}

	logger := zerolog.Nop()
	store := repository.NewStore(db)
	validate := service.NewValidator()
	cache := service.NewStatsCache(nil, 0, logger)
	mutationDeps := service.MutationDeps{Store: store, Validator: validate, Cache: cache, Location: time.UTC, Logger: logger}
	env.auth = service.NewAuthService(store.Users, validate, testSecret, time.Hour, logger)
	deps := PageDeps{AppName: "Halqat", Lists: service.NewListService(store, cache, 20, time.UTC, logger), Location: time.UTC, Logger: logger}

	app := fiber.New(fiber.Config{Views: views.New(), ErrorHandler: ErrorHandler("Halqat", logger)})
	app.Get("/health", HealthCheck(config.Config{AppName: "Halqat", AppEnv: "test"}, db))
	NewAuthHandler(env.auth, service.NewActivityService(store.Activity, logger), "Halqat", false, logger).
		Register(app, func(c *fiber.Ctx) error { return c.Next() })
	protected := app.Group("", middleware.Session(env.auth, logger))
	for _, page := range []*PageHandler{
		NewHalaqatPage(deps, service.NewHalqaService(mutationDeps)),
		NewAttendancePage(deps, service.NewAttendanceService(mutationDeps)),
		NewUsersPage(deps, service.NewUserService(mutationDeps)),
		NewActivityPage(deps),
	} {
		page.Register(protected)
	}
	NewReportHandler(service.NewReportService(store.Reports, time.UTC, logger), deps).Register(protected)

	env.app = app
	return env
}

func (env *testEnv) session(t *testing.T, identifier string) *http.Cookie {
	t.Helper()
	session, err := env.auth.Login(context.Background(), url.Values{"identifier": {identifier}, "password": {"password123"}})
	require.NoError(t, err)
	return &http.Cookie{Name: middleware.SessionCookie, Value: session.Token}
}

func (env *testEnv) do(t *testing.T, req *http.Request, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func responseCookie(resp *http.Response, name string) *http.Cookie {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestHalaqatPageRendersRowsAndStats(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/halaqat", nil), env.session(t, "root"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	require.Contains(t, body, "Circle A")
	require.Contains(t, body, "Circle B")
	require.Contains(t, body, "Active halaqat")
	require.Contains(t, body, `href="/users"`)
}

func TestTeacherSeesOnlyOwnHalaqat(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/halaqat?status_filter=active", nil), env.session(t, "T-100"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	require.Contains(t, body, "Circle A")
	require.NotContains(t, body, "Circle B")
	require.NotContains(t, body, `href="/users"`)
}

func TestPageRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/halaqat", nil))
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get(fiber.HeaderLocation))
}

func TestTeacherIsForbiddenFromUsersPage(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/users", nil), env.session(t, "T-100"))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "permission")
}

func TestSubmitRedirectsBackWithFlash(t *testing.T) {
	env := newTestEnv(t)
	session := env.session(t, "root")

	resp := env.do(t, postForm("/halaqat?status_filter=active", url.Values{
		"action":     {"add"},
		"name":       {"Circle C"},
		"teacher_id": {fmt.Sprint(env.teacherA.ID)},
		"capacity":   {"12"},
	}), session)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/halaqat?status_filter=active", resp.Header.Get(fiber.HeaderLocation))

	flash := responseCookie(resp, utils.FlashCookie)
	require.NotNil(t, flash)

	var count int64
	require.NoError(t, env.db.Model(&models.Halqa{}).Where("name = ?", "Circle C").Count(&count).Error)
	require.Equal(t, int64(1), count)

	follow := env.do(t, httptest.NewRequest(http.MethodGet, "/halaqat", nil), session, flash)
	body := readBody(t, follow)
	require.Contains(t, body, "Halqa added successfully")
	require.Contains(t, body, "alert-success")
}

func TestRejectedSubmitFlashesError(t *testing.T) {
	env := newTestEnv(t)
	session := env.session(t, "root")

	resp := env.do(t, postForm("/halaqat", url.Values{"action": {"add"}, "name": {"Circle A"}}), session)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	follow := env.do(t, httptest.NewRequest(http.MethodGet, "/halaqat", nil), session, responseCookie(resp, utils.FlashCookie))
	body := readBody(t, follow)
	require.Contains(t, body, "alert-danger")
	require.Contains(t, body, "already exists")
}

func TestAttendanceSheetListsRosterOfSelectedHalqa(t *testing.T) {
	env := newTestEnv(t)
	session := env.session(t, "T-100")

	resp := env.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/attendance?halqa_filter=%d", env.circleA.ID), nil), session)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	require.Contains(t, body, "Attendance sheet for Circle A")
	require.Contains(t, body, "Pupil 1")

	foreign := env.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/attendance?halqa_filter=%d", env.circleB.ID), nil), session)
	require.NotContains(t, readBody(t, foreign), "Attendance sheet for")
}

func TestActivityPageShowsSignIns(t *testing.T) {
	env := newTestEnv(t)

	login := env.do(t, postForm("/login", url.Values{"identifier": {"root"}, "password": {"password123"}}))
	require.Equal(t, fiber.StatusSeeOther, login.StatusCode)
	require.Equal(t, "/", login.Header.Get(fiber.HeaderLocation))
	session := responseCookie(login, middleware.SessionCookie)
	require.NotNil(t, session)
	require.NotEmpty(t, session.Value)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/activity?action_filter=session.login", nil), session)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "<td>session.login</td>")
}

func TestLoginFailureAndLogout(t *testing.T) {
	env := newTestEnv(t)

	page := env.do(t, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, fiber.StatusOK, page.StatusCode)
	require.Contains(t, readBody(t, page), `name="identifier"`)

	failed := env.do(t, postForm("/login", url.Values{"identifier": {"root"}, "password": {"wrong"}}))
	require.Equal(t, fiber.StatusSeeOther, failed.StatusCode)
	require.Equal(t, "/login", failed.Header.Get(fiber.HeaderLocation))
	require.Nil(t, responseCookie(failed, middleware.SessionCookie))

	logout := env.do(t, postForm("/logout", url.Values{}), env.session(t, "root"))
	require.Equal(t, fiber.StatusSeeOther, logout.StatusCode)
	cleared := responseCookie(logout, middleware.SessionCookie)
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)

	var entries int64
	require.NoError(t, env.db.Model(&models.ActivityLog{}).Where("action = ?", "session.logout").Count(&entries).Error)
	require.Equal(t, int64(1), entries)
}

func TestReportEndpointAnswersJSON(t *testing.T) {
	env := newTestEnv(t)
	session := env.session(t, "root")

	resp := env.do(t, postForm("/references", url.Values{"action": {"get_report"}, "report_type": {"halqa_summary"}}), session)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	require.Contains(t, body, `"success":true`)
	require.Contains(t, body, "Circle A")

	bad := env.do(t, postForm("/references", url.Values{"action": {"get_report"}, "report_type": {"nope"}}), session)
	require.Equal(t, fiber.StatusBadRequest, bad.StatusCode)
	require.Contains(t, readBody(t, bad), `"success":false`)

	anonymous := env.do(t, postForm("/references", url.Values{"action": {"get_report"}}))
	require.Equal(t, fiber.StatusUnauthorized, anonymous.StatusCode)
}

func TestHealthReportsDatabase(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Contains(t, readBody(t, resp), `"database":"ok"`)
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	app := fiber.New(fiber.Config{Views: views.New(), ErrorHandler: ErrorHandler("Halqat", zerolog.Nop())})
	app.Get("/boom", func(c *fiber.Ctx) error { return fmt.Errorf("pq: connection refused") })

	page, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, page.StatusCode)
	body := readBody(t, page)
	require.NotContains(t, body, "connection refused")
	require.Contains(t, body, "unexpected error")

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	jsonResp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, jsonResp.StatusCode)
	require.Contains(t, readBody(t, jsonResp), `"success":false`)
}
