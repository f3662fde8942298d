package handler

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/middleware"
	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/service"
	"github.com/noah-isme/halqat/internal/utils"
)

const layout = "layout"

type navItem struct {
	Path   string
	Label  string
	Active bool
}

var navigation = []struct {
	path       string
	label      string
	permission models.Permission
}{
	{"/halaqat", "Halaqat", models.PermViewHalaqat},
	{"/courses", "Courses", models.PermViewCourses},
	{"/students", "Students", models.PermViewStudents},
	{"/attendance", "Attendance", models.PermViewAttendance},
	{"/grades", "Grades", models.PermViewGrades},
	{"/reports", "Reports", models.PermViewReports},
	{"/users", "Users", models.PermManageUsers},
	{"/activity", "Activity", models.PermViewActivity},
}

// basePage is the data the layout needs on every page.
type basePage struct {
	AppName string
	Title   string
	User    models.User
	Nav     []navItem
	Flash   *utils.Flash
	CSRF    string
}

func newBasePage(c *fiber.Ctx, appName, title string) basePage {
	page := basePage{AppName: appName, Title: title, CSRF: middleware.CSRFToken(c)}
	if flash, ok := utils.PopFlash(c); ok {
		page.Flash = &flash
	}
	rc, ok := middleware.RequestContextFrom(c)
	if !ok {
		return page
	}
	page.User = rc.User
	for _, item := range navigation {
		if rc.Has(item.permission) {
			page.Nav = append(page.Nav, navItem{Path: item.path, Label: item.label, Active: strings.HasPrefix(c.Path(), item.path)})
		}
	}
	return page
}

// requestContext returns the caller's context, set by the session middleware on every
// protected route.
func requestContext(c *fiber.Ctx) service.RequestContext {
	rc, _ := middleware.RequestContextFrom(c)
	return rc
}

// listParams copies the declared filters and the page number out of the query string.
func listParams(c *fiber.Ctx, fields listquery.Fields) service.Params {
	params := service.Params{"page": strings.TrimSpace(c.Query("page"))}
	for _, field := range fields {
		if value := strings.TrimSpace(c.Query(field.Param)); value != "" {
			params[field.Param] = value
		}
	}
	return params
}

// formValues collects the url-encoded POST body, including repeated and indexed keys.
func formValues(c *fiber.Ctx) url.Values {
	values := url.Values{}
	c.Request().PostArgs().VisitAll(func(key, value []byte) {
		values.Add(string(key), string(value))
	})
	return values
}

func pageURL(path string, params service.Params, page int) string {
	query := url.Values{}
	for key, value := range params {
		if key != "page" && value != "" {
			query.Set(key, value)
		}
	}
	if page > 1 {
		query.Set("page", strconv.Itoa(page))
	}
	if encoded := query.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		ctx := base.With()
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			ctx = ctx.Str("correlation_id", correlation)
		}
		if rc, ok := middleware.RequestContextFrom(c); ok {
			ctx = ctx.Uint("user_id", rc.User.ID)
		}
		logger = ctx.Logger()
	}
	return &logger
}
