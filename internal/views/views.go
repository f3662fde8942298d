package views

import (
	"embed"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/template/html/v2"
)

//go:embed *.html partials/*.html
var files embed.FS

// New returns the template engine over the embedded page templates.
func New() *html.Engine {
	engine := html.NewFileSystem(http.FS(files), ".html")
	engine.AddFuncMap(map[string]interface{}{
		"date":    formatDate,
		"dateptr": formatDatePtr,
		"deref":   deref,
		"derefID": derefID,
		"num":     formatNumber,
		"label":   label,
	})
	return engine
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefID(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}

// formatNumber prints integers without decimals and everything else with one.
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// label turns stored values such as "bulk_grades" into "Bulk grades".
func label(value interface{}) string {
	s := strings.ReplaceAll(fmt.Sprint(value), "_", " ")
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
