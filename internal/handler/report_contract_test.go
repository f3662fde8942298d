package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/halqat/internal/dto"
	"github.com/noah-isme/halqat/internal/repository"
	"github.com/noah-isme/halqat/internal/service"
)

type stubReportService struct {
	data interface{}
	err  error
	got  dto.ReportRequest
}

func (s *stubReportService) Generate(_ context.Context, _ service.RequestContext, req dto.ReportRequest) (interface{}, error) {
	s.got = req
	return s.data, s.err
}

func compileReportSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "report_response.schema.json"))
	require.NoError(t, err)

	schema, err := jsonschema.NewCompiler().Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func serveReport(t *testing.T, reports service.ReportService, values url.Values) (int, interface{}) {
	t.Helper()
	app := fiber.New()
	NewReportHandler(reports, PageDeps{AppName: "Halqat", Logger: zerolog.Nop()}).Register(app)

	resp, err := app.Test(postForm("/references", values))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(raw, &payload))
	return resp.StatusCode, payload
}

func TestReportResponsesMatchContract(t *testing.T) {
	schema := compileReportSchema(t)

	cases := map[string]interface{}{
		service.ReportAttendanceSummary: []service.AttendanceReportRow{{
			AttendanceSummaryRow: repository.AttendanceSummaryRow{StudentID: 1, StudentName: "Pupil 1", HalqaName: "Circle A", Present: 2, Late: 1, Total: 3},
			AttendanceRate:       100,
		}},
		service.ReportGradesSummary: []repository.GradeSummaryRow{{StudentID: 1, StudentName: "Pupil 1", HalqaName: "Circle A", Grades: 2, AveragePercent: 87.5}},
		service.ReportHalqaSummary: []service.HalqaReportRow{{
			HalqaSummaryRow: repository.HalqaSummaryRow{HalqaID: 1, HalqaName: "Circle A", TeacherName: "Teacher A", ActiveStudents: 3, AttendanceRecords: 4, Present: 1},
			PresentRate:     25,
		}},
	}

	for reportType, data := range cases {
		t.Run(reportType, func(t *testing.T) {
			stub := &stubReportService{data: data}
			status, payload := serveReport(t, stub, url.Values{
				"action":      {"get_report"},
				"report_type": {reportType},
				"date_from":   {"2024-01-01"},
				"halqa_id":    {"1"},
			})
			require.Equal(t, fiber.StatusOK, status)
			require.NoError(t, schema.Validate(payload))
			require.Equal(t, dto.ReportRequest{Action: "get_report", ReportType: reportType, DateFrom: "2024-01-01", HalqaID: "1"}, stub.got)
		})
	}
}

func TestReportFailuresMatchContract(t *testing.T) {
	schema := compileReportSchema(t)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &service.ValidationError{Field: "report_type", Message: "Unknown report type"}, fiber.StatusBadRequest},
		{"unknown action", service.ErrUnknownAction, fiber.StatusBadRequest},
		{"forbidden", service.ErrForbidden, fiber.StatusForbidden},
		{"infrastructure", context.DeadlineExceeded, fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := serveReport(t, &stubReportService{err: tc.err}, url.Values{"action": {"get_report"}})
			require.Equal(t, tc.status, status)
			require.NoError(t, schema.Validate(payload))

			body, ok := payload.(map[string]interface{})
			require.True(t, ok)
			require.NotContains(t, body["message"], "deadline")
		})
	}
}

func TestReportEmptyResultStaysAnArray(t *testing.T) {
	status, payload := serveReport(t, &stubReportService{data: []repository.GradeSummaryRow{}}, url.Values{"action": {"get_report"}, "report_type": {service.ReportGradesSummary}})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []interface{}{}, payload.(map[string]interface{})["data"])
}
