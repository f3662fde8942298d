package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/halqat/internal/dto"
	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/repository"
)

// Report types served by the reports endpoint.
const (
	ReportAttendanceSummary = "attendance_summary"
	ReportGradesSummary     = "grades_summary"
	ReportHalqaSummary      = "halqa_summary"
)

// defaultReportDays is the window used when no date range is supplied.
const defaultReportDays = 30

// AttendanceReportRow adds the attendance rate to the per-student counts.
type AttendanceReportRow struct {
	repository.AttendanceSummaryRow
	AttendanceRate float64 `json:"attendance_rate"`
}

// HalqaReportRow adds the present rate to the per-halqa aggregates.
type HalqaReportRow struct {
	repository.HalqaSummaryRow
	PresentRate float64 `json:"present_rate"`
}

// ReportService answers the get_report action.
type ReportService interface {
	Generate(ctx context.Context, rc RequestContext, req dto.ReportRequest) (interface{}, error)
}

type reportService struct {
	repo     repository.ReportRepository
	location *time.Location
	logger   zerolog.Logger
	now      func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo repository.ReportRepository, location *time.Location, logger zerolog.Logger) ReportService {
	if location == nil {
		location = time.UTC
	}
	return &reportService{
		repo:     repo,
		location: location,
		logger:   logger.With().Str("component", "report_service").Logger(),
		now:      time.Now,
	}
}

type reportWindow struct {
	from    time.Time
	to      time.Time
	halqaID string
}

func (s *reportService) window(req dto.ReportRequest) (reportWindow, error) {
	w := reportWindow{to: calendarDay(s.now(), s.location)}
	if strings.TrimSpace(req.DateTo) != "" {
		to, err := parseDate("date_to", req.DateTo)
		if err != nil {
			return reportWindow{}, err
		}
		w.to = to
	}
	w.from = w.to.AddDate(0, 0, -(defaultReportDays - 1))
	if strings.TrimSpace(req.DateFrom) != "" {
		from, err := parseDate("date_from", req.DateFrom)
		if err != nil {
			return reportWindow{}, err
		}
		w.from = from
	}
	if w.from.After(w.to) {
		return reportWindow{}, invalid("date_from", "Date from must not be after date to")
	}

	w.halqaID = strings.TrimSpace(req.HalqaID)
	if w.halqaID != "" {
		if id, err := strconv.ParseUint(w.halqaID, 10, 64); err != nil || id == 0 {
			return reportWindow{}, invalid("halqa_id", "Halqa id is invalid")
		}
	}
	return w, nil
}

func (s *reportService) Generate(ctx context.Context, rc RequestContext, req dto.ReportRequest) (interface{}, error) {
	if strings.TrimSpace(req.Action) != "get_report" {
		return nil, ErrUnknownAction
	}
	if !rc.Has(models.PermViewReports) {
		return nil, ErrForbidden
	}
	w, err := s.window(req)
	if err != nil {
		return nil, err
	}

	reportType := strings.TrimSpace(req.ReportType)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "report."+reportType)
	span.SetAttributes(
		attribute.String("report.from", w.from.Format(listquery.DateLayout)),
		attribute.String("report.to", w.to.Format(listquery.DateLayout)),
	)
	defer span.End()

	from := w.from.Format(listquery.DateLayout)
	to := w.to.Format(listquery.DateLayout)

	switch reportType {
	case ReportAttendanceSummary:
		q, err := listquery.Build(scopeFor(KindAttendance, rc), []listquery.Filter{
			{Column: "attendance.attended_on", Operator: listquery.OpGte, Value: from, Kind: listquery.KindDate},
			{Column: "attendance.attended_on", Operator: listquery.OpLte, Value: to, Kind: listquery.KindDate},
			{Column: "attendance.halqa_id", Operator: listquery.OpEq, Value: w.halqaID, Kind: listquery.KindInt},
		}, 1, 1)
		if err != nil {
			return nil, err
		}
		rows, err := s.repo.AttendanceSummary(ctx, q)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		report := make([]AttendanceReportRow, 0, len(rows))
		for _, row := range rows {
			report = append(report, AttendanceReportRow{AttendanceSummaryRow: row, AttendanceRate: rate(row.Present+row.Late, row.Total)})
		}
		return report, nil

	case ReportGradesSummary:
		active := []listquery.Condition{{Expr: "grades.status = ?", Args: []interface{}{models.StatusActive}}}
		q, err := listquery.Build(append(scopeFor(KindGrades, rc), active...), []listquery.Filter{
			{Column: "grades.graded_on", Operator: listquery.OpGte, Value: from, Kind: listquery.KindDate},
			{Column: "grades.graded_on", Operator: listquery.OpLte, Value: to, Kind: listquery.KindDate},
			{Column: "grades.halqa_id", Operator: listquery.OpEq, Value: w.halqaID, Kind: listquery.KindInt},
		}, 1, 1)
		if err != nil {
			return nil, err
		}
		rows, err := s.repo.GradesSummary(ctx, q)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if rows == nil {
			rows = []repository.GradeSummaryRow{}
		}
		return rows, nil

	case ReportHalqaSummary:
		q, err := listquery.Build(scopeFor(KindHalaqat, rc), []listquery.Filter{
			{Column: "halaqat.id", Operator: listquery.OpEq, Value: w.halqaID, Kind: listquery.KindInt},
		}, 1, 1)
		if err != nil {
			return nil, err
		}
		rows, err := s.repo.HalqaSummary(ctx, q, w.from, w.to)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		report := make([]HalqaReportRow, 0, len(rows))
		for _, row := range rows {
			report = append(report, HalqaReportRow{HalqaSummaryRow: row, PresentRate: rate(row.Present, row.AttendanceRecords)})
		}
		return report, nil

	default:
		return nil, invalid("report_type", "Unknown report type %q", reportType)
	}
}

// rate returns part/total as a percentage rounded to one decimal.
func rate(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(int64(float64(part)*1000/float64(total)+0.5)) / 10
}
