package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/halqat/internal/dto"
	"github.com/noah-isme/halqat/internal/middleware"
	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/service"
	"github.com/noah-isme/halqat/internal/utils"
)

// ReportHandler serves the reports page and the JSON report endpoint behind it.
type ReportHandler struct {
	reports  service.ReportService
	lists    service.ListService
	appName  string
	location *time.Location
	logger   zerolog.Logger
}

// NewReportHandler constructs the report handler.
func NewReportHandler(reports service.ReportService, deps PageDeps) *ReportHandler {
	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	return &ReportHandler{
		reports:  reports,
		lists:    deps.Lists,
		appName:  deps.AppName,
		location: location,
		logger:   deps.Logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register wires the report routes.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Get("/reports", middleware.RequirePermission(models.PermViewReports), h.Page)
	router.Post("/references", h.Generate)
}

type reportPage struct {
	basePage
	Options service.FormOptions
	Today   string
}

// Page renders the report form.
func (h *ReportHandler) Page(c *fiber.Ctx) error {
	page := reportPage{
		basePage: newBasePage(c, h.appName, "Reports"),
		Options:  h.lists.Options(c.UserContext(), requestContext(c)),
		Today:    time.Now().In(h.location).Format("2006-01-02"),
	}
	return c.Render("reports", page, layout)
}

// Generate answers {success, data} for a get_report request.
func (h *ReportHandler) Generate(c *fiber.Ctx) error {
	var req dto.ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid report request")
	}

	data, err := h.reports.Generate(c.UserContext(), requestContext(c), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		case service.IsDomainError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("report_type", req.ReportType).Msg("report failed")
			return utils.SendError(c, fiber.StatusInternalServerError, service.UserMessage(err))
		}
	}

	return utils.SendData(c, data)
}
