package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/halqat/internal/middleware"
	"github.com/noah-isme/halqat/internal/service"
	"github.com/noah-isme/halqat/internal/utils"
)

type errorPage struct {
	basePage
	Status  int
	Message string
}

// ErrorHandler renders uncaught errors as the error page, or as the JSON envelope for JSON
// callers. Messages of unexpected errors never reach the client.
func ErrorHandler(appName string, logger zerolog.Logger) fiber.ErrorHandler {
	log := logger.With().Str("component", "error_handler").Logger()

	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := service.UserMessage(err)

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
			message = fiberErr.Message
		} else if errors.Is(err, service.ErrForbidden) {
			status = fiber.StatusForbidden
		}
		if status >= fiber.StatusInternalServerError {
			requestLogger(log, c).Error().Err(err).Str("path", c.Path()).Msg("request failed")
			message = service.UserMessage(err)
		}

		if middleware.WantsJSON(c) {
			return utils.SendError(c, status, message)
		}

		page := errorPage{basePage: newBasePage(c, appName, "Error"), Status: status, Message: message}
		c.Status(status)
		if renderErr := c.Render("error", page, layout); renderErr != nil {
			log.Error().Err(renderErr).Msg("failed to render error page")
			return c.Status(status).SendString(message)
		}
		return nil
	}
}
