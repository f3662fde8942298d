package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/service"
	"github.com/noah-isme/halqat/internal/utils"
)

// RequirePermission ensures the signed-in user holds permission. Pages get the 403 error page
// from the app error handler; JSON callers get the envelope.
func RequirePermission(permission models.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc, ok := RequestContextFrom(c)
		if !ok {
			if WantsJSON(c) {
				return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
			}
			return c.Redirect("/login", fiber.StatusSeeOther)
		}
		if !rc.Has(permission) {
			if WantsJSON(c) {
				return utils.SendError(c, fiber.StatusForbidden, service.ErrForbidden.Error())
			}
			return fiber.NewError(fiber.StatusForbidden, service.ErrForbidden.Error())
		}
		return c.Next()
	}
}
