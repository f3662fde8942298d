package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/rs/zerolog"

	"github.com/noah-isme/halqat/internal/utils"
)

// CSRFContextKey is the Locals key holding the token rendered into forms as _csrf.
const CSRFContextKey = "csrf"

// CSRF guards every state-changing form post. A missing or stale token sends the user back to
// the page they came from with an error flash.
func CSRF(secure bool, logger zerolog.Logger) fiber.Handler {
	log := logger.With().Str("component", "csrf").Logger()

	return csrf.New(csrf.Config{
		KeyLookup:      "form:_csrf",
		CookieName:     "halqat_csrf",
		CookieSameSite: "Lax",
		CookieSecure:   secure,
		CookieHTTPOnly: true,
		Expiration:     2 * time.Hour,
		ContextKey:     CSRFContextKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Warn().Err(err).Str("path", c.Path()).Str("correlation_id", GetCorrelationID(c)).Msg("csrf check failed")
			if WantsJSON(c) {
				return utils.SendError(c, fiber.StatusForbidden, "Your form has expired, please reload the page and try again")
			}
			return utils.RedirectWithFlash(c, c.Path(), false, "Your form has expired, please reload the page and try again")
		},
	})
}

// CSRFToken returns the token generated for the current request.
func CSRFToken(c *fiber.Ctx) string {
	token, _ := c.Locals(CSRFContextKey).(string)
	return token
}
