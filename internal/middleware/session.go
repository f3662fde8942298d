package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/halqat/internal/service"
	"github.com/noah-isme/halqat/internal/utils"
)

// SessionCookie holds the signed session token.
const SessionCookie = "halqat_session"

const requestContextKey = "request_context"

// SessionResolver turns a session token into the caller's request context.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (service.RequestContext, error)
}

// Session resolves the session cookie on every request. Anonymous or stale sessions are sent
// to the login page, or get a 401 on JSON endpoints.
func Session(resolver SessionResolver, logger zerolog.Logger) fiber.Handler {
	log := logger.With().Str("component", "session").Logger()

	return func(c *fiber.Ctx) error {
		token := c.Cookies(SessionCookie)
		rc, err := resolver.Resolve(c.UserContext(), token)
		if err != nil {
			if !errors.Is(err, service.ErrInvalidSession) && !errors.Is(err, service.ErrInactiveAccount) {
				log.Error().Err(err).Str("correlation_id", GetCorrelationID(c)).Msg("failed to resolve session")
				return err
			}
			if token != "" {
				ClearSession(c)
			}
			if WantsJSON(c) {
				return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
			}
			if errors.Is(err, service.ErrInactiveAccount) {
				utils.SetFlash(c, utils.FlashError, "Your account has been deactivated")
			}
			return c.Redirect("/login", fiber.StatusSeeOther)
		}

		c.Locals(requestContextKey, rc)
		c.Locals("user_id", rc.User.ID)
		c.Locals("user_role", string(rc.User.Role))
		return c.Next()
	}
}

// StartSession writes the session cookie.
func StartSession(c *fiber.Ctx, token string, expires time.Time, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearSession expires the session cookie.
func ClearSession(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// RequestContextFrom returns the context stored by Session.
func RequestContextFrom(c *fiber.Ctx) (service.RequestContext, bool) {
	rc, ok := c.Locals(requestContextKey).(service.RequestContext)
	return rc, ok
}

// WantsJSON reports whether the caller expects a JSON answer rather than a page.
func WantsJSON(c *fiber.Ctx) bool {
	if strings.HasPrefix(c.Path(), "/api") || strings.HasPrefix(c.Path(), "/references") {
		return true
	}
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}
