package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/halqat/internal/middleware"
	"github.com/noah-isme/halqat/internal/service"
	"github.com/noah-isme/halqat/internal/utils"
)

// AuthHandler serves sign in and sign out.
type AuthHandler struct {
	auth         service.AuthService
	activity     service.ActivityRecorder
	appName      string
	secureCookie bool
	logger       zerolog.Logger
}

// NewAuthHandler constructs the auth handler. secureCookie marks the session cookie Secure.
func NewAuthHandler(auth service.AuthService, activity service.ActivityRecorder, appName string, secureCookie bool, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		activity:     activity,
		appName:      appName,
		secureCookie: secureCookie,
		logger:       logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register wires the sign in routes. limiter guards the credential check.
func (h *AuthHandler) Register(router fiber.Router, limiter fiber.Handler) {
	router.Get("/login", h.LoginPage)
	router.Post("/login", limiter, h.Login)
	router.Post("/logout", h.Logout)
}

// LoginPage renders the sign in form.
func (h *AuthHandler) LoginPage(c *fiber.Ctx) error {
	return c.Render("login", newBasePage(c, h.appName, "Sign in"), layout)
}

// Login checks the credentials and starts a session.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	session, err := h.auth.Login(c.UserContext(), formValues(c))
	if err != nil {
		log := requestLogger(h.logger, c)
		switch {
		case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInactiveAccount):
			log.Info().Str("ip", c.IP()).Msg("sign in refused")
			return utils.RedirectWithFlash(c, "/login", false, err.Error())
		case service.IsDomainError(err):
			return utils.RedirectWithFlash(c, "/login", false, err.Error())
		default:
			log.Error().Err(err).Msg("sign in failed")
			return utils.RedirectWithFlash(c, "/login", false, service.UserMessage(err))
		}
	}

	middleware.StartSession(c, session.Token, session.ExpiresAt, h.secureCookie)
	h.record(c, session.User.ID, string(session.User.Role), "login")
	requestLogger(h.logger, c).Info().Uint("user_id", session.User.ID).Str("role", string(session.User.Role)).Msg("signed in")
	return utils.RedirectWithFlash(c, "/", true, "Welcome, "+session.User.FullName)
}

// Logout ends the session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if rc, err := h.auth.Resolve(c.UserContext(), c.Cookies(middleware.SessionCookie)); err == nil {
		h.record(c, rc.User.ID, string(rc.User.Role), "logout")
	}
	middleware.ClearSession(c)
	return utils.RedirectWithFlash(c, "/login", true, "You have been signed out")
}

// record appends a session audit entry; failures are logged by the recorder and do not block
// the sign in flow.
func (h *AuthHandler) record(c *fiber.Ctx, userID uint, role, action string) {
	if h.activity == nil {
		return
	}
	_, _ = h.activity.Record(c.UserContext(), service.ActivityEntry{
		ActorID:    userID,
		ActorRole:  role,
		Action:     "session." + action,
		EntityType: "session",
		EntityID:   &userID,
		Metadata:   map[string]interface{}{"ip": c.IP()},
	})
}
