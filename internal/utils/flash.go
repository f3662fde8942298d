package utils

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
)

// FlashCookie carries one message across the post-redirect-get round trip.
const FlashCookie = "halqat_flash"

// Flash kinds rendered by the layout.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is the message shown once on the page after a redirect.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SetFlash stores the message for the next request.
func SetFlash(c *fiber.Ctx, kind, message string) {
	payload, err := json.Marshal(Flash{Kind: kind, Message: message})
	if err != nil {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     FlashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(time.Minute),
	})
}

// PopFlash returns the pending message, if any, and clears it.
func PopFlash(c *fiber.Ctx) (Flash, bool) {
	raw := c.Cookies(FlashCookie)
	if raw == "" {
		return Flash{}, false
	}
	c.ClearCookie(FlashCookie)

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return Flash{}, false
	}
	var flash Flash
	if err := json.Unmarshal(decoded, &flash); err != nil || flash.Message == "" {
		return Flash{}, false
	}
	return flash, true
}

// RedirectWithFlash sets the flash message and answers with 303 See Other.
func RedirectWithFlash(c *fiber.Ctx, location string, success bool, message string) error {
	kind := FlashSuccess
	if !success {
		kind = FlashError
	}
	SetFlash(c, kind, message)
	return c.Redirect(location, fiber.StatusSeeOther)
}
