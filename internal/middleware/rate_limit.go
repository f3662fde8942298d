package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/halqat/internal/utils"
)

// LoginRateLimit caps sign-in attempts per client address.
func LoginRateLimit(max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() != fiber.MethodPost
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return fmt.Sprintf("login:%s", c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.RedirectWithFlash(c, "/login", false, "Too many sign-in attempts, please wait a minute and try again")
		},
	})
}
