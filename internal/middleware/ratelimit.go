package middleware

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/frameshare/api/internal/ratelimit"
	"github.com/frameshare/api/pkg/response"
)

// RateLimit gates a route group with the given limiter, keyed by client IP.
// Only job-creating routes are gated; polling and artifact retrieval must
// never be throttled or clients would stall in their polling loops.
func RateLimit(limiter ratelimit.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		ctx := c.Context()

		ok, err := limiter.Allow(ctx, key)
		if err != nil {
			// Limiter backend failure: let the request through.
			log.Printf("Rate limiter error: %v", err)
			return c.Next()
		}

		remaining, _ := limiter.Remaining(ctx, key)
		if !ok {
			retryAfter, _ := limiter.ResetSeconds(ctx, key)
			c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.Set("X-RateLimit-Remaining", "0")
			return response.RateLimited(c, retryAfter, remaining)
		}

		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		return c.Next()
	}
}
