package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tair/marketplace-listing/pkg/logger"
)

// RouteClass groups gateway routes that share a rate-limit budget.
type RouteClass struct {
	Name        string
	MaxRequests int
	Window      time.Duration
}

// Browsing listings is cheap and cache-backed, so it gets a generous budget.
// The auth endpoints get a tight one to slow down credential stuffing.
var (
	classBrowse  = RouteClass{Name: "browse", MaxRequests: 300, Window: time.Minute}
	classAuth    = RouteClass{Name: "auth", MaxRequests: 20, Window: time.Minute}
	classDefault = RouteClass{Name: "default", MaxRequests: 100, Window: time.Minute}
)

// ClassifyRoute maps a request path onto its rate-limit class.
func ClassifyRoute(path string) RouteClass {
	switch {
	case strings.HasPrefix(path, "/api/auth"):
		return classAuth
	case strings.HasPrefix(path, "/api/listings"):
		return classBrowse
	default:
		return classDefault
	}
}

// RateLimiter enforces per-class sliding-window limits backed by Redis, so
// the budget holds across gateway instances.
type RateLimiter struct {
	redis *redis.Client
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Middleware returns the rate limiting middleware. Each (class, caller) pair
// has its own window, so a login flood cannot starve listing browsing.
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		class := ClassifyRoute(c.Path())

		// User ID when authenticated, otherwise IP
		identifier := c.IP()
		if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
			identifier = "user:" + userID
		}

		allowed, remaining, resetTime, err := rl.checkLimit(c.UserContext(), class, identifier)
		if err != nil {
			logger.Logger.Error().
				Err(err).
				Str("class", class.Name).
				Str("identifier", identifier).
				Msg("Rate limiter error")
			// On error, allow request but log it
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", class.MaxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime.Unix()))

		if !allowed {
			logger.Logger.Warn().
				Str("class", class.Name).
				Str("identifier", identifier).
				Int("limit", class.MaxRequests).
				Msg("Rate limit exceeded")

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Too many requests. Try again in %v", time.Until(resetTime).Round(time.Second)),
				"retry_after": time.Until(resetTime).Seconds(),
			})
		}

		return c.Next()
	}
}

// checkLimit counts requests in the class window for one caller using a
// Redis sorted set as the sliding window.
func (rl *RateLimiter) checkLimit(ctx context.Context, class RouteClass, identifier string) (bool, int, time.Time, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", class.Name, identifier)
	now := time.Now()
	windowStart := now.Add(-class.Window)

	pipe := rl.redis.Pipeline()

	// Remove old entries outside the window
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixNano()))

	// Count requests in current window
	countCmd := pipe.ZCard(ctx, key)

	// Add current request
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	})

	// Set expiration
	pipe.Expire(ctx, key, class.Window+time.Minute)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, time.Time{}, err
	}

	count := countCmd.Val()

	remaining := class.MaxRequests - int(count) - 1
	if remaining < 0 {
		remaining = 0
	}

	resetTime := now.Add(class.Window)
	allowed := count < int64(class.MaxRequests)

	return allowed, remaining, resetTime, nil
}

// GlobalRateLimiter creates the route-class-aware limiter for all requests
func GlobalRateLimiter(redisClient *redis.Client) fiber.Handler {
	return NewRateLimiter(redisClient).Middleware()
}
