package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	apperrors "agenthub/internal/errors"
	"agenthub/internal/ratelimit"
)

// RateLimit applies limiter per authenticated user, falling back to the
// client IP. A nil limiter lets everything through.
func RateLimit(limiter *ratelimit.FixedWindowLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil {
				return next(c)
			}
			key := "ip:" + c.RealIP()
			if user, ok := UserFromContext(c); ok {
				key = "user:" + user.ID.String()
			}
			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			if !limiter.Allow(c.Request().Context(), key) {
				return apperrors.ToEcho(apperrors.ErrRateLimited)
			}
			return next(c)
		}
	}
}
