package middleware

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// ThrottleConfig bounds inbound request rates per client IP.
type ThrottleConfig struct {
	RPS   rate.Limit
	Burst int
}

// Throttle returns a per-IP token bucket limiter. It protects the
// signal submission endpoint from a runaway strategy engine; exchange
// side limits are handled elsewhere.
func Throttle(cfg ThrottleConfig) echo.MiddlewareFunc {
	if cfg.RPS <= 0 {
		cfg.RPS = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 40
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	get := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[ip]
		if !ok {
			l = rate.NewLimiter(cfg.RPS, cfg.Burst)
			limiters[ip] = l
		}
		return l
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !get(c.RealIP()).Allow() {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status":  http.StatusTooManyRequests,
					"message": http.StatusText(http.StatusTooManyRequests),
				})
			}
			return next(c)
		}
	}
}
