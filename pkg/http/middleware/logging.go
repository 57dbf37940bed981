package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "CoinRoute/pkg/logger"
)

// RequestLogging writes one structured line per request. Server errors
// log at error level, slow requests at warn, the rest at debug.
func RequestLogging(log *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			req := c.Request()
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("latency", latency),
			}
			switch {
			case c.Response().Status >= 500:
				log.Error("http request failed", fields...)
			case slowThreshold > 0 && latency >= slowThreshold:
				log.Warn("http request slow", fields...)
			default:
				log.Debug("http request", fields...)
			}
			return err
		}
	}
}
