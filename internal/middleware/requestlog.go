package middleware

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ursol-insurance/internal/metrics"
)

// RequestLogger tags each request with an id (kept from X-Request-ID when
// the client sends one), then logs and meters it once the handler returns.
func RequestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)

			err := next(c)
			if err != nil {
				// Let echo write the error so the logged status is the one
				// the client sees.
				c.Error(err)
			}

			status := c.Response().Status
			latency := time.Since(start)
			metrics.RecordRequest(req.Method, c.Path(), status, latency)

			level := slog.LevelInfo
			if status >= 500 {
				level = slog.LevelError
			}
			log.LogAttrs(req.Context(), level, "request",
				slog.String("request_id", id),
				slog.String("method", req.Method),
				slog.String("route", c.Path()),
				slog.Int("status", status),
				slog.Duration("latency", latency),
				slog.String("user_id", UserID(c)),
			)
			return nil
		}
	}
}
