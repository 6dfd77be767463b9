// Package middleware provides HTTP middleware for the sightline API.
package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/sightline-go/internal/logger"
)

// RequestObserver receives one call per finished request.
type RequestObserver interface {
	RecordHTTPRequest(method, path string, statusCode int, duration float64)
	RecordHTTPRequestError(method, path, errorType string)
}

// NewRequestLogger logs every request through log and, when obs is not nil,
// reports it for metrics. Paths are the route templates, not raw URIs.
func NewRequestLogger(log logger.Logger, obs RequestObserver) echo.MiddlewareFunc {
	return NewRequestLoggerWithSkipper(log, obs, nil)
}

// NewRequestLoggerWithSkipper is NewRequestLogger with a custom skipper.
func NewRequestLoggerWithSkipper(log logger.Logger, obs RequestObserver, skipper middleware.Skipper) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:      skipper,
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		LogRoutePath: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if obs != nil {
				obs.RecordHTTPRequest(v.Method, v.RoutePath, v.Status, v.Latency.Seconds())
				if v.Status >= 400 {
					obs.RecordHTTPRequestError(v.Method, v.RoutePath, statusClass(v.Status))
				}
			}
			if log == nil {
				return nil
			}

			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			if v.Status >= 500 {
				log.Warn("request", fields...)
			} else {
				log.Debug("request", fields...)
			}
			return nil
		},
	})
}

func statusClass(code int) string {
	switch {
	case code == 409:
		return "conflict"
	case code == 429:
		return "rate_limited"
	case code >= 500:
		return "server"
	default:
		return "client"
	}
}
