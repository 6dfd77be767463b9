package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// The API serves JSON only, so no document may be framed or load anything.
const apiContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// Hardening returns the CORS, body size and response header middleware for
// the frame API. Browser clients such as a companion web view are limited
// to origins; an empty list allows any origin.
func Hardening(origins []string, bodyLimit string) []echo.MiddlewareFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return []echo.MiddlewareFunc{
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			MaxAge:       600,
		}),
		middleware.BodyLimit(bodyLimit),
		middleware.SecureWithConfig(middleware.SecureConfig{
			ContentTypeNosniff:    "nosniff",
			XFrameOptions:         "DENY",
			ContentSecurityPolicy: apiContentSecurityPolicy,
			ReferrerPolicy:        "no-referrer",
		}),
	}
}
