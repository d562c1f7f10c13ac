package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Cross-origin policy: any origin may call the proxy with simple GET/POST
// requests and the two headers browser clients actually send.
const (
	corsAllowOrigin  = "*"
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Content-Type, Accept"
)

// SetCORSHeaders writes the proxy's cross-origin headers onto h.
func SetCORSHeaders(h http.Header) {
	h.Set(echo.HeaderAccessControlAllowOrigin, corsAllowOrigin)
	h.Set(echo.HeaderAccessControlAllowMethods, corsAllowMethods)
	h.Set(echo.HeaderAccessControlAllowHeaders, corsAllowHeaders)
}

// CORS returns an Echo middleware that sets the cross-origin headers before
// the handler runs, so error responses produced by Echo itself (unknown
// route, body too large, panics) carry them too.
//
// Echo's bundled CORS middleware omits the headers when the request has no
// Origin and answers preflights with 204, neither of which browser clients
// of this proxy expect.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			SetCORSHeaders(c.Response().Header())
			return next(c)
		}
	}
}
