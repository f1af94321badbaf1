package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireUserType rejects callers whose user_type is not one of types
// with 403.  It must run after JWTAuth.
func RequireUserType(types ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := Identity(c)
			if !ok || !allowed[id.UserType] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
