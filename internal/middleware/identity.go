package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/konfi-registration/internal/model"
)

const identityKey = "identity"

// Identity returns the caller stored by JWTAuth.
func Identity(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok
}

// userID returns the caller's id for rate limit keys, or "guest".
func userID(c echo.Context) string {
	if id, ok := Identity(c); ok {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "guest"
}
