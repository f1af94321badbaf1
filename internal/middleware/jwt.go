package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/konfi-registration/internal/model"
)

// JWTAuth validates a Bearer access token and puts the caller into the
// request context: user_id and org_id (uint64), user_type and role
// (string), and the assembled model.Identity under "identity".
func JWTAuth(secret string) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := parser.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			userID, ok1 := claimID(claims["sub"])
			orgID, ok2 := claimID(claims["org"])
			userType, _ := claims["user_type"].(string)
			role, _ := claims["role"].(string)
			if !ok1 || !ok2 || (userType != model.UserTypeKonfi && userType != model.UserTypeAdmin) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set("user_id", userID)
			c.Set("org_id", orgID)
			c.Set("user_type", userType)
			c.Set("role", role)
			c.Set(identityKey, model.Identity{
				UserID:         userID,
				OrganizationID: orgID,
				UserType:       userType,
				Role:           role,
			})
			return next(c)
		}
	}
}

// claimID accepts numeric ids as JSON numbers or strings.
func claimID(v any) (uint64, bool) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != float64(uint64(t)) {
			return 0, false
		}
		return uint64(t), true
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		return n, err == nil && n > 0
	}
	return 0, false
}
