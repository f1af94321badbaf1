package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/konfi-registration/internal/model"
	"github.com/iliyamo/konfi-registration/internal/utils"
)

const secret = "s3cret"

func serve(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func identityServer(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		id, ok := Identity(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, id)
	}, mw...)
	return e
}

func sign(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func TestJWTAuth(t *testing.T) {
	e := identityServer(JWTAuth(secret))
	want := model.Identity{UserID: 10, OrganizationID: 7, UserType: model.UserTypeKonfi, Role: "konfi"}
	tok, err := utils.NewAccessToken(secret, want, 5)
	require.NoError(t, err)

	rec := serve(e, tok.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"UserID":10,"OrganizationID":7,"UserType":"konfi","Role":"konfi"}`, rec.Body.String())
}

func TestJWTAuthRejects(t *testing.T) {
	e := identityServer(JWTAuth(secret))
	exp := time.Now().Add(time.Hour).Unix()

	wrongKey, err := utils.NewAccessToken("other", model.Identity{UserID: 1, OrganizationID: 1, UserType: model.UserTypeAdmin}, 5)
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
		{"wrong key", wrongKey.Token},
		{"expired", sign(t, secret, jwt.MapClaims{"sub": "1", "org": 1, "user_type": "admin", "exp": time.Now().Add(-time.Minute).Unix()})},
		{"unknown user type", sign(t, secret, jwt.MapClaims{"sub": "1", "org": 1, "user_type": "guest", "exp": exp})},
		{"missing org", sign(t, secret, jwt.MapClaims{"sub": "1", "user_type": "konfi", "exp": exp})},
		{"zero subject", sign(t, secret, jwt.MapClaims{"sub": "0", "org": 1, "user_type": "konfi", "exp": exp})},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, serve(e, c.token).Code)
		})
	}
}

func TestJWTAuthAcceptsNumericClaims(t *testing.T) {
	e := identityServer(JWTAuth(secret))
	tok := sign(t, secret, jwt.MapClaims{"sub": "12", "org": 3, "user_type": "admin", "exp": time.Now().Add(time.Hour).Unix()})
	rec := serve(e, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"OrganizationID":3`)
}

func TestRequireUserType(t *testing.T) {
	e := identityServer(JWTAuth(secret), RequireUserType(model.UserTypeAdmin))

	konfi, err := utils.NewAccessToken(secret, model.Identity{UserID: 10, OrganizationID: 7, UserType: model.UserTypeKonfi}, 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(e, konfi.Token).Code)

	admin, err := utils.NewAccessToken(secret, model.Identity{UserID: 1, OrganizationID: 7, UserType: model.UserTypeAdmin}, 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(e, admin.Token).Code)
}
