package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/helpdesk-api/internal/models"
	"github.com/campushq/helpdesk-api/internal/service"
)

const testSecret = "middleware-test-secret"

func testAuthService() *service.AuthService {
	return service.NewAuthService(nil, nil, nil, service.AuthConfig{Secret: testSecret, Expiration: time.Hour})
}

func signTestToken(t *testing.T, secret string, role models.UserRole) string {
	t.Helper()
	now := time.Now().UTC()
	claims := &models.Claims{
		UserID:   "user-1",
		Role:     role,
		FullName: "Test User",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func runJWT(t *testing.T, authHeader string) (*gin.Context, *httptest.ResponseRecorder, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		c.Request.Header.Set("Authorization", authHeader)
	}
	reached := false
	handlers := gin.HandlersChain{JWT(testAuthService()), func(c *gin.Context) { reached = true }}
	for _, h := range handlers {
		if c.IsAborted() {
			break
		}
		h(c)
	}
	return c, rec, reached
}

func TestJWTMissingHeader(t *testing.T) {
	_, rec, reached := runJWT(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
}

func TestJWTMalformedHeader(t *testing.T) {
	_, rec, reached := runJWT(t, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token := signTestToken(t, "some-other-secret", models.RoleStudent)
	_, rec, reached := runJWT(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
}

func TestJWTStoresClaims(t *testing.T) {
	token := signTestToken(t, testSecret, models.RoleTeam)
	c, _, reached := runJWT(t, "Bearer "+token)
	assert.True(t, reached)

	value, ok := c.Get(ContextUserKey)
	require.True(t, ok)
	claims, ok := value.(*models.Claims)
	require.True(t, ok)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleTeam, claims.Role)
}

func TestRequireRolesForbidsOutsiders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/staff", nil)
	c.Set(ContextUserKey, &models.Claims{UserID: "student-1", Role: models.RoleStudent})

	RequireStaff()(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, c.IsAborted())
}

func TestRequireRolesAllowsEachStaffRole(t *testing.T) {
	for _, role := range models.StaffRoles {
		gin.SetMode(gin.TestMode)
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/staff", nil)
		c.Set(ContextUserKey, &models.Claims{UserID: "staff-1", Role: role})

		RequireStaff()(c)

		assert.False(t, c.IsAborted(), "role %s should pass", role)
	}
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/staff", nil)

	RequireRoles(models.RoleAdmin)(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
