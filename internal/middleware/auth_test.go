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

	"messenger-service/internal/models"
	"messenger-service/internal/providers"
)

func newVerifier() *TokenVerifier {
	dir := providers.NewDirectory([]providers.Definition{{Alias: "user", Devices: true}}, nil)
	return NewTokenVerifier("secret", dir)
}

func setupRouter(v *TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), AuthMiddleware(v))
	router.GET("/whoami", func(c *gin.Context) {
		actor, ok := Actor(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"actor": actor.String()})
	})
	return router
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	v := newVerifier()
	token, err := v.Sign(models.Ref("user", "tippin"), time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	setupRouter(v).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tippin")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthMiddlewareRejects(t *testing.T) {
	v := newVerifier()
	expired, err := v.Sign(models.Ref("user", "tippin"), -time.Minute)
	require.NoError(t, err)
	unregistered, err := v.Sign(models.Ref("robot", "r2"), time.Minute)
	require.NoError(t, err)
	foreign, err := NewTokenVerifier("other", v.directory).Sign(models.Ref("user", "tippin"), time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "expired", header: "Bearer " + expired},
		{name: "unregistered alias", header: "Bearer " + unregistered},
		{name: "wrong secret", header: "Bearer " + foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			setupRouter(v).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	v := newVerifier()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		ProviderAlias:    "user",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "tippin"},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(signed)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
}
