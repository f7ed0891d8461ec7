package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campaign-server/shared/authutils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T, roles ...string) (*gin.Engine, *authutils.JWTVerifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	verifier, err := authutils.NewJWTVerifier("secret", zap.NewNop())
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinZapLogger(zap.NewNop()))
	r.GET("/whoami", GinAuth(verifier, zap.NewNop(), roles...), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextKeyAccountID))
	})
	return r, verifier
}

func TestGinAuth(t *testing.T) {
	r, verifier := newTestEngine(t)
	valid, err := verifier.Issue("acc-9", time.Hour)
	require.NoError(t, err)
	expired, err := verifier.Issue("acc-9", -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid", header: "Bearer " + valid, want: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + valid, want: http.StatusOK},
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
			if tt.want == http.StatusOK {
				assert.Equal(t, "acc-9", rec.Body.String())
			}
		})
	}
}

func TestGinAuth_RequiredRole(t *testing.T) {
	r, verifier := newTestEngine(t, authutils.RoleOperator)
	token, err := verifier.Issue("acc-9", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
}
