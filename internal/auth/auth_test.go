package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T, password string) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	svc, err := NewService(string(hash), "test-secret", zaptest.NewLogger(t))
	require.NoError(t, err)
	return svc
}

func TestLogin(t *testing.T) {
	svc := newTestService(t, "correct horse")

	resp, err := svc.Login(LoginRequest{Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	sub, err := svc.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, AdminSubject, sub)

	_, err = svc.Login(LoginRequest{Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCreds)
}

func TestLogin_DisabledWithoutHash(t *testing.T) {
	svc, err := NewService("", "", zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = svc.Login(LoginRequest{Password: "anything"})
	assert.ErrorIs(t, err, ErrLoginDisabled)
}

func TestVerify_RejectsExpiredAndForeignTokens(t *testing.T) {
	svc := newTestService(t, "pw")

	stale, err := IssueToken("test-secret", AdminSubject, -time.Minute)
	require.NoError(t, err)
	_, err = svc.Verify(stale)
	assert.Error(t, err)

	foreign, err := IssueToken("other-secret", AdminSubject, time.Hour)
	require.NoError(t, err)
	_, err = svc.Verify(foreign)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t, "pw")
	good, err := IssueToken("test-secret", AdminSubject, time.Hour)
	require.NoError(t, err)
	viewer, err := IssueToken("test-secret", "viewer", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"bad format", "Token " + good, http.StatusUnauthorized},
		{"bad token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong subject", "Bearer " + viewer, http.StatusForbidden},
		{"ok", "Bearer " + good, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/admin", func(c echo.Context) error {
				sub, err := SubjectFromContext(c)
				require.NoError(t, err)
				assert.Equal(t, AdminSubject, sub)
				return c.NoContent(http.StatusNoContent)
			}, svc.Middleware)

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
