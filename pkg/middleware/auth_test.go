package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/taskdeck/pkg/auth"
)

func newAuthTestStack(t *testing.T) (*AuthMiddleware, *auth.TokenVerifier, http.Handler) {
	t.Helper()
	verifier, err := auth.NewTokenVerifier("test-secret")
	require.NoError(t, err)

	m := NewAuthMiddleware(verifier)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r)
		if identity == nil {
			t.Error("Expected identity in request context")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	return m, verifier, handler
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	_, verifier, handler := newAuthTestStack(t)

	token, err := verifier.Issue(auth.Identity{UserID: 7, Username: "alice"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/tasks/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareRejections(t *testing.T) {
	_, verifier, handler := newAuthTestStack(t)

	expired, err := verifier.Issue(auth.Identity{UserID: 7}, -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"malformed", "Bearer"},
		{"garbage token", "Bearer not.a.token"},
		{"expired token", "Bearer " + expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/tasks/1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestCallerID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, int64(0), CallerID(req), "anonymous request has no caller id")
	assert.Nil(t, GetIdentity(req))
}
