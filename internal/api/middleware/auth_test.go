package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/notify-api/internal/api/shared"
	"github.com/phrazzld/notify-api/internal/domain"
	"github.com/phrazzld/notify-api/internal/service/auth"
)

// stubJWTService validates tokens against a fixed table.
type stubJWTService struct {
	claims map[string]*auth.Claims
	err    error
}

var _ auth.JWTService = (*stubJWTService)(nil)

func (s *stubJWTService) GenerateToken(
	context.Context,
	uuid.UUID,
	[]string,
) (string, error) {
	return "", nil
}

func (s *stubJWTService) ValidateToken(
	_ context.Context,
	token string,
) (*auth.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	claims, ok := s.claims[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}

// captureHandler records whether it ran and the identity it saw.
type captureHandler struct {
	called   bool
	identity shared.Identity
	found    bool
}

func (h *captureHandler) ServeHTTP(_ http.ResponseWriter, r *http.Request) {
	h.called = true
	h.identity, h.found = GetIdentity(r)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	jwtService := &stubJWTService{claims: map[string]*auth.Claims{
		"good-token": {UserID: userID, Roles: []string{domain.RoleAdmin}},
	}}
	mw := NewAuthMiddleware(jwtService)

	t.Run("valid token passes identity to the handler", func(t *testing.T) {
		t.Parallel()
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
		req.Header.Set("Authorization", "Bearer good-token")

		w := httptest.NewRecorder()
		mw.Authenticate(next).ServeHTTP(w, req)

		require.True(t, next.called)
		require.True(t, next.found)
		assert.Equal(t, userID, next.identity.UserID())
		assert.True(t, next.identity.IsAdmin())
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		t.Parallel()
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodGet, "/notifications", nil)

		w := httptest.NewRecorder()
		mw.Authenticate(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, next.called)
	})

	t.Run("malformed header is rejected", func(t *testing.T) {
		t.Parallel()
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
		req.Header.Set("Authorization", "Basic abc123")

		w := httptest.NewRecorder()
		mw.Authenticate(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, next.called)
	})

	t.Run("unknown token is rejected", func(t *testing.T) {
		t.Parallel()
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
		req.Header.Set("Authorization", "Bearer bad-token")

		w := httptest.NewRecorder()
		mw.Authenticate(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, next.called)
	})

	t.Run("expired token gets a specific message", func(t *testing.T) {
		t.Parallel()
		expiredMw := NewAuthMiddleware(&stubJWTService{err: auth.ErrExpiredToken})
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
		req.Header.Set("Authorization", "Bearer stale")

		w := httptest.NewRecorder()
		expiredMw.Authenticate(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Token expired")
	})

	t.Run("wrapped sentinel errors still map to their message", func(t *testing.T) {
		t.Parallel()
		wrappedMw := NewAuthMiddleware(&stubJWTService{
			err: fmt.Errorf("validate token: %w", auth.ErrExpiredToken),
		})
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
		req.Header.Set("Authorization", "Bearer stale")

		w := httptest.NewRecorder()
		wrappedMw.Authenticate(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Token expired")
		assert.False(t, next.called)
	})
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	mw := NewAuthMiddleware(&stubJWTService{})

	t.Run("admin identity passes", func(t *testing.T) {
		t.Parallel()
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodPost, "/notifications/admin/cleanup", nil)
		identity := shared.NewIdentity(uuid.New(), []string{domain.RoleAdmin})
		req = req.WithContext(shared.SetIdentity(req.Context(), identity))

		w := httptest.NewRecorder()
		mw.RequireAdmin(next).ServeHTTP(w, req)

		assert.True(t, next.called)
	})

	t.Run("non-admin identity is forbidden", func(t *testing.T) {
		t.Parallel()
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodPost, "/notifications/admin/cleanup", nil)
		identity := shared.NewIdentity(uuid.New(), []string{"USER"})
		req = req.WithContext(shared.SetIdentity(req.Context(), identity))

		w := httptest.NewRecorder()
		mw.RequireAdmin(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.False(t, next.called)
	})

	t.Run("missing identity is unauthorized", func(t *testing.T) {
		t.Parallel()
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodPost, "/notifications/admin/cleanup", nil)

		w := httptest.NewRecorder()
		mw.RequireAdmin(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, next.called)
	})
}
