package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/notify-api/internal/config"
	"github.com/phrazzld/notify-api/internal/service"
	"github.com/phrazzld/notify-api/internal/service/auth"
)

type routerStubJWTService struct {
	userID uuid.UUID
}

func (s *routerStubJWTService) GenerateToken(
	_ context.Context, _ uuid.UUID, _ []string,
) (string, error) {
	return "", nil
}

func (s *routerStubJWTService) ValidateToken(
	_ context.Context, tokenString string,
) (*auth.Claims, error) {
	if tokenString != "router-test-token" {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{UserID: s.userID}, nil
}

// routerStubNotificationService panics on anything but the calls it records,
// so a mis-routed request fails loudly.
type routerStubNotificationService struct {
	service.NotificationService

	deleteAllUser *uuid.UUID
	deletedID     *uuid.UUID
}

func (s *routerStubNotificationService) DeleteAll(_ context.Context, userID uuid.UUID) error {
	s.deleteAllUser = &userID
	return nil
}

func (s *routerStubNotificationService) Delete(_ context.Context, id, _ uuid.UUID) error {
	s.deletedID = &id
	return nil
}

func newRouterTestApp(t *testing.T) (*application, *routerStubNotificationService, uuid.UUID) {
	t.Helper()

	userID := uuid.New()
	notifications := &routerStubNotificationService{}
	return &application{
		config: &config.Config{
			Scheduler: config.SchedulerConfig{StalePendingHours: 24},
		},
		logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		jwtService:          &routerStubJWTService{userID: userID},
		notificationService: notifications,
	}, notifications, userID
}

func TestRouterDeleteAllRoute(t *testing.T) {
	t.Parallel()

	app, notifications, userID := newRouterTestApp(t)
	router := app.setupRouter()

	req := httptest.NewRequest(http.MethodDelete, "/api/notifications/all", nil)
	req.Header.Set("Authorization", "Bearer router-test-token")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, notifications.deleteAllUser)
	assert.Equal(t, userID, *notifications.deleteAllUser)

	// The static /all segment must not be swallowed by the {id} route.
	assert.Nil(t, notifications.deletedID)
}

func TestRouterDeleteByIDRoute(t *testing.T) {
	t.Parallel()

	app, notifications, _ := newRouterTestApp(t)
	router := app.setupRouter()

	id := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/notifications/"+id.String(), nil)
	req.Header.Set("Authorization", "Bearer router-test-token")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, notifications.deletedID)
	assert.Equal(t, id, *notifications.deletedID)
	assert.Nil(t, notifications.deleteAllUser)
}

func TestRouterRejectsMissingToken(t *testing.T) {
	t.Parallel()

	app, _, _ := newRouterTestApp(t)
	router := app.setupRouter()

	req := httptest.NewRequest(http.MethodDelete, "/api/notifications/all", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
