package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/notify-api/internal/api/shared"
	"github.com/phrazzld/notify-api/internal/domain"
	"github.com/phrazzld/notify-api/internal/service"
	"github.com/phrazzld/notify-api/internal/store"
)

// stubNotificationService overrides only the operations a test exercises;
// calling anything else panics.
type stubNotificationService struct {
	service.NotificationService

	created       *domain.Notification
	createErr     error
	createdParams service.CreateNotificationParams

	notifications []*domain.Notification
	notification  *domain.Notification
	opErr         error

	stats *service.NotificationStats

	deletedID uuid.UUID
}

func (s *stubNotificationService) Create(
	_ context.Context,
	userID uuid.UUID,
	title, message string,
	notificationType domain.NotificationType,
	params service.CreateNotificationParams,
) (*domain.Notification, error) {
	s.createdParams = params
	if s.createErr != nil {
		return s.created, s.createErr
	}
	n, _ := domain.NewNotification(userID, title, message, notificationType)
	s.created = n
	return n, nil
}

func (s *stubNotificationService) GetAll(
	context.Context,
	uuid.UUID,
) ([]*domain.Notification, error) {
	return s.notifications, s.opErr
}

func (s *stubNotificationService) GetByID(
	context.Context,
	uuid.UUID,
	uuid.UUID,
) (*domain.Notification, error) {
	return s.notification, s.opErr
}

func (s *stubNotificationService) GetUnread(
	context.Context,
	uuid.UUID,
) ([]*domain.Notification, error) {
	return s.notifications, s.opErr
}

func (s *stubNotificationService) MarkAsRead(
	context.Context,
	uuid.UUID,
	uuid.UUID,
) (*domain.Notification, error) {
	return s.notification, s.opErr
}

func (s *stubNotificationService) Delete(_ context.Context, id, _ uuid.UUID) error {
	s.deletedID = id
	return s.opErr
}

func (s *stubNotificationService) Stats(
	context.Context,
	uuid.UUID,
) (*service.NotificationStats, error) {
	return s.stats, s.opErr
}

type stubUsers struct {
	store.UserStore
	users []*domain.User
}

func (s *stubUsers) ListActive(context.Context) ([]*domain.User, error) {
	return s.users, nil
}

func newTestHandler(svc service.NotificationService) *NotificationHandler {
	return NewNotificationHandler(svc, &stubUsers{}, 24, slog.Default())
}

// authedRequest builds a request carrying an authenticated identity.
func authedRequest(
	method, target string,
	body []byte,
	identity shared.Identity,
) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(shared.SetIdentity(req.Context(), identity))
}

// withURLParam attaches a chi route parameter to the request context.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func userIdentity() shared.Identity {
	return shared.NewIdentity(uuid.New(), nil)
}

func TestNotificationHandlerCreate(t *testing.T) {
	t.Parallel()

	t.Run("creates a notification", func(t *testing.T) {
		t.Parallel()
		svc := &stubNotificationService{}
		handler := newTestHandler(svc)

		body, err := json.Marshal(CreateNotificationRequest{
			Title:   "Title",
			Message: "Message",
			Type:    "REMINDER",
		})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		handler.Create(w, authedRequest(http.MethodPost, "/notifications", body, userIdentity()))

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp NotificationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Title", resp.Title)
		assert.Equal(t, string(domain.NotificationStatusPending), resp.Status)
	})

	t.Run("rejects an unknown type", func(t *testing.T) {
		t.Parallel()
		handler := newTestHandler(&stubNotificationService{})

		body := []byte(`{"title":"T","message":"M","type":"NOT_A_TYPE"}`)
		w := httptest.NewRecorder()
		handler.Create(w, authedRequest(http.MethodPost, "/notifications", body, userIdentity()))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects a missing title", func(t *testing.T) {
		t.Parallel()
		handler := newTestHandler(&stubNotificationService{})

		body := []byte(`{"message":"M","type":"REMINDER"}`)
		w := httptest.NewRecorder()
		handler.Create(w, authedRequest(http.MethodPost, "/notifications", body, userIdentity()))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects unknown payload fields", func(t *testing.T) {
		t.Parallel()
		handler := newTestHandler(&stubNotificationService{})

		body := []byte(`{"title":"T","message":"M","type":"REMINDER","titel":"typo"}`)
		w := httptest.NewRecorder()
		handler.Create(w, authedRequest(http.MethodPost, "/notifications", body, userIdentity()))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("publish failure maps to service unavailable", func(t *testing.T) {
		t.Parallel()
		svc := &stubNotificationService{
			createErr: &service.ServiceError{
				Operation: "create_notification",
				Message:   "publish failed",
				Err:       service.ErrPublishFailed,
			},
		}
		handler := newTestHandler(svc)

		body := []byte(`{"title":"T","message":"M","type":"REMINDER"}`)
		w := httptest.NewRecorder()
		handler.Create(w, authedRequest(http.MethodPost, "/notifications", body, userIdentity()))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("requires authentication", func(t *testing.T) {
		t.Parallel()
		handler := newTestHandler(&stubNotificationService{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/notifications", nil)
		handler.Create(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestNotificationHandlerGetAll(t *testing.T) {
	t.Parallel()

	identity := userIdentity()
	first, err := domain.NewNotification(identity.UserID(), "A", "a",
		domain.NotificationTypeReminder)
	require.NoError(t, err)
	second, err := domain.NewNotification(identity.UserID(), "B", "b",
		domain.NotificationTypeTodoCreated)
	require.NoError(t, err)

	svc := &stubNotificationService{notifications: []*domain.Notification{first, second}}
	handler := newTestHandler(svc)

	w := httptest.NewRecorder()
	handler.GetAll(w, authedRequest(http.MethodGet, "/notifications", nil, identity))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp []NotificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestNotificationHandlerGetByID(t *testing.T) {
	t.Parallel()

	t.Run("returns the notification", func(t *testing.T) {
		t.Parallel()
		identity := userIdentity()
		notification, err := domain.NewNotification(identity.UserID(), "A", "a",
			domain.NotificationTypeReminder)
		require.NoError(t, err)

		handler := newTestHandler(&stubNotificationService{notification: notification})

		req := authedRequest(http.MethodGet, "/notifications/"+notification.ID.String(),
			nil, identity)
		req = withURLParam(req, "id", notification.ID.String())

		w := httptest.NewRecorder()
		handler.GetByID(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("maps not-found to 404", func(t *testing.T) {
		t.Parallel()
		handler := newTestHandler(&stubNotificationService{
			opErr: service.ErrNotificationNotFound,
		})

		req := authedRequest(http.MethodGet, "/notifications/x", nil, userIdentity())
		req = withURLParam(req, "id", uuid.New().String())

		w := httptest.NewRecorder()
		handler.GetByID(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		var resp shared.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Notification not found", resp.Error)
	})

	t.Run("rejects a malformed id", func(t *testing.T) {
		t.Parallel()
		handler := newTestHandler(&stubNotificationService{})

		req := authedRequest(http.MethodGet, "/notifications/nope", nil, userIdentity())
		req = withURLParam(req, "id", "nope")

		w := httptest.NewRecorder()
		handler.GetByID(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestNotificationHandlerDelete(t *testing.T) {
	t.Parallel()

	svc := &stubNotificationService{}
	handler := newTestHandler(svc)

	id := uuid.New()
	req := authedRequest(http.MethodDelete, "/notifications/"+id.String(), nil, userIdentity())
	req = withURLParam(req, "id", id.String())

	w := httptest.NewRecorder()
	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, id, svc.deletedID)
}

func TestNotificationHandlerStats(t *testing.T) {
	t.Parallel()

	t.Run("returns the stats payload", func(t *testing.T) {
		t.Parallel()
		handler := newTestHandler(&stubNotificationService{
			stats: &service.NotificationStats{Total: 5, Unread: 2, Sent: 3},
		})

		w := httptest.NewRecorder()
		handler.Stats(w, authedRequest(http.MethodGet, "/notifications/stats", nil, userIdentity()))

		assert.Equal(t, http.StatusOK, w.Code)

		var resp service.NotificationStats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(5), resp.Total)
		assert.Equal(t, int64(2), resp.Unread)
	})

	t.Run("maps store failures to 500 with a safe message", func(t *testing.T) {
		t.Parallel()
		handler := newTestHandler(&stubNotificationService{
			opErr: errors.New("mongodb://admin:hunter2@db:27017 timeout"),
		})

		w := httptest.NewRecorder()
		handler.Stats(w, authedRequest(http.MethodGet, "/notifications/stats", nil, userIdentity()))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "hunter2")
	})
}

func TestNotificationHandlerMarkAsRead(t *testing.T) {
	t.Parallel()

	identity := userIdentity()
	notification, err := domain.NewNotification(identity.UserID(), "A", "a",
		domain.NotificationTypeReminder)
	require.NoError(t, err)
	notification.MarkRead()

	handler := newTestHandler(&stubNotificationService{notification: notification})

	req := authedRequest(http.MethodPut, "/notifications/x/read", nil, identity)
	req = withURLParam(req, "id", notification.ID.String())

	w := httptest.NewRecorder()
	handler.MarkAsRead(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp NotificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotNil(t, resp.ReadAt)
	assert.Equal(t, string(domain.NotificationStatusRead), resp.Status)
}
