// Package api provides HTTP handlers for the API.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/notify-api/internal/api/shared"
	"github.com/phrazzld/notify-api/internal/domain"
	"github.com/phrazzld/notify-api/internal/service"
	"github.com/phrazzld/notify-api/internal/store"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationService service.NotificationService
	userStore           store.UserStore
	stalePendingHours   int
	logger              *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(
	notificationService service.NotificationService,
	userStore store.UserStore,
	stalePendingHours int,
	logger *slog.Logger,
) *NotificationHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for NotificationHandler")
	}

	return &NotificationHandler{
		notificationService: notificationService,
		userStore:           userStore,
		stalePendingHours:   stalePendingHours,
		logger:              logger.With(slog.String("component", "notification_handler")),
	}
}

// identity extracts the authenticated identity or writes a 401.
func (h *NotificationHandler) identity(w http.ResponseWriter, r *http.Request) (shared.Identity, bool) {
	identity, ok := shared.GetIdentity(r.Context())
	if !ok || identity.UserID() == uuid.Nil {
		h.logger.Warn("identity not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return shared.Identity{}, false
	}
	return identity, true
}

// pathID parses a UUID path parameter or writes a 400.
func (h *NotificationHandler) pathID(
	w http.ResponseWriter,
	r *http.Request,
	param string,
) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// respondList writes a notification list or an error response.
func (h *NotificationHandler) respondList(
	w http.ResponseWriter,
	r *http.Request,
	list []*domain.Notification,
	err error,
) {
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, notificationsToResponse(list))
}

// Create handles POST /notifications requests.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req CreateNotificationRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	notificationType, err := domain.ParseNotificationType(req.Type)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid notification type")
		return
	}

	params := service.CreateNotificationParams{
		ExpiresAt: req.ExpiresAt,
		ActionURL: req.ActionURL,
		Metadata:  req.Metadata,
	}
	if req.Priority != "" {
		priority, err := domain.ParseNotificationPriority(req.Priority)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid notification priority")
			return
		}
		params.Priority = priority
	}
	if req.TaskID != "" {
		taskID, err := uuid.Parse(req.TaskID)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task_id")
			return
		}
		params.TaskID = &taskID
	}

	notification, err := h.notificationService.Create(
		r.Context(), identity.UserID(), req.Title, req.Message, notificationType, params)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.logger.Debug("notification created",
		slog.String("notification_id", notification.ID.String()),
		slog.String("user_id", identity.UserID().String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, notificationToResponse(notification))
}

// GetAll handles GET /notifications requests.
func (h *NotificationHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	list, err := h.notificationService.GetAll(r.Context(), identity.UserID())
	h.respondList(w, r, list, err)
}

// GetByID handles GET /notifications/{id} requests.
func (h *NotificationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	notification, err := h.notificationService.GetByID(r.Context(), id, identity.UserID())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, notificationToResponse(notification))
}

// GetUnread handles GET /notifications/unread requests.
func (h *NotificationHandler) GetUnread(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	list, err := h.notificationService.GetUnread(r.Context(), identity.UserID())
	h.respondList(w, r, list, err)
}

// GetRead handles GET /notifications/read requests.
func (h *NotificationHandler) GetRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	list, err := h.notificationService.GetRead(r.Context(), identity.UserID())
	h.respondList(w, r, list, err)
}

// GetExpired handles GET /notifications/expired requests.
func (h *NotificationHandler) GetExpired(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	list, err := h.notificationService.GetExpired(r.Context(), identity.UserID())
	h.respondList(w, r, list, err)
}

// GetByStatus handles GET /notifications/status/{status} requests.
func (h *NotificationHandler) GetByStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	status, err := domain.ParseNotificationStatus(chi.URLParam(r, "status"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid notification status")
		return
	}

	list, err := h.notificationService.GetByStatus(r.Context(), identity.UserID(), status)
	h.respondList(w, r, list, err)
}

// GetByType handles GET /notifications/type/{type} requests.
func (h *NotificationHandler) GetByType(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	notificationType, err := domain.ParseNotificationType(chi.URLParam(r, "type"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid notification type")
		return
	}

	list, err := h.notificationService.GetByType(r.Context(), identity.UserID(), notificationType)
	h.respondList(w, r, list, err)
}

// GetByPriority handles GET /notifications/priority/{priority} requests.
func (h *NotificationHandler) GetByPriority(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	priority, err := domain.ParseNotificationPriority(chi.URLParam(r, "priority"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid notification priority")
		return
	}

	list, err := h.notificationService.GetByPriority(r.Context(), identity.UserID(), priority)
	h.respondList(w, r, list, err)
}

// GetByTaskID handles GET /notifications/todo/{taskID} requests.
func (h *NotificationHandler) GetByTaskID(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.identity(w, r); !ok {
		return
	}
	taskID, ok := h.pathID(w, r, "taskID")
	if !ok {
		return
	}

	list, err := h.notificationService.GetByTaskID(r.Context(), taskID)
	h.respondList(w, r, list, err)
}

// Stats handles GET /notifications/stats requests.
func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	stats, err := h.notificationService.Stats(r.Context(), identity.UserID())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// UnreadCount handles GET /notifications/unread/count requests.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	stats, err := h.notificationService.Stats(r.Context(), identity.UserID())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CountResponse{Count: stats.Unread})
}

// Update handles PUT /notifications/{id} requests.
func (h *NotificationHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateNotificationRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	notificationType, err := domain.ParseNotificationType(req.Type)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid notification type")
		return
	}
	priority, err := domain.ParseNotificationPriority(req.Priority)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid notification priority")
		return
	}

	notification, err := h.notificationService.Update(r.Context(), id, identity.UserID(),
		service.UpdateNotificationParams{
			Title:     req.Title,
			Message:   req.Message,
			Type:      notificationType,
			Priority:  priority,
			ExpiresAt: req.ExpiresAt,
			ActionURL: req.ActionURL,
			Metadata:  req.Metadata,
		})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, notificationToResponse(notification))
}

// MarkAsRead handles PUT /notifications/{id}/read requests.
func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	notification, err := h.notificationService.MarkAsRead(r.Context(), id, identity.UserID())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, notificationToResponse(notification))
}

// MarkAllAsRead handles PUT /notifications/read-all requests.
func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	if err := h.notificationService.MarkAllAsRead(r.Context(), identity.UserID()); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /notifications/{id} requests.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.notificationService.Delete(r.Context(), id, identity.UserID()); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAll handles DELETE /notifications requests.
func (h *NotificationHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	if err := h.notificationService.DeleteAll(r.Context(), identity.UserID()); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendWelcome handles POST /notifications/welcome requests. It creates a
// welcome notification for the authenticated user.
func (h *NotificationHandler) SendWelcome(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	if err := h.notificationService.SendWelcome(r.Context(), identity.UserID()); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// SendAnnouncement handles POST /notifications/admin/announcement requests.
// An empty user list targets every active user. Admin only.
func (h *NotificationHandler) SendAnnouncement(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.identity(w, r); !ok {
		return
	}

	var req AnnouncementRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	var userIDs []uuid.UUID
	if len(req.UserIDs) > 0 {
		for _, raw := range req.UserIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid user ID: "+raw)
				return
			}
			userIDs = append(userIDs, id)
		}
	} else {
		users, err := h.userStore.ListActive(r.Context())
		if err != nil {
			shared.RespondWithErrorAndLog(w, r,
				http.StatusInternalServerError, "Failed to list users", err)
			return
		}
		for _, user := range users {
			userIDs = append(userIDs, user.ID)
		}
	}

	err := h.notificationService.SendAnnouncement(r.Context(), req.Title, req.Message, userIDs)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.logger.Info("announcement sent", slog.Int("recipients", len(userIDs)))
	w.WriteHeader(http.StatusCreated)
}

// RunCleanup handles POST /notifications/admin/cleanup requests. It runs the
// same two passes as the nightly job. Admin only.
func (h *NotificationHandler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.identity(w, r); !ok {
		return
	}

	expired, err := h.notificationService.CleanupExpired(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	stale, err := h.notificationService.CleanupStalePending(r.Context(), h.stalePendingHours)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CleanupResponse{
		ExpiredCleaned: expired,
		StaleFailed:    stale,
	})
}
