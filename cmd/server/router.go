package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/notify-api/internal/api"
	apiMiddleware "github.com/phrazzld/notify-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
	notificationHandler := api.NewNotificationHandler(
		app.notificationService,
		app.userStore,
		app.config.Scheduler.StalePendingHours,
		app.logger,
	)
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.GetAll)
				r.Post("/", notificationHandler.Create)
				r.Delete("/all", notificationHandler.DeleteAll)

				r.Get("/unread", notificationHandler.GetUnread)
				r.Get("/unread/count", notificationHandler.UnreadCount)
				r.Get("/read", notificationHandler.GetRead)
				r.Get("/expired", notificationHandler.GetExpired)
				r.Get("/stats", notificationHandler.Stats)
				r.Get("/status/{status}", notificationHandler.GetByStatus)
				r.Get("/type/{type}", notificationHandler.GetByType)
				r.Get("/priority/{priority}", notificationHandler.GetByPriority)
				r.Get("/todo/{taskID}", notificationHandler.GetByTaskID)

				r.Put("/read-all", notificationHandler.MarkAllAsRead)
				r.Post("/welcome", notificationHandler.SendWelcome)

				r.Get("/{id}", notificationHandler.GetByID)
				r.Put("/{id}", notificationHandler.Update)
				r.Put("/{id}/read", notificationHandler.MarkAsRead)
				r.Delete("/{id}", notificationHandler.Delete)

				// Admin endpoints
				r.Group(func(r chi.Router) {
					r.Use(authMiddleware.RequireAdmin)
					r.Post("/admin/announcement", notificationHandler.SendAnnouncement)
					r.Post("/admin/cleanup", notificationHandler.RunCleanup)
				})
			})

			r.Route("/todos", func(r chi.Router) {
				r.Get("/", taskHandler.GetAll)
				r.Post("/", taskHandler.Create)
				r.Get("/overdue", taskHandler.GetOverdue)
				r.Get("/{id}", taskHandler.GetByID)
				r.Put("/{id}", taskHandler.Update)
				r.Put("/{id}/complete", taskHandler.Complete)
				r.Delete("/{id}", taskHandler.Delete)
			})
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
