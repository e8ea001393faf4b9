// Package scheduler runs the periodic notification jobs: the overdue and
// due-soon scans, the daily cleanup pass, and the welcome check. Each job
// holds its own mutex so a slow run cannot overlap with the next tick of the
// same job, while distinct jobs stay concurrent.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/notify-api/internal/config"
	"github.com/phrazzld/notify-api/internal/service"
	"github.com/phrazzld/notify-api/internal/store"
)

// Scheduler owns the background job goroutines.
type Scheduler struct {
	notifications service.NotificationService
	tasks         service.TaskService
	users         store.UserStore
	cfg           config.SchedulerConfig
	logger        *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	overdueMu sync.Mutex
	dueSoonMu sync.Mutex
	cleanupMu sync.Mutex
	welcomeMu sync.Mutex
}

// New creates a Scheduler. Returns an error if any dependency is nil.
func New(
	notifications service.NotificationService,
	tasks service.TaskService,
	users store.UserStore,
	cfg config.SchedulerConfig,
	logger *slog.Logger,
) (*Scheduler, error) {
	if notifications == nil {
		return nil, errors.New("notification service cannot be nil")
	}
	if tasks == nil {
		return nil, errors.New("task service cannot be nil")
	}
	if users == nil {
		return nil, errors.New("user store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		notifications: notifications,
		tasks:         tasks,
		users:         users,
		cfg:           cfg,
		logger:        logger.With("component", "scheduler"),
		ctx:           ctx,
		cancelFunc:    cancel,
	}, nil
}

// Start launches the job goroutines. Jobs fire on their intervals until Stop.
func (s *Scheduler) Start() {
	s.wg.Add(4)
	go s.runTicker("overdue_scan", s.cfg.OverdueInterval, s.ScanOverdue)
	go s.runTicker("due_soon_scan", s.cfg.DueSoonInterval, s.ScanDueSoon)
	go s.runTicker("welcome_check", s.cfg.WelcomeInterval, s.CheckWelcome)
	go s.runDailyCleanup()

	s.logger.Info("scheduler started",
		"overdue_interval", s.cfg.OverdueInterval,
		"due_soon_interval", s.cfg.DueSoonInterval,
		"welcome_interval", s.cfg.WelcomeInterval,
		"cleanup_hour_utc", s.cfg.CleanupHourUTC)
}

// Stop cancels the job goroutines and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.cancelFunc()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// runTicker fires job on a fixed interval until the scheduler stops.
func (s *Scheduler) runTicker(name string, interval time.Duration, job func(context.Context) error) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := job(s.ctx); err != nil {
				s.logger.Error("scheduled job failed", "job", name, "error", err)
			}
		}
	}
}

// runDailyCleanup sleeps until the configured UTC hour, runs the cleanup
// pass, and repeats.
func (s *Scheduler) runDailyCleanup() {
	defer s.wg.Done()

	for {
		timer := time.NewTimer(time.Until(s.nextCleanupTime(time.Now().UTC())))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.RunCleanup(s.ctx); err != nil {
				s.logger.Error("scheduled job failed", "job", "cleanup", "error", err)
			}
		}
	}
}

// nextCleanupTime returns the next occurrence of the configured cleanup hour
// strictly after now.
func (s *Scheduler) nextCleanupTime(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.CleanupHourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// ScanOverdue emits overdue notifications for every active user. A failure
// for one user is logged and does not stop the scan.
func (s *Scheduler) ScanOverdue(ctx context.Context) error {
	s.overdueMu.Lock()
	defer s.overdueMu.Unlock()

	users, err := s.users.ListActive(ctx)
	if err != nil {
		return err
	}

	total := 0
	for _, user := range users {
		created, err := s.tasks.NotifyOverdue(ctx, user.ID)
		if err != nil {
			s.logger.Error("overdue scan failed for user",
				"user_id", user.ID,
				"error", err)
			continue
		}
		total += created
	}

	s.logger.Info("overdue scan complete",
		"users", len(users),
		"notifications_created", total)
	return nil
}

// ScanDueSoon emits due-soon notifications for every active user, using the
// configured look-ahead window. Same per-user error isolation as ScanOverdue.
func (s *Scheduler) ScanDueSoon(ctx context.Context) error {
	s.dueSoonMu.Lock()
	defer s.dueSoonMu.Unlock()

	users, err := s.users.ListActive(ctx)
	if err != nil {
		return err
	}

	total := 0
	for _, user := range users {
		created, err := s.tasks.NotifyDueSoon(ctx, user.ID, s.cfg.DueSoonWindowHours)
		if err != nil {
			s.logger.Error("due-soon scan failed for user",
				"user_id", user.ID,
				"error", err)
			continue
		}
		total += created
	}

	s.logger.Info("due-soon scan complete",
		"users", len(users),
		"notifications_created", total)
	return nil
}

// RunCleanup soft-deletes expired SENT notifications, then fails PENDING
// records older than the configured threshold. The second pass catches
// messages that were lost without ever reaching the dead-letter queue.
func (s *Scheduler) RunCleanup(ctx context.Context) error {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()

	expired, err := s.notifications.CleanupExpired(ctx)
	if err != nil {
		return err
	}

	stale, err := s.notifications.CleanupStalePending(ctx, s.cfg.StalePendingHours)
	if err != nil {
		return err
	}

	s.logger.Info("cleanup complete",
		"expired_cleaned", expired,
		"stale_failed", stale)
	return nil
}

// CheckWelcome is the welcome-notification poll. Welcome notifications are
// currently sent at registration time, so the periodic check has nothing to
// do yet.
// TODO: detect users registered since the last tick and send their welcome
// here once registration stops doing it inline.
func (s *Scheduler) CheckWelcome(_ context.Context) error {
	s.welcomeMu.Lock()
	defer s.welcomeMu.Unlock()

	s.logger.Debug("welcome check complete")
	return nil
}
