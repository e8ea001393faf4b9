package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/notify-api/internal/domain"
	"github.com/phrazzld/notify-api/internal/store"
)

// fakeNotificationStore is an in-memory store.NotificationStore. It stores
// copies so mutations only become visible through Update, like a real store.
type fakeNotificationStore struct {
	records map[uuid.UUID]domain.Notification

	insertErr error
	updateErr error
}

var _ store.NotificationStore = (*fakeNotificationStore)(nil)

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{records: make(map[uuid.UUID]domain.Notification)}
}

func (f *fakeNotificationStore) Insert(_ context.Context, n *domain.Notification) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records[n.ID] = *n
	return nil
}

func (f *fakeNotificationStore) GetByID(
	_ context.Context,
	id, userID uuid.UUID,
) (*domain.Notification, error) {
	rec, ok := f.records[id]
	if !ok || rec.UserID != userID || rec.Deleted {
		return nil, store.ErrNotificationNotFound
	}
	out := rec
	return &out, nil
}

func (f *fakeNotificationStore) GetByIDIncludeDeleted(
	_ context.Context,
	id, userID uuid.UUID,
) (*domain.Notification, error) {
	rec, ok := f.records[id]
	if !ok || rec.UserID != userID {
		return nil, store.ErrNotificationNotFound
	}
	out := rec
	return &out, nil
}

func (f *fakeNotificationStore) Update(_ context.Context, n *domain.Notification) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.records[n.ID]; !ok {
		return store.ErrNotificationNotFound
	}
	f.records[n.ID] = *n
	return nil
}

func (f *fakeNotificationStore) list(
	match func(domain.Notification) bool,
) []*domain.Notification {
	var out []*domain.Notification
	for _, rec := range f.records {
		if rec.Deleted || !match(rec) {
			continue
		}
		cp := rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (f *fakeNotificationStore) ListByUser(
	_ context.Context,
	userID uuid.UUID,
) ([]*domain.Notification, error) {
	return f.list(func(n domain.Notification) bool { return n.UserID == userID }), nil
}

func (f *fakeNotificationStore) ListByStatus(
	_ context.Context,
	userID uuid.UUID,
	status domain.NotificationStatus,
) ([]*domain.Notification, error) {
	return f.list(func(n domain.Notification) bool {
		return n.UserID == userID && n.Status == status
	}), nil
}

func (f *fakeNotificationStore) ListByType(
	_ context.Context,
	userID uuid.UUID,
	notificationType domain.NotificationType,
) ([]*domain.Notification, error) {
	return f.list(func(n domain.Notification) bool {
		return n.UserID == userID && n.Type == notificationType
	}), nil
}

func (f *fakeNotificationStore) ListByPriority(
	_ context.Context,
	userID uuid.UUID,
	priority domain.NotificationPriority,
) ([]*domain.Notification, error) {
	return f.list(func(n domain.Notification) bool {
		return n.UserID == userID && n.Priority == priority
	}), nil
}

func (f *fakeNotificationStore) ListUnread(
	_ context.Context,
	userID uuid.UUID,
) ([]*domain.Notification, error) {
	return f.list(func(n domain.Notification) bool {
		return n.UserID == userID && n.ReadAt == nil
	}), nil
}

func (f *fakeNotificationStore) ListRead(
	_ context.Context,
	userID uuid.UUID,
) ([]*domain.Notification, error) {
	return f.list(func(n domain.Notification) bool {
		return n.UserID == userID && n.ReadAt != nil
	}), nil
}

func (f *fakeNotificationStore) ListExpiredForUser(
	_ context.Context,
	userID uuid.UUID,
	now time.Time,
) ([]*domain.Notification, error) {
	return f.list(func(n domain.Notification) bool {
		return n.UserID == userID && n.ExpiresAt != nil && n.ExpiresAt.Before(now)
	}), nil
}

func (f *fakeNotificationStore) ListByTaskID(
	_ context.Context,
	taskID uuid.UUID,
) ([]*domain.Notification, error) {
	return f.list(func(n domain.Notification) bool {
		return n.TaskID != nil && *n.TaskID == taskID
	}), nil
}

func (f *fakeNotificationStore) ListExpiredSent(
	_ context.Context,
	now time.Time,
) ([]*domain.Notification, error) {
	return f.list(func(n domain.Notification) bool {
		return n.Status == domain.NotificationStatusSent &&
			n.ExpiresAt != nil && n.ExpiresAt.Before(now)
	}), nil
}

func (f *fakeNotificationStore) ListStalePending(
	_ context.Context,
	olderThan time.Time,
) ([]*domain.Notification, error) {
	return f.list(func(n domain.Notification) bool {
		return n.Status == domain.NotificationStatusPending && n.CreatedAt.Before(olderThan)
	}), nil
}

func (f *fakeNotificationStore) CountByUser(
	ctx context.Context,
	userID uuid.UUID,
) (int64, error) {
	list, _ := f.ListByUser(ctx, userID)
	return int64(len(list)), nil
}

func (f *fakeNotificationStore) CountUnread(
	ctx context.Context,
	userID uuid.UUID,
) (int64, error) {
	list, _ := f.ListUnread(ctx, userID)
	return int64(len(list)), nil
}

func (f *fakeNotificationStore) CountByStatus(
	ctx context.Context,
	userID uuid.UUID,
	status domain.NotificationStatus,
) (int64, error) {
	list, _ := f.ListByStatus(ctx, userID, status)
	return int64(len(list)), nil
}

// fakePublisher records publishes and optionally fails them.
type fakePublisher struct {
	published []uuid.UUID
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, n *domain.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, n.ID)
	return nil
}

func newTestNotificationService(
	t *testing.T,
) (*notificationService, *fakeNotificationStore, *fakePublisher) {
	t.Helper()
	notifications := newFakeNotificationStore()
	publisher := &fakePublisher{}
	svc, err := NewNotificationService(notifications, publisher, slog.Default())
	require.NoError(t, err)
	return svc.(*notificationService), notifications, publisher
}

func TestNotificationServiceCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("persists pending record and publishes it", func(t *testing.T) {
		t.Parallel()
		svc, notifications, publisher := newTestNotificationService(t)
		userID := uuid.New()

		created, err := svc.Create(ctx, userID, "Title", "Message",
			domain.NotificationTypeReminder, CreateNotificationParams{})
		require.NoError(t, err)

		assert.Equal(t, domain.NotificationStatusPending, created.Status)
		assert.Equal(t, domain.NotificationPriorityMedium, created.Priority)
		assert.Equal(t, []uuid.UUID{created.ID}, publisher.published)

		stored, err := notifications.GetByID(ctx, created.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusPending, stored.Status)
	})

	t.Run("publish failure marks record failed and surfaces error", func(t *testing.T) {
		t.Parallel()
		svc, notifications, publisher := newTestNotificationService(t)
		publisher.err = errors.New("broker unavailable")
		userID := uuid.New()

		created, err := svc.Create(ctx, userID, "Title", "Message",
			domain.NotificationTypeReminder, CreateNotificationParams{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPublishFailed)
		require.NotNil(t, created, "caller still gets the persisted record")

		stored, storeErr := notifications.GetByID(ctx, created.ID, userID)
		require.NoError(t, storeErr)
		assert.Equal(t, domain.NotificationStatusFailed, stored.Status)
	})

	t.Run("rejects invalid input without persisting", func(t *testing.T) {
		t.Parallel()
		svc, notifications, _ := newTestNotificationService(t)

		_, err := svc.Create(ctx, uuid.New(), "", "Message",
			domain.NotificationTypeReminder, CreateNotificationParams{})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotificationTitleEmpty)
		assert.Empty(t, notifications.records)
	})

	t.Run("applies optional params", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestNotificationService(t)
		taskID := uuid.New()
		expiresAt := time.Now().UTC().Add(time.Hour)

		created, err := svc.Create(ctx, uuid.New(), "Title", "Message",
			domain.NotificationTypeTodoOverdue, CreateNotificationParams{
				TaskID:    &taskID,
				Priority:  domain.NotificationPriorityHigh,
				ExpiresAt: &expiresAt,
				ActionURL: "/todos/" + taskID.String(),
			})
		require.NoError(t, err)

		require.NotNil(t, created.TaskID)
		assert.Equal(t, taskID, *created.TaskID)
		assert.Equal(t, domain.NotificationPriorityHigh, created.Priority)
		require.NotNil(t, created.ExpiresAt)
		assert.True(t, created.ExpiresAt.Equal(expiresAt))
	})
}

func TestNotificationServiceConsumeFromQueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("successful delivery marks record sent", func(t *testing.T) {
		t.Parallel()
		svc, notifications, _ := newTestNotificationService(t)
		svc.SetDeliverFunc(func(context.Context, *domain.Notification) error { return nil })
		userID := uuid.New()

		created, err := svc.Create(ctx, userID, "Title", "Message",
			domain.NotificationTypeReminder, CreateNotificationParams{})
		require.NoError(t, err)

		require.NoError(t, svc.ConsumeFromQueue(ctx, created))

		stored, err := notifications.GetByID(ctx, created.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusSent, stored.Status)
		require.NotNil(t, stored.SentAt)
	})

	t.Run("sentAt survives redelivery", func(t *testing.T) {
		t.Parallel()
		svc, notifications, _ := newTestNotificationService(t)
		svc.SetDeliverFunc(func(context.Context, *domain.Notification) error { return nil })
		userID := uuid.New()

		created, err := svc.Create(ctx, userID, "Title", "Message",
			domain.NotificationTypeReminder, CreateNotificationParams{})
		require.NoError(t, err)

		require.NoError(t, svc.ConsumeFromQueue(ctx, created))
		first, err := notifications.GetByID(ctx, created.ID, userID)
		require.NoError(t, err)
		require.NotNil(t, first.SentAt)

		require.NoError(t, svc.ConsumeFromQueue(ctx, created))
		second, err := notifications.GetByID(ctx, created.ID, userID)
		require.NoError(t, err)
		require.NotNil(t, second.SentAt)
		assert.True(t, second.SentAt.Equal(*first.SentAt),
			"sentAt must keep the first delivery's timestamp")
	})

	t.Run("delivery failure marks record failed and returns error", func(t *testing.T) {
		t.Parallel()
		svc, notifications, _ := newTestNotificationService(t)
		deliveryErr := errors.New("smtp timeout")
		svc.SetDeliverFunc(func(context.Context, *domain.Notification) error {
			return deliveryErr
		})
		userID := uuid.New()

		created, err := svc.Create(ctx, userID, "Title", "Message",
			domain.NotificationTypeReminder, CreateNotificationParams{})
		require.NoError(t, err)

		err = svc.ConsumeFromQueue(ctx, created)
		require.Error(t, err)
		assert.ErrorIs(t, err, deliveryErr)

		stored, storeErr := notifications.GetByID(ctx, created.ID, userID)
		require.NoError(t, storeErr)
		assert.Equal(t, domain.NotificationStatusFailed, stored.Status)
		assert.Nil(t, stored.SentAt)
	})

	t.Run("unknown record is skipped without error", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestNotificationService(t)

		ghost, err := domain.NewNotification(uuid.New(), "Title", "Message",
			domain.NotificationTypeReminder)
		require.NoError(t, err)

		assert.NoError(t, svc.ConsumeFromQueue(ctx, ghost))
	})
}

func TestNotificationServiceHandleDeadLetter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("forces terminal failed status", func(t *testing.T) {
		t.Parallel()
		svc, notifications, _ := newTestNotificationService(t)
		userID := uuid.New()

		created, err := svc.Create(ctx, userID, "Title", "Message",
			domain.NotificationTypeReminder, CreateNotificationParams{})
		require.NoError(t, err)

		require.NoError(t, svc.HandleDeadLetter(ctx, created))

		stored, err := notifications.GetByID(ctx, created.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusFailed, stored.Status)
	})

	t.Run("already failed record is untouched", func(t *testing.T) {
		t.Parallel()
		svc, notifications, _ := newTestNotificationService(t)
		userID := uuid.New()

		created, err := svc.Create(ctx, userID, "Title", "Message",
			domain.NotificationTypeReminder, CreateNotificationParams{})
		require.NoError(t, err)
		require.NoError(t, svc.HandleDeadLetter(ctx, created))

		firstUpdated := notifications.records[created.ID].UpdatedAt
		require.NoError(t, svc.HandleDeadLetter(ctx, created))
		assert.True(t, notifications.records[created.ID].UpdatedAt.Equal(firstUpdated))
	})

	t.Run("unknown record is skipped without error", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestNotificationService(t)

		ghost, err := domain.NewNotification(uuid.New(), "Title", "Message",
			domain.NotificationTypeReminder)
		require.NoError(t, err)

		assert.NoError(t, svc.HandleDeadLetter(ctx, ghost))
	})
}

func TestNotificationServiceMarkAsRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _ := newTestNotificationService(t)
	userID := uuid.New()

	created, err := svc.Create(ctx, userID, "Title", "Message",
		domain.NotificationTypeReminder, CreateNotificationParams{})
	require.NoError(t, err)

	read, err := svc.MarkAsRead(ctx, created.ID, userID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)
	assert.Equal(t, domain.NotificationStatusRead, read.Status)

	// Second call keeps the first readAt.
	again, err := svc.MarkAsRead(ctx, created.ID, userID)
	require.NoError(t, err)
	assert.True(t, again.ReadAt.Equal(*read.ReadAt))

	// Wrong owner cannot read it.
	_, err = svc.MarkAsRead(ctx, created.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestNotificationServiceMarkAllAsRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _ := newTestNotificationService(t)
	userID := uuid.New()
	otherUser := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, userID, "Title", "Message",
			domain.NotificationTypeReminder, CreateNotificationParams{})
		require.NoError(t, err)
	}
	other, err := svc.Create(ctx, otherUser, "Title", "Message",
		domain.NotificationTypeReminder, CreateNotificationParams{})
	require.NoError(t, err)

	require.NoError(t, svc.MarkAllAsRead(ctx, userID))

	unread, err := svc.GetUnread(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, unread)

	// Other users' notifications are untouched.
	stored, err := svc.GetByID(ctx, other.ID, otherUser)
	require.NoError(t, err)
	assert.Nil(t, stored.ReadAt)
}

func TestNotificationServiceDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("soft-deletes and hides the record", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestNotificationService(t)
		userID := uuid.New()

		created, err := svc.Create(ctx, userID, "Title", "Message",
			domain.NotificationTypeReminder, CreateNotificationParams{})
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, created.ID, userID))

		_, err = svc.GetByID(ctx, created.ID, userID)
		assert.ErrorIs(t, err, ErrNotificationNotFound)
	})

	t.Run("second delete is a no-op", func(t *testing.T) {
		t.Parallel()
		svc, notifications, _ := newTestNotificationService(t)
		userID := uuid.New()

		created, err := svc.Create(ctx, userID, "Title", "Message",
			domain.NotificationTypeReminder, CreateNotificationParams{})
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, created.ID, userID))
		firstDeletedAt := notifications.records[created.ID].DeletedAt
		require.NotNil(t, firstDeletedAt)

		require.NoError(t, svc.Delete(ctx, created.ID, userID))
		assert.True(t, notifications.records[created.ID].DeletedAt.Equal(*firstDeletedAt))
	})

	t.Run("unknown id is an error", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestNotificationService(t)

		err := svc.Delete(ctx, uuid.New(), uuid.New())
		assert.ErrorIs(t, err, ErrNotificationNotFound)
	})
}

func TestNotificationServiceStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _ := newTestNotificationService(t)
	svc.SetDeliverFunc(func(context.Context, *domain.Notification) error { return nil })
	userID := uuid.New()

	pending, err := svc.Create(ctx, userID, "Pending", "Message",
		domain.NotificationTypeReminder, CreateNotificationParams{})
	require.NoError(t, err)
	_ = pending

	sent, err := svc.Create(ctx, userID, "Sent", "Message",
		domain.NotificationTypeReminder, CreateNotificationParams{})
	require.NoError(t, err)
	require.NoError(t, svc.ConsumeFromQueue(ctx, sent))

	read, err := svc.Create(ctx, userID, "Read", "Message",
		domain.NotificationTypeReminder, CreateNotificationParams{})
	require.NoError(t, err)
	_, err = svc.MarkAsRead(ctx, read.ID, userID)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Unread)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(1), stats.Sent)
	assert.Equal(t, int64(1), stats.Read)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestNotificationServiceCleanupExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, notifications, _ := newTestNotificationService(t)
	svc.SetDeliverFunc(func(context.Context, *domain.Notification) error { return nil })
	userID := uuid.New()

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	// Expired and SENT: cleaned.
	expiredSent, err := svc.Create(ctx, userID, "Expired", "Message",
		domain.NotificationTypeReminder, CreateNotificationParams{ExpiresAt: &past})
	require.NoError(t, err)
	require.NoError(t, svc.ConsumeFromQueue(ctx, expiredSent))

	// Expired but still PENDING: left for the stale-pending job.
	expiredPending, err := svc.Create(ctx, userID, "Pending", "Message",
		domain.NotificationTypeReminder, CreateNotificationParams{ExpiresAt: &past})
	require.NoError(t, err)

	// SENT but not expired: kept.
	liveSent, err := svc.Create(ctx, userID, "Live", "Message",
		domain.NotificationTypeReminder, CreateNotificationParams{ExpiresAt: &future})
	require.NoError(t, err)
	require.NoError(t, svc.ConsumeFromQueue(ctx, liveSent))

	cleaned, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleaned)

	assert.True(t, notifications.records[expiredSent.ID].Deleted)
	assert.False(t, notifications.records[expiredPending.ID].Deleted)
	assert.False(t, notifications.records[liveSent.ID].Deleted)
}

func TestNotificationServiceCleanupStalePending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, notifications, _ := newTestNotificationService(t)
	userID := uuid.New()

	stale, err := svc.Create(ctx, userID, "Stale", "Message",
		domain.NotificationTypeReminder, CreateNotificationParams{})
	require.NoError(t, err)
	// Backdate past the threshold.
	rec := notifications.records[stale.ID]
	rec.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	notifications.records[stale.ID] = rec

	fresh, err := svc.Create(ctx, userID, "Fresh", "Message",
		domain.NotificationTypeReminder, CreateNotificationParams{})
	require.NoError(t, err)

	failed, err := svc.CleanupStalePending(ctx, 24)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	assert.Equal(t, domain.NotificationStatusFailed, notifications.records[stale.ID].Status)
	assert.Equal(t, domain.NotificationStatusPending, notifications.records[fresh.ID].Status)
}

func TestNotificationServiceSendWelcome(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _ := newTestNotificationService(t)
	userID := uuid.New()

	require.NoError(t, svc.SendWelcome(ctx, userID))

	list, err := svc.GetByType(ctx, userID, domain.NotificationTypeUserWelcome)
	require.NoError(t, err)
	require.Len(t, list, 1)

	welcome := list[0]
	assert.Equal(t, "Welcome to TodoList App!", welcome.Title)
	assert.Equal(t, domain.NotificationPriorityLow, welcome.Priority)
	require.NotNil(t, welcome.ExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().Add(welcomeExpiry), *welcome.ExpiresAt, time.Minute)
}

func TestNotificationServiceSendAnnouncement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("fans out to every user", func(t *testing.T) {
		t.Parallel()
		svc, _, publisher := newTestNotificationService(t)
		users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

		require.NoError(t, svc.SendAnnouncement(ctx, "Maintenance", "Scheduled downtime", users))
		assert.Len(t, publisher.published, len(users))

		for _, userID := range users {
			list, err := svc.GetByType(ctx, userID, domain.NotificationTypeSystemAnnouncement)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, domain.NotificationPriorityMedium, list[0].Priority)
			require.NotNil(t, list[0].ExpiresAt)
			assert.WithinDuration(t,
				time.Now().UTC().Add(announcementExpiry), *list[0].ExpiresAt, time.Minute)
		}
	})

	t.Run("one failing user does not stop the fan-out", func(t *testing.T) {
		t.Parallel()
		svc, notifications, _ := newTestNotificationService(t)
		users := []uuid.UUID{uuid.New(), uuid.New()}

		// Every publish fails, so every create errors; the fan-out must still
		// attempt all users and persist FAILED records for each.
		svc.publisher = &fakePublisher{err: errors.New("broker down")}

		err := svc.SendAnnouncement(ctx, "Maintenance", "Scheduled downtime", users)
		require.Error(t, err)
		assert.Len(t, notifications.records, len(users))
	})
}
