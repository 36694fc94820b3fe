package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ripple-community/pebs-api/internal/domain"
	"github.com/ripple-community/pebs-api/internal/models"
	"github.com/ripple-community/pebs-api/internal/presence"
	"github.com/ripple-community/pebs-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyPersistsAndPushesWhenOnline(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	live := presence.NewMemory()
	svc := NewNotificationService(repo, live)
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	events, release := live.Subscribe(ama.ID)
	defer release()

	n, err := svc.Notify(ctx, ama.ID, domain.NotifySystemMessage,
		"Welcome", "Welcome to the community ledger.",
		models.NotificationData{}, domain.PriorityLow)
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityLow, n.Priority)

	select {
	case event := <-events:
		assert.Equal(t, domain.NotifySystemMessage, event.Type)
		assert.Equal(t, "Welcome", event.Title)
	case <-time.After(time.Second):
		t.Fatal("expected a live push for an online recipient")
	}

	stored, total, err := svc.ListForUser(ctx, ama.ID, false, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "Welcome", stored[0].Title)
	assert.False(t, stored[0].IsRead)
}

func TestNotifyOfflineRecipientStillPersists(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc := NewNotificationService(repo, presence.NewMemory())
	ctx := context.Background()

	ama := newMember(t, repo, "ama")

	_, err := svc.Notify(ctx, ama.ID, domain.NotifyDirectMessage,
		"Hello", "Are you coming to the repair cafe?",
		models.NotificationData{}, domain.PriorityMedium)
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, ama.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestNotifyNormalizesUnknownPriority(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc := NewNotificationService(repo, presence.NewMemory())

	ama := newMember(t, repo, "ama")

	n, err := svc.Notify(context.Background(), ama.ID, domain.NotifySystemMessage,
		"Ping", "Ping.", models.NotificationData{}, "urgent!!")
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityMedium, n.Priority)
}

func TestMarkReadEnforcesOwnership(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc := NewNotificationService(repo, presence.NewMemory())
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	kofi := newMember(t, repo, "kofi")

	n, err := svc.Notify(ctx, ama.ID, domain.NotifySystemMessage,
		"Ping", "Ping.", models.NotificationData{}, domain.PriorityLow)
	require.NoError(t, err)

	err = svc.MarkRead(ctx, n.ID, kofi.ID)
	assert.ErrorIs(t, err, models.ErrNotRecipient)

	require.NoError(t, svc.MarkRead(ctx, n.ID, ama.ID))

	count, err := svc.UnreadCount(ctx, ama.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkReadMissingNotification(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc := NewNotificationService(repo, presence.NewMemory())

	ama := newMember(t, repo, "ama")

	err := svc.MarkRead(context.Background(), uuid.New(), ama.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMarkAllRead(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc := NewNotificationService(repo, presence.NewMemory())
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	kofi := newMember(t, repo, "kofi")

	for i := 0; i < 3; i++ {
		_, err := svc.Notify(ctx, ama.ID, domain.NotifySystemMessage,
			"Ping", "Ping.", models.NotificationData{}, domain.PriorityLow)
		require.NoError(t, err)
	}
	_, err := svc.Notify(ctx, kofi.ID, domain.NotifySystemMessage,
		"Ping", "Ping.", models.NotificationData{}, domain.PriorityLow)
	require.NoError(t, err)

	updated, err := svc.MarkAllRead(ctx, ama.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, updated)

	// Kofi's notification is untouched.
	count, err := svc.UnreadCount(ctx, kofi.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	// Unread filter now returns an empty page for Ama.
	unread, total, err := svc.ListForUser(ctx, ama.ID, true, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, unread)
	assert.Zero(t, total)
}
