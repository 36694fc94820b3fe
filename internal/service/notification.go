package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ripple-community/pebs-api/internal/domain"
	"github.com/ripple-community/pebs-api/internal/models"
	"github.com/ripple-community/pebs-api/internal/observability"
	"github.com/ripple-community/pebs-api/internal/presence"
	"github.com/ripple-community/pebs-api/internal/repository"
	"go.uber.org/zap"
)

// NotificationService persists notifications and attempts a best-effort live
// push. The persisted row is the durable record; a failed or dropped push is
// never an error, the recipient picks the row up on their next fetch.
type NotificationService struct {
	repo     *repository.Repository
	presence presence.Presence
}

func NewNotificationService(repo *repository.Repository, p presence.Presence) *NotificationService {
	return &NotificationService{repo: repo, presence: p}
}

// Notify stores a notification row and, when the recipient has a live channel,
// pushes the same content as an ephemeral event. The returned error covers the
// persist step only.
func (s *NotificationService) Notify(ctx context.Context, recipientID uuid.UUID, ntype, title, message string, data models.NotificationData, priority string) (*models.Notification, error) {
	if !domain.ValidPriority(priority) {
		priority = domain.PriorityMedium
	}

	n := &models.Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		Type:        ntype,
		Title:       title,
		Message:     message,
		Data:        data,
		Priority:    priority,
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		observability.IncrementNotification("persist_failed")
		return nil, fmt.Errorf("persist notification: %w", err)
	}
	observability.IncrementNotification("persisted")

	if s.presence != nil && s.presence.IsOnline(ctx, recipientID) {
		event := presence.Event{Type: ntype, Title: title, Message: message, Data: data}
		if s.presence.Push(ctx, recipientID, event) {
			observability.IncrementNotification("pushed")
		} else {
			observability.IncrementNotification("push_dropped")
			zap.L().Debug("live push dropped", zap.String("recipient", recipientID.String()), zap.String("type", ntype))
		}
	}
	return n, nil
}

func (s *NotificationService) ListForUser(ctx context.Context, userID uuid.UUID, onlyUnread bool, page, pageSize int) ([]models.Notification, int64, error) {
	limit, offset := clampPage(page, pageSize)
	return s.repo.ListNotifications(ctx, userID, onlyUnread, limit, offset)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkNotificationRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllNotificationsRead(ctx, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.UnreadNotificationCount(ctx, userID)
}

func clampPage(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return pageSize, (page - 1) * pageSize
}
