package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ripple-community/pebs-api/internal/domain"
	"github.com/ripple-community/pebs-api/internal/models"
)

func (r *Repository) CreateNotification(ctx context.Context, n *models.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}
	query := `INSERT INTO notifications (id, recipient_id, type, title, message, data, is_read, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, NOW())
		RETURNING is_read, created_at`
	err = r.db.QueryRow(ctx, query, n.ID, n.RecipientID, n.Type, n.Title, n.Message, data, n.Priority).
		Scan(&n.IsRead, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications pages a recipient's notifications, newest first.
func (r *Repository) ListNotifications(ctx context.Context, recipientID uuid.UUID, onlyUnread bool, limit, offset int) ([]models.Notification, int64, error) {
	query := `SELECT id, recipient_id, type, title, message, data, is_read, priority, created_at
		FROM notifications
		WHERE recipient_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.db.Query(ctx, query, recipientID, onlyUnread, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	items := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &data,
			&n.IsRead, &n.Priority, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal notification data: %w", err)
			}
		}
		items = append(items, n)
	}

	var total int64
	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND (NOT $2 OR NOT is_read)`,
		recipientID, onlyUnread).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return items, total, nil
}

// MarkNotificationRead flips the read flag; the recipient check keeps one user
// from acknowledging another's notifications.
func (r *Repository) MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) error {
	var owner uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT recipient_id FROM notifications WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		return models.ErrNotFound
	}
	if owner != recipientID {
		return models.ErrNotRecipient
	}
	_, err = r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (r *Repository) MarkAllNotificationsRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND NOT is_read`, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// HasRecentSupportNotice reports whether a community-support notification
// about the given member was created after the cutoff. Used to keep the
// support scan from re-announcing the same member every run.
func (r *Repository) HasRecentSupportNotice(ctx context.Context, subjectID uuid.UUID, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE type = $1 AND data->>'subject_id' = $2 AND created_at > $3
		)`, domain.NotifyCommunitySupport, subjectID.String(), since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check support notices: %w", err)
	}
	return exists, nil
}

func (r *Repository) UnreadNotificationCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read`, recipientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
