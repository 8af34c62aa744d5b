package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/ids"
)

// CreateNotificationIfAbsent inserts n unless a notification for the same
// (user, company, kind, due date) already exists. It reports whether a new
// row was written.
func CreateNotificationIfAbsent(ctx context.Context, db *gorm.DB, n *domain.Notification) (bool, error) {
	if n.ID == "" {
		n.ID = ids.New()
	}
	if n.Status == "" {
		n.Status = domain.NotificationUnread
	}
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(n)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListNotificationsForUser returns a user's notifications, unread first and
// newest first within each group. limit <= 0 means no limit.
func ListNotificationsForUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	q := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("CASE WHEN status = 'unread' THEN 0 ELSE 1 END").
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// MarkNotificationRead flips a notification owned by userID to read. It
// returns ErrNotFound when the notification does not exist or belongs to
// someone else. Marking an already-read notification succeeds.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"status": domain.NotificationRead, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
