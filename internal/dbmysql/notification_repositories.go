package dbmysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"revline/internal/common"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{
		db: db,
	}
}

// Create stores notification. Re-delivering the same ID is a no-op so queued retries stay idempotent.
func (r *NotificationRepository) Create(ctx context.Context, notification *Notification) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(notification).Error
	if err != nil {
		return common.Backend("failed to create notification", err)
	}
	return nil
}

func (r *NotificationRepository) ByUserID(
	ctx context.Context,
	userID string,
	limit, offset int,
) ([]Notification, error) {
	var notifications []Notification

	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&notifications).Error; err != nil {
		return nil, common.Backend("failed to get user notifications", err)
	}

	return notifications, nil
}

// MarkAsRead flags one notification of userID as read. A second call is a no-op.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id, userID string) error {
	now := time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", id, userID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": &now,
		})

	if result.Error != nil {
		return common.Backend("failed to mark notification as read", result.Error)
	}

	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Count(&count).Error; err != nil {
		return common.Backend("failed to look up notification", err)
	}
	if count == 0 {
		return common.NotFound("notification", id)
	}

	return nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error

	if err != nil {
		return 0, common.Backend("failed to get unread count", err)
	}

	return count, nil
}
