package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/complaintflow/backend/internal/apperr"
	"github.com/example/complaintflow/backend/internal/models"
)

// NotificationRepository persists notification records.
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository using the provided gorm DB.
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *NotificationRepository) WithTx(tx *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: tx}
}

// Create persists the notification record.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(n).Error)
}

// FindByID returns the notification by id.
func (r *NotificationRepository) FindByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).Preload("Recipient").First(&n, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("notification not found")
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &n, nil
}

// ListByRecipient returns the recipient's notifications newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID uint, unreadOnly bool) ([]models.Notification, error) {
	q := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var notifications []models.Notification
	err := q.Order("created_at desc").Find(&notifications).Error
	return notifications, errors.WithStack(err)
}

// MarkSent stamps delivery on a notification, best-effort bookkeeping.
func (r *NotificationRepository) MarkSent(ctx context.Context, id uint) error {
	now := time.Now().UTC()
	return errors.WithStack(r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_sent": true, "sent_at": now}).Error)
}

// MarkRead flags one notification read for its recipient.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID uint) (*models.Notification, error) {
	n, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != recipientID {
		return nil, apperr.Forbidden("notification belongs to another user")
	}
	if !n.IsRead {
		now := time.Now().UTC()
		n.IsRead = true
		n.ReadAt = &now
		if err := r.db.WithContext(ctx).
			Model(&models.Notification{}).
			Where("id = ?", id).
			Updates(map[string]any{"is_read": true, "read_at": now}).Error; err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return n, nil
}

// MarkAllRead flags every unread notification of the recipient and returns
// how many rows changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	return res.RowsAffected, errors.WithStack(res.Error)
}

// ListUnsent returns notifications not yet delivered, oldest first.
func (r *NotificationRepository) ListUnsent(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Preload("Recipient").
		Where("is_sent = ?", false).
		Order("created_at asc").
		Limit(limit).
		Find(&notifications).Error
	return notifications, errors.WithStack(err)
}
