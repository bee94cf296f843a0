package service

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/example/complaintflow/backend/internal/models"
	"github.com/example/complaintflow/backend/internal/mq"
	"github.com/example/complaintflow/backend/internal/repository"
)

// notificationDraft is a pending fan-out target collected while a transition
// runs. Drafts with a zero recipient are dropped at persistence time; this
// is the guard that quietly swallows the not-yet-modeled client contact.
type notificationDraft struct {
	recipientID uint
	channel     models.NotificationChannel
	title       string
	message     string
}

// Notifier persists notification records inside the transition transaction
// and publishes them to the event bus after commit. Delivery is best-effort:
// a publish failure is logged and never surfaces to the transition caller.
type Notifier struct {
	notifications *repository.NotificationRepository
	publisher     mq.Publisher
}

// NewNotifier builds a notifier. publisher may be nil when the bus is down;
// records are still persisted and picked up by the delivery worker later.
func NewNotifier(notifications *repository.NotificationRepository, publisher mq.Publisher) *Notifier {
	return &Notifier{notifications: notifications, publisher: publisher}
}

// createAll persists the drafts for one complaint inside tx and returns the
// created records for post-commit dispatch.
func (n *Notifier) createAll(ctx context.Context, tx *gorm.DB, complaintID uint, drafts []notificationDraft) ([]models.Notification, error) {
	repo := n.notifications.WithTx(tx)
	created := make([]models.Notification, 0, len(drafts))
	for _, d := range drafts {
		if d.recipientID == 0 {
			continue
		}
		record := models.Notification{
			ComplaintID: complaintID,
			RecipientID: d.recipientID,
			Channel:     d.channel,
			Title:       d.title,
			Message:     d.message,
		}
		if err := repo.Create(ctx, &record); err != nil {
			return nil, err
		}
		created = append(created, record)
	}
	return created, nil
}

// Dispatch publishes the created records to the bus. Failures are logged and
// swallowed; the delivery worker will retry anything still unsent.
func (n *Notifier) Dispatch(ctx context.Context, notifications []models.Notification) {
	if n.publisher == nil {
		return
	}
	for _, record := range notifications {
		event := mq.NewEvent(record.ComplaintID, "notification.created", map[string]any{
			"notificationId": record.ID,
			"recipientId":    record.RecipientID,
			"channel":        record.Channel,
			"title":          record.Title,
		})
		key := fmt.Sprintf("notification.%s", record.Channel)
		if err := n.publisher.Publish(ctx, key, event); err != nil {
			log.Printf("publish %s for notification %d failed: %v", key, record.ID, err)
		}
	}
}

// ScannerDraft is a notification draft handed in by background workers that
// cannot use the unexported transition machinery.
type ScannerDraft struct {
	RecipientID uint
	Channel     models.NotificationChannel
	Title       string
	Message     string
}

// CreateForScanner persists worker-produced drafts for a complaint inside tx.
func (n *Notifier) CreateForScanner(ctx context.Context, tx *gorm.DB, c *models.Complaint, drafts []ScannerDraft) ([]models.Notification, error) {
	internal := make([]notificationDraft, 0, len(drafts))
	for _, d := range drafts {
		internal = append(internal, notificationDraft{
			recipientID: d.RecipientID,
			channel:     d.Channel,
			title:       d.Title,
			message:     d.Message,
		})
	}
	return n.createAll(ctx, tx, c.ID, internal)
}
