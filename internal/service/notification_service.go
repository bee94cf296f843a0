package service

import (
	"context"

	"github.com/example/complaintflow/backend/internal/models"
	"github.com/example/complaintflow/backend/internal/repository"
)

// NotificationService is the read side of the in-app notification feed.
type NotificationService struct {
	notifications *repository.NotificationRepository
}

func NewNotificationService(notifications *repository.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// List returns the actor's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor *models.User, unreadOnly bool) ([]models.Notification, error) {
	return s.notifications.ListByRecipient(ctx, actor.ID, unreadOnly)
}

// MarkRead marks one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor *models.User, id uint) error {
	_, err := s.notifications.MarkRead(ctx, id, actor.ID)
	return err
}

// MarkAllRead marks every unread notification of the actor as read and
// returns how many were affected.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor *models.User) (int64, error) {
	return s.notifications.MarkAllRead(ctx, actor.ID)
}
