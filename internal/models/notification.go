package models

import "time"

// NotificationChannel is the delivery medium for a notification.
type NotificationChannel string

const (
	ChannelPush  NotificationChannel = "push"
	ChannelSMS   NotificationChannel = "sms"
	ChannelEmail NotificationChannel = "email"
	ChannelPC    NotificationChannel = "pc"
)

// Notification is a fire-and-forget record created by complaint transitions.
// After creation only the sent/read flags change.
type Notification struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	ComplaintID uint                `gorm:"index" json:"complaintId"`
	Complaint   *Complaint          `gorm:"foreignKey:ComplaintID" json:"-"`
	RecipientID uint                `gorm:"index" json:"recipientId"`
	Recipient   *User               `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
	Channel     NotificationChannel `gorm:"size:10" json:"channel"`
	Title       string              `gorm:"size:255" json:"title"`
	Message     string              `json:"message"`
	IsSent      bool                `gorm:"default:false;index" json:"isSent"`
	SentAt      *time.Time          `json:"sentAt"`
	IsRead      bool                `gorm:"default:false;index" json:"isRead"`
	ReadAt      *time.Time          `json:"readAt"`
	CreatedAt   time.Time           `json:"createdAt"`
}
