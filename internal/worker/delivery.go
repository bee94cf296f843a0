package worker

import (
	"context"
	"encoding/json"
	"log"

	"github.com/rabbitmq/amqp091-go"

	"github.com/example/complaintflow/backend/internal/mq"
	"github.com/example/complaintflow/backend/internal/repository"
)

type deliveryPayload struct {
	NotificationID uint   `json:"notificationId"`
	RecipientID    uint   `json:"recipientId"`
	Channel        string `json:"channel"`
	Title          string `json:"title"`
}

// DeliveryWorker consumes notification events off the queue and marks the
// corresponding record as sent. Actual SMS/email gateways would hook in
// here; for now delivery is the bookkeeping step.
type DeliveryWorker struct {
	consumer      mq.Consumer
	notifications *repository.NotificationRepository
}

func NewDeliveryWorker(consumer mq.Consumer, notifications *repository.NotificationRepository) *DeliveryWorker {
	return &DeliveryWorker{consumer: consumer, notifications: notifications}
}

// Run subscribes to the delivery queue. It returns once the subscription is
// established; message handling continues in the consumer's goroutine.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	return w.consumer.Consume(func(msg amqp091.Delivery) {
		var event mq.Event
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			log.Printf("delivery worker: bad message: %v", err)
			msg.Nack(false, false)
			return
		}
		var payload deliveryPayload
		raw, err := json.Marshal(event.Payload)
		if err == nil {
			err = json.Unmarshal(raw, &payload)
		}
		if err != nil || payload.NotificationID == 0 {
			log.Printf("delivery worker: message %s has no notification id", event.ID)
			msg.Ack(false)
			return
		}
		if err := w.notifications.MarkSent(ctx, payload.NotificationID); err != nil {
			log.Printf("delivery worker: mark notification %d sent: %v", payload.NotificationID, err)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
	})
}
