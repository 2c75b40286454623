package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/skytrail/booking-system/booking-service/saga"
	"github.com/skytrail/booking-system/shared/events"
	"github.com/skytrail/booking-system/shared/models"
)

// SNSNotifier delivers customer-facing booking notifications by publishing
// them to the event bus. The published event ID doubles as the notification
// ID reported back to the saga.
type SNSNotifier struct {
	publisher events.Publisher
}

// NewSNSNotifier creates a new SNSNotifier
func NewSNSNotifier(publisher events.Publisher) *SNSNotifier {
	return &SNSNotifier{publisher: publisher}
}

// BookingNotificationData is the payload for customer booking notifications
type BookingNotificationData struct {
	ExecutionID      models.ID `json:"execution_id"`
	Status           string    `json:"status"`
	BookingReference string    `json:"booking_reference,omitempty"`
	NotifiedAt       time.Time `json:"notified_at"`
}

// Notify publishes the booking outcome notification and returns its ID
func (n *SNSNotifier) Notify(ctx context.Context, executionID models.ID, status saga.OutcomeStatus, bookingReference string) (models.ID, error) {
	eventType := events.BookingConfirmedEvent
	if status == saga.OutcomeFailed {
		eventType = events.BookingFailedEvent
	}

	event := events.NewEvent(executionID, eventType, BookingNotificationData{
		ExecutionID:      executionID,
		Status:           string(status),
		BookingReference: bookingReference,
		NotifiedAt:       time.Now(),
	}).WithCorrelationID(executionID)

	if err := n.publisher.Publish(ctx, event); err != nil {
		return "", errors.Wrap(err, "failed to publish booking notification")
	}

	return event.ID, nil
}
