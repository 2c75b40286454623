package handlers

import (
	"context"
	"testing"

	"github.com/skytrail/booking-system/booking-service/application"
	"github.com/skytrail/booking-system/shared/events"
	"github.com/skytrail/booking-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingEventHandlers_HandleBookingRequested(t *testing.T) {
	_, orchestrator := newTestRouter(t)
	handler := NewBookingEventHandlers(application.NewStartBooking(orchestrator))

	event := events.NewEvent(models.GenerateUUID(), events.BookingRequestedEvent, BookingRequestedData{
		FlightID:    "550e8400-e29b-41d4-a716-446655440001",
		CustomerID:  "550e8400-e29b-41d4-a716-446655440002",
		ChargeToken: "tok_visa",
	})

	require.NoError(t, handler.Handle(context.Background(), event))
	orchestrator.Wait()
}

func TestBookingEventHandlers_MalformedRequestIsDropped(t *testing.T) {
	_, orchestrator := newTestRouter(t)
	handler := NewBookingEventHandlers(application.NewStartBooking(orchestrator))

	event := events.NewEvent(models.GenerateUUID(), events.BookingRequestedEvent, BookingRequestedData{
		FlightID: "550e8400-e29b-41d4-a716-446655440001",
	})

	// Validation failures must not bounce the message back to the queue.
	assert.NoError(t, handler.Handle(context.Background(), event))
}

func TestBookingEventHandlers_IgnoresUnknownEvents(t *testing.T) {
	_, orchestrator := newTestRouter(t)
	handler := NewBookingEventHandlers(application.NewStartBooking(orchestrator))

	event := events.NewEvent(models.GenerateUUID(), events.PaymentCollectedEvent, nil)
	assert.NoError(t, handler.Handle(context.Background(), event))
}

func TestBookingEventHandlers_HandlerID(t *testing.T) {
	_, orchestrator := newTestRouter(t)
	handler := NewBookingEventHandlers(application.NewStartBooking(orchestrator))
	assert.Equal(t, "booking-service-event-handler", handler.HandlerID())
}
