package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/skytrail/booking-system/booking-service/application"
	"github.com/skytrail/booking-system/shared/events"
)

// BookingEventHandlers handles booking-related events from the queue
type BookingEventHandlers struct {
	startBooking *application.StartBooking
}

// NewBookingEventHandlers creates new booking event handlers
func NewBookingEventHandlers(startBooking *application.StartBooking) *BookingEventHandlers {
	return &BookingEventHandlers{
		startBooking: startBooking,
	}
}

// Handle implements the events.EventHandler interface
func (h *BookingEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.EventType {
	case events.BookingRequestedEvent:
		return h.HandleBookingRequested(ctx, event)
	default:
		// Unknown event type, ignore
		return nil
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *BookingEventHandlers) HandlerID() string {
	return "booking-service-event-handler"
}

// BookingRequestedData is the payload for booking requested events
type BookingRequestedData struct {
	FlightID    string `json:"flight_id"`
	CustomerID  string `json:"customer_id"`
	ChargeToken string `json:"charge_token"`
}

// HandleBookingRequested starts a saga for a booking requested through the
// queue instead of the HTTP surface
func (h *BookingEventHandlers) HandleBookingRequested(ctx context.Context, event *events.Event) error {
	if event.EventType != events.BookingRequestedEvent {
		return nil
	}

	var data BookingRequestedData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse booking requested data")
	}

	cmd := &application.StartBookingCommand{
		FlightID:    data.FlightID,
		CustomerID:  data.CustomerID,
		ChargeToken: data.ChargeToken,
	}

	if _, err := h.startBooking.Execute(ctx, cmd); err != nil {
		// Malformed requests are dropped rather than retried forever.
		fmt.Printf("Failed to start booking for event %s: %v\n", event.ID, err)
		return nil
	}

	return nil
}

// parseEventData parses event data into the specified struct
func (h *BookingEventHandlers) parseEventData(event *events.Event, target interface{}) error {
	jsonData, err := json.Marshal(event.Data)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event data")
	}

	if err := json.Unmarshal(jsonData, target); err != nil {
		return errors.Wrap(err, "failed to unmarshal event data")
	}

	return nil
}
