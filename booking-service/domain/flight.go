package domain

import (
	"context"

	"github.com/skytrail/booking-system/shared/events"
	"github.com/skytrail/booking-system/shared/models"
)

// Flight aggregate root. SeatAllocation is the shared resource the saga
// protects with conditional updates; it is never guarded by locks.
type Flight struct {
	ID             models.ID    `json:"id"`
	FlightNumber   string       `json:"flight_number"`
	Origin         string       `json:"origin"`
	Destination    string       `json:"destination"`
	SeatAllocation int          `json:"seat_allocation"`
	Fare           models.Money `json:"fare"`
	Timestamps     models.Timestamps
	Version        models.Version

	events []*events.Event
}

// CreateFlight factory method
func CreateFlight(flightNumber, origin, destination string, seats int, fare models.Money) *Flight {
	return &Flight{
		ID:             models.GenerateUUID(),
		FlightNumber:   flightNumber,
		Origin:         origin,
		Destination:    destination,
		SeatAllocation: seats,
		Fare:           fare,
		Timestamps:     models.NewTimestamps(),
		Version:        models.NewVersion(),
	}
}

// ReserveSeat decrements the seat allocation if any seat remains
func (f *Flight) ReserveSeat() error {
	if f.SeatAllocation <= 0 {
		return ErrNoSeatsAvailable
	}

	f.SeatAllocation--
	f.Timestamps = f.Timestamps.Update()
	f.Version = f.Version.Update()
	f.RecordSeatReserved()
	return nil
}

// ReleaseSeat returns a previously reserved seat to the allocation
func (f *Flight) ReleaseSeat() {
	f.SeatAllocation++
	f.Timestamps = f.Timestamps.Update()
	f.Version = f.Version.Update()
	f.RecordSeatReleased()
}

// RecordSeatReserved records the reservation event against the current
// allocation. Stores that apply the decrement themselves (conditional update)
// call this on the row they read back.
func (f *Flight) RecordSeatReserved() {
	f.recordEvent(events.NewEvent(f.ID, events.SeatReservedEvent, SeatReservedData{
		FlightID:       f.ID,
		SeatsRemaining: f.SeatAllocation,
	}))
}

// RecordSeatReleased records the release event against the current allocation
func (f *Flight) RecordSeatReleased() {
	f.recordEvent(events.NewEvent(f.ID, events.SeatReleasedEvent, SeatReleasedData{
		FlightID:       f.ID,
		SeatsRemaining: f.SeatAllocation,
	}))
}

// Events returns recorded domain events
func (f *Flight) Events() []*events.Event {
	return f.events
}

// ClearEvents clears recorded events
func (f *Flight) ClearEvents() {
	f.events = nil
}

func (f *Flight) recordEvent(event *events.Event) {
	f.events = append(f.events, event)
}

// SeatReservedData is the payload for seat reservation events
type SeatReservedData struct {
	FlightID       models.ID `json:"flight_id"`
	SeatsRemaining int       `json:"seats_remaining"`
}

// SeatReleasedData is the payload for seat release events
type SeatReleasedData struct {
	FlightID       models.ID `json:"flight_id"`
	SeatsRemaining int       `json:"seats_remaining"`
}

// FlightRepository provides access to the flight inventory store.
// ReserveSeat must be a conditional update: it decrements the seat allocation
// only while seats remain and returns ErrNoSeatsAvailable otherwise.
type FlightRepository interface {
	Save(ctx context.Context, flight *Flight) error
	FindByID(ctx context.Context, id models.ID) (*Flight, error)
	ReserveSeat(ctx context.Context, id models.ID) (*Flight, error)
	ReleaseSeat(ctx context.Context, id models.ID) (*Flight, error)
}
