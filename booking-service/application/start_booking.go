package application

import (
	"context"

	"github.com/pkg/errors"
	"github.com/skytrail/booking-system/booking-service/saga"
	"github.com/skytrail/booking-system/shared/models"
)

// StartBookingCommand represents the command to start a booking
type StartBookingCommand struct {
	FlightID    string `json:"flight_id"`
	CustomerID  string `json:"customer_id"`
	ChargeToken string `json:"charge_token"`
}

// StartBookingResponse represents the response after accepting a booking
type StartBookingResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}

// StartBooking use case: accept a booking request and hand it to the saga
// orchestrator. Acceptance returns immediately; the booking completes
// asynchronously.
type StartBooking struct {
	orchestrator *saga.Orchestrator
}

// NewStartBooking creates a new StartBooking use case
func NewStartBooking(orchestrator *saga.Orchestrator) *StartBooking {
	return &StartBooking{orchestrator: orchestrator}
}

// Execute executes the start booking use case
func (uc *StartBooking) Execute(ctx context.Context, cmd *StartBookingCommand) (*StartBookingResponse, error) {
	if err := uc.validateCommand(cmd); err != nil {
		return nil, errors.Wrap(err, "invalid command")
	}

	flightID, err := models.NewID(cmd.FlightID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid flight ID")
	}

	customerID, err := models.NewID(cmd.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid customer ID")
	}

	executionID, err := uc.orchestrator.Start(ctx, saga.BookingRequest{
		OutboundFlightID: flightID,
		CustomerID:       customerID,
		ChargeToken:      cmd.ChargeToken,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to start booking")
	}

	return &StartBookingResponse{
		ExecutionID: executionID.String(),
		Status:      string(saga.OutcomePending),
	}, nil
}

// validateCommand validates the start booking command
func (uc *StartBooking) validateCommand(cmd *StartBookingCommand) error {
	if cmd.FlightID == "" {
		return errors.New("flight ID is required")
	}

	if cmd.CustomerID == "" {
		return errors.New("customer ID is required")
	}

	if cmd.ChargeToken == "" {
		return errors.New("charge token is required")
	}

	return nil
}
