package activities

import (
	"context"

	"github.com/pkg/errors"
	"github.com/skytrail/booking-system/booking-service/domain"
	"github.com/skytrail/booking-system/booking-service/gateway"
	"github.com/skytrail/booking-system/booking-service/saga"
	"github.com/skytrail/booking-system/shared/events"
	"github.com/skytrail/booking-system/shared/models"
)

// Notifier dispatches customer-facing notifications and returns the
// notification ID
type Notifier interface {
	Notify(ctx context.Context, executionID models.ID, status saga.OutcomeStatus, bookingReference string) (models.ID, error)
}

// Activities binds the saga's activities to their external collaborators:
// the flight inventory store, the booking record store, the payment gateway,
// and the notification channel. Domain events the aggregates record are
// published after each successful store write.
type Activities struct {
	flights        domain.FlightRepository
	bookings       domain.BookingRepository
	gateway        gateway.PaymentGateway
	notifier       Notifier
	eventPublisher events.Publisher
}

var _ saga.Invoker = (*Activities)(nil)

// NewActivities creates the activity bindings
func NewActivities(
	flights domain.FlightRepository,
	bookings domain.BookingRepository,
	gw gateway.PaymentGateway,
	notifier Notifier,
	eventPublisher events.Publisher,
) *Activities {
	return &Activities{
		flights:        flights,
		bookings:       bookings,
		gateway:        gw,
		notifier:       notifier,
		eventPublisher: eventPublisher,
	}
}

// Invoke dispatches one saga activity
func (a *Activities) Invoke(ctx context.Context, activity saga.Activity, ec *saga.ExecutionContext) error {
	switch activity {
	case saga.ActivityReserveInventory:
		return a.reserveInventory(ctx, ec)
	case saga.ActivityReleaseInventory:
		return a.releaseInventory(ctx, ec)
	case saga.ActivityReserveBooking:
		return a.reserveBooking(ctx, ec)
	case saga.ActivityCancelBooking:
		return a.cancelBooking(ctx, ec)
	case saga.ActivityCollectPayment:
		return a.collectPayment(ctx, ec)
	case saga.ActivityRefundPayment:
		return a.refundPayment(ctx, ec)
	case saga.ActivityConfirmBooking:
		return a.confirmBooking(ctx, ec)
	case saga.ActivityNotify:
		return a.notify(ctx, ec)
	default:
		return errors.Errorf("unknown activity %q", activity)
	}
}

// reserveInventory conditionally decrements the outbound flight's seat
// allocation. The precondition rejection passes through unchanged;
// unclassified infrastructure errors stay transient and retryable.
func (a *Activities) reserveInventory(ctx context.Context, ec *saga.ExecutionContext) error {
	flight, err := a.flights.ReserveSeat(ctx, ec.OutboundFlightID)
	if err != nil {
		return errors.Wrap(err, "failed to reserve inventory")
	}

	ec.Fare = flight.Fare
	a.publishDomainEvents(ctx, ec, flight.Events())
	flight.ClearEvents()
	return nil
}

// releaseInventory is the compensating increment
func (a *Activities) releaseInventory(ctx context.Context, ec *saga.ExecutionContext) error {
	flight, err := a.flights.ReleaseSeat(ctx, ec.OutboundFlightID)
	if err != nil {
		return errors.Wrap(err, "failed to release inventory")
	}

	a.publishDomainEvents(ctx, ec, flight.Events())
	flight.ClearEvents()
	return nil
}

// reserveBooking creates a pending booking record. The execution ID is the
// idempotency key: a retried reservation finds the existing record instead
// of inserting a second one.
func (a *Activities) reserveBooking(ctx context.Context, ec *saga.ExecutionContext) error {
	existing, err := a.bookings.FindByExecutionID(ctx, ec.ExecutionID)
	if err != nil && !errors.Is(err, domain.ErrBookingNotFound) {
		return domain.WrapActivityError(domain.ErrorKindBookingReservation, err, "failed to look up booking")
	}

	if existing != nil {
		ec.BookingID = existing.ID
		return nil
	}

	booking, err := domain.ReserveBooking(ec.ExecutionID, ec.OutboundFlightID, ec.CustomerID, ec.Fare)
	if err != nil {
		return domain.WrapActivityError(domain.ErrorKindBookingReservation, err, "failed to build booking")
	}

	if err := a.bookings.Save(ctx, booking); err != nil {
		return domain.WrapActivityError(domain.ErrorKindBookingReservation, err, "failed to reserve booking")
	}

	ec.BookingID = booking.ID
	a.publishDomainEvents(ctx, ec, booking.Events())
	booking.ClearEvents()
	return nil
}

// cancelBooking compensates the booking reservation. It is a no-op when the
// reservation never produced a record.
func (a *Activities) cancelBooking(ctx context.Context, ec *saga.ExecutionContext) error {
	if ec.BookingID.IsZero() {
		return nil
	}

	booking, err := a.bookings.FindByID(ctx, ec.BookingID)
	if err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			return nil
		}
		return domain.WrapActivityError(domain.ErrorKindBookingCancellation, err, "failed to load booking")
	}

	if err := booking.Cancel(); err != nil {
		return domain.WrapActivityError(domain.ErrorKindBookingCancellation, err, "failed to cancel booking")
	}

	if err := a.bookings.Save(ctx, booking); err != nil {
		return domain.WrapActivityError(domain.ErrorKindBookingCancellation, err, "failed to save cancelled booking")
	}

	a.publishDomainEvents(ctx, ec, booking.Events())
	booking.ClearEvents()
	return nil
}

// collectPayment charges the customer. Payment errors are never retried;
// they route directly to compensation.
func (a *Activities) collectPayment(ctx context.Context, ec *saga.ExecutionContext) error {
	receipt, err := a.gateway.Charge(ctx, ec.ChargeToken, ec.Fare)
	if err != nil {
		return domain.WrapActivityError(domain.ErrorKindPayment, err, "failed to collect payment")
	}

	ec.PaymentReceipt = receipt
	return nil
}

// refundPayment compensates a collected payment. Without a receipt there is
// nothing to reverse.
func (a *Activities) refundPayment(ctx context.Context, ec *saga.ExecutionContext) error {
	if ec.PaymentReceipt == "" {
		return nil
	}

	if err := a.gateway.Refund(ctx, ec.PaymentReceipt); err != nil {
		return domain.WrapActivityError(domain.ErrorKindPayment, err, "failed to refund payment")
	}
	return nil
}

// confirmBooking marks the booking confirmed and captures the booking
// reference
func (a *Activities) confirmBooking(ctx context.Context, ec *saga.ExecutionContext) error {
	booking, err := a.bookings.FindByID(ctx, ec.BookingID)
	if err != nil {
		return domain.WrapActivityError(domain.ErrorKindBookingConfirmation, err, "failed to load booking")
	}

	if err := booking.Confirm(); err != nil {
		return domain.WrapActivityError(domain.ErrorKindBookingConfirmation, err, "failed to confirm booking")
	}

	if err := a.bookings.Save(ctx, booking); err != nil {
		return domain.WrapActivityError(domain.ErrorKindBookingConfirmation, err, "failed to save confirmed booking")
	}

	ec.BookingReference = booking.Reference
	a.publishDomainEvents(ctx, ec, booking.Events())
	booking.ClearEvents()
	return nil
}

// notify reports the execution's status to the customer. The status follows
// from the execution itself: a recorded forward failure means the failure
// path, otherwise the booking was confirmed.
func (a *Activities) notify(ctx context.Context, ec *saga.ExecutionContext) error {
	status := saga.OutcomeConfirmed
	if ec.Failed() {
		status = saga.OutcomeFailed
	}

	notificationID, err := a.notifier.Notify(ctx, ec.ExecutionID, status, ec.BookingReference)
	if err != nil {
		return domain.WrapActivityError(domain.ErrorKindBookingNotification, err, "failed to notify customer")
	}

	ec.NotificationID = notificationID
	return nil
}

// publishDomainEvents publishes events drained from an aggregate, correlated
// to the execution. Events are observability, not control flow; a publish
// failure never fails the step that produced them.
func (a *Activities) publishDomainEvents(ctx context.Context, ec *saga.ExecutionContext, evts []*events.Event) {
	if a.eventPublisher == nil || len(evts) == 0 {
		return
	}

	for _, event := range evts {
		event.WithCorrelationID(ec.ExecutionID)
	}
	_ = a.eventPublisher.Publish(ctx, evts...)
}
