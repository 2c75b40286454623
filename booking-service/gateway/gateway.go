package gateway

import (
	"context"

	"github.com/pkg/errors"
	"github.com/skytrail/booking-system/shared/models"
)

// PaymentGateway defines the interface for the payment collaborator
type PaymentGateway interface {
	// Charge collects a payment and returns a receipt
	Charge(ctx context.Context, chargeToken string, amount models.Money) (string, error)

	// Refund reverses a previously collected payment
	Refund(ctx context.Context, receipt string) error

	// Name returns the gateway name
	Name() string
}

// ErrPaymentDeclined is returned when the provider rejects the charge
var ErrPaymentDeclined = errors.New("payment declined")
