package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/skytrail/booking-system/shared/models"
)

// Charge token prefixes the mock gateway reacts to. Anything else charges
// successfully.
const (
	DeclinedTokenPrefix = "tok_declined"
	SlowTokenPrefix     = "tok_slow"
)

// MockGateway implements PaymentGateway deterministically for testing and
// local environments. Behavior is driven by the charge token so scenarios
// stay reproducible.
type MockGateway struct {
	delay    time.Duration
	receipts sync.Map // receipt -> charged amount
}

// NewMockGateway creates a new mock gateway
func NewMockGateway(delay time.Duration) *MockGateway {
	return &MockGateway{delay: delay}
}

// Charge processes a mock payment charge
func (g *MockGateway) Charge(ctx context.Context, chargeToken string, amount models.Money) (string, error) {
	if chargeToken == "" {
		return "", errors.New("charge token is required")
	}
	if !amount.IsPositive() {
		return "", errors.New("amount must be positive")
	}

	if strings.HasPrefix(chargeToken, SlowTokenPrefix) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	if err := g.simulateDelay(ctx); err != nil {
		return "", err
	}

	if strings.HasPrefix(chargeToken, DeclinedTokenPrefix) {
		return "", ErrPaymentDeclined
	}

	receipt := fmt.Sprintf("re_%s", uuid.New().String()[:8])
	g.receipts.Store(receipt, amount)

	return receipt, nil
}

// Refund processes a mock refund
func (g *MockGateway) Refund(ctx context.Context, receipt string) error {
	if receipt == "" {
		return errors.New("receipt is required")
	}

	if err := g.simulateDelay(ctx); err != nil {
		return err
	}

	g.receipts.Delete(receipt)
	return nil
}

// Name returns the gateway name
func (g *MockGateway) Name() string {
	return "mock"
}

// Charged reports whether a receipt is still charged (not refunded)
func (g *MockGateway) Charged(receipt string) bool {
	_, ok := g.receipts.Load(receipt)
	return ok
}

func (g *MockGateway) simulateDelay(ctx context.Context) error {
	if g.delay <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.delay):
		return nil
	}
}
