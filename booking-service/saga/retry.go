package saga

import (
	"time"

	"github.com/skytrail/booking-system/booking-service/domain"
)

// RetryPolicy declares which error kinds an activity may retry on, how many
// retries it gets, and the base backoff interval. Policies are static; retry
// decisions are pure functions of (activity, error kind, attempt count).
type RetryPolicy struct {
	Retryable   []domain.ErrorKind
	MaxAttempts int
	Interval    time.Duration
}

const defaultRetryInterval = 500 * time.Millisecond

// retryPolicies is the per-activity policy table. Each booking activity
// retries only its own failure kind; the inventory activities retry only on
// transient infrastructure errors. Payment operations carry no retryable
// kinds: any payment error routes directly to compensation. The inventory
// precondition rejection is absent everywhere, so it never retries.
var retryPolicies = map[Activity]RetryPolicy{
	ActivityReserveInventory: {
		Retryable:   []domain.ErrorKind{domain.ErrorKindTransient},
		MaxAttempts: 2,
		Interval:    defaultRetryInterval,
	},
	ActivityReleaseInventory: {
		Retryable:   []domain.ErrorKind{domain.ErrorKindTransient},
		MaxAttempts: 2,
		Interval:    defaultRetryInterval,
	},
	ActivityReserveBooking: {
		Retryable:   []domain.ErrorKind{domain.ErrorKindBookingReservation},
		MaxAttempts: 2,
		Interval:    defaultRetryInterval,
	},
	ActivityCancelBooking: {
		Retryable:   []domain.ErrorKind{domain.ErrorKindBookingCancellation},
		MaxAttempts: 2,
		Interval:    defaultRetryInterval,
	},
	ActivityConfirmBooking: {
		Retryable:   []domain.ErrorKind{domain.ErrorKindBookingConfirmation},
		MaxAttempts: 2,
		Interval:    defaultRetryInterval,
	},
	ActivityNotify: {
		Retryable:   []domain.ErrorKind{domain.ErrorKindBookingNotification},
		MaxAttempts: 2,
		Interval:    defaultRetryInterval,
	},
	ActivityCollectPayment: {},
	ActivityRefundPayment:  {},
}

// PolicyFor returns the retry policy for an activity
func PolicyFor(activity Activity) RetryPolicy {
	return retryPolicies[activity]
}

// ShouldRetry decides retry vs. propagate. attempts is the number of attempts
// already made; an activity is retried while attempts stay within its declared
// maximum and the error kind is declared retryable.
func ShouldRetry(activity Activity, kind domain.ErrorKind, attempts int) bool {
	policy := retryPolicies[activity]
	if attempts > policy.MaxAttempts {
		return false
	}

	for _, retryable := range policy.Retryable {
		if kind == retryable {
			return true
		}
	}
	return false
}

// NextDelay returns the backoff before the given retry: interval * 2^attempt
func NextDelay(activity Activity, attempt int) time.Duration {
	policy := retryPolicies[activity]
	interval := policy.Interval
	if interval <= 0 {
		interval = defaultRetryInterval
	}

	delay := interval
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
