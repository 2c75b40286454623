package saga

import (
	"context"
	"time"
)

// Activity names the external operations the saga invokes
type Activity string

const (
	ActivityReserveInventory Activity = "reserve-inventory"
	ActivityReleaseInventory Activity = "release-inventory"
	ActivityReserveBooking   Activity = "reserve-booking"
	ActivityCancelBooking    Activity = "cancel-booking"
	ActivityCollectPayment   Activity = "collect-payment"
	ActivityRefundPayment    Activity = "refund-payment"
	ActivityConfirmBooking   Activity = "confirm-booking"
	ActivityNotify           Activity = "notify"
)

func (a Activity) String() string {
	return string(a)
}

// Invoker executes one activity against its external collaborator,
// reading inputs from and writing outputs to the execution context.
type Invoker interface {
	Invoke(ctx context.Context, activity Activity, ec *ExecutionContext) error
}

// activityTimeouts bound each external call. Payment operations get the
// longer budget; everything else is a single conditional write or publish.
var activityTimeouts = map[Activity]time.Duration{
	ActivityReserveInventory: 5 * time.Second,
	ActivityReleaseInventory: 5 * time.Second,
	ActivityReserveBooking:   5 * time.Second,
	ActivityCancelBooking:    5 * time.Second,
	ActivityCollectPayment:   10 * time.Second,
	ActivityRefundPayment:    10 * time.Second,
	ActivityConfirmBooking:   5 * time.Second,
	ActivityNotify:           5 * time.Second,
}

// TimeoutFor returns the bounded timeout for an activity
func TimeoutFor(activity Activity) time.Duration {
	if t, ok := activityTimeouts[activity]; ok {
		return t
	}
	return 5 * time.Second
}
