package fsm

// Order statuses, in lifecycle order.
const (
	OrderStateIdle                  = "idle"
	OrderStateSelecting             = "selecting"
	OrderStateAwaitingPaymentMethod = "awaiting_payment_method"
	OrderStateProcessing            = "processing"
	OrderStateFulfilled             = "fulfilled"
	OrderStateSharing               = "sharing"
	OrderStateClosed                = "closed"
	OrderStateFailed                = "failed"
)

const (
	OrderEventStart        = "start"
	OrderEventBeginPayment = "begin_payment"
	OrderEventChooseMethod = "choose_method"
	OrderEventConfirm      = "confirm"
	OrderEventApprove      = "approve"
	OrderEventFail         = "fail"
	OrderEventRetry        = "retry"
	OrderEventOpenShare    = "open_share"
	OrderEventCloseShare   = "close_share"
	OrderEventCancel       = "cancel"
)

// LiveStates are the statuses in which an order exists in session state.
var LiveStates = []string{
	OrderStateSelecting,
	OrderStateAwaitingPaymentMethod,
	OrderStateProcessing,
	OrderStateFulfilled,
	OrderStateSharing,
	OrderStateFailed,
}

// IsLive reports whether an order in the given status is still in flight.
func IsLive(state string) bool {
	for _, s := range LiveStates {
		if s == state {
			return true
		}
	}
	return false
}
