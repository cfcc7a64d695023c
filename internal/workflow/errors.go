package workflow

import "errors"

// ErrDuplicateInFlightOrder indicates a purchase was started while another
// order is still live in the session.
var ErrDuplicateInFlightOrder = errors.New("an order is already in progress")

// ErrNoPaymentMethodSelected indicates payment was confirmed before a method was chosen.
var ErrNoPaymentMethodSelected = errors.New("no payment method selected")

// ErrPaymentDeclined indicates the gateway declined the charge. The order
// moves to failed and keeps its payment method.
var ErrPaymentDeclined = errors.New("payment declined")

// ErrPaymentTimeout indicates the gateway did not answer within the bounded
// wait. The order moves to failed and may be retried.
var ErrPaymentTimeout = errors.New("payment timed out")

// ErrSessionExpired indicates the session ended while payment was processing.
// It matches ErrPaymentTimeout with errors.Is.
var ErrSessionExpired error = sessionExpiredError{}

type sessionExpiredError struct{}

func (sessionExpiredError) Error() string { return "session expired during payment" }

func (sessionExpiredError) Is(target error) bool { return target == ErrPaymentTimeout }

// ErrInvalidTransition indicates the operation is not allowed in the current status.
var ErrInvalidTransition = errors.New("invalid order state transition")

// ErrInvalidPaymentMethod indicates a method outside the supported set.
var ErrInvalidPaymentMethod = errors.New("invalid payment method")

// ErrOrderNotFulfilled indicates sharing was attempted before fulfilment.
var ErrOrderNotFulfilled = errors.New("order is not fulfilled")

// ErrOrderDiscarded indicates a gateway answer arrived for an order that had
// already been cancelled; the answer was ignored.
var ErrOrderDiscarded = errors.New("order was cancelled during payment")
