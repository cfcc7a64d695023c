// Package payment holds the payment-method vocabulary and the gateway
// adapters the purchase workflow charges through.
package payment

import (
	"context"
	"errors"
	"fmt"
)

// Method is how the buyer pays. The set is closed.
type Method string

const (
	MethodWallet           Method = "wallet"
	MethodCard             Method = "card"
	MethodThirdPartyWallet Method = "thirdPartyWallet"
)

// ErrUnknownMethod indicates a payment method outside the supported set.
var ErrUnknownMethod = errors.New("unknown payment method")

// ErrGatewayUnavailable indicates the gateway could not be reached or
// answered with something other than an approval or a decline.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Methods returns the supported methods in display order.
func Methods() []Method {
	return []Method{MethodWallet, MethodCard, MethodThirdPartyWallet}
}

// ParseMethod validates a raw method name.
func ParseMethod(raw string) (Method, error) {
	for _, m := range Methods() {
		if string(m) == raw {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, raw)
}

// Charge is a request to take payment for one order attempt.
type Charge struct {
	OrderID string
	Attempt int
	Method  Method
	Amount  int64 // minor units
}

// IdempotencyKey identifies one attempt so a gateway can deduplicate replays.
func (c Charge) IdempotencyKey() string {
	return fmt.Sprintf("%s:%d", c.OrderID, c.Attempt)
}

// Result is the gateway's answer. A timeout is not a Result: it surfaces as
// the context's deadline error from Gateway.Charge.
type Result struct {
	Approved  bool
	Reference string
	Reason    string // decline reason
}

// Gateway charges an order. Implementations must honour ctx cancellation
// and deadlines.
type Gateway interface {
	Charge(ctx context.Context, charge Charge) (Result, error)
}
