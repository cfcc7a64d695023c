package workflow

import (
	"time"

	"github.com/buildtall-systems/gifticon/internal/fsm"
	"github.com/buildtall-systems/gifticon/internal/fulfillment"
	"github.com/buildtall-systems/gifticon/internal/payment"
)

// Order is one purchase attempt. Published orders are never mutated; each
// transition builds a new value.
type Order struct {
	OrderID       string                      `json:"orderId"`
	ProductID     string                      `json:"productId"`
	ProductName   string                      `json:"productName"`
	PriceSnapshot int64                       `json:"priceSnapshot"`
	PaymentMethod *payment.Method             `json:"paymentMethod"`
	Status        string                      `json:"status"`
	Code          *fulfillment.RedemptionCode `json:"code"`
	CreatedAt     time.Time                   `json:"createdAt"`
	Attempts      int                         `json:"attempts"`
}

func (o *Order) clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.PaymentMethod != nil {
		m := *o.PaymentMethod
		c.PaymentMethod = &m
	}
	if o.Code != nil {
		code := *o.Code
		c.Code = &code
	}
	return &c
}

// Snapshot is the workflow's complete observable state. Snapshots are
// immutable once published.
type Snapshot struct {
	Version   uint64
	Status    string
	Order     *Order
	LastError error
	Warning   error
}

// Fulfilled reports whether the order has been issued a redemption code and
// may be shared. The fulfilled status is replaced by sharing in the same
// commit, so Snapshot callers only ever see sharing; observers see both.
func (s Snapshot) Fulfilled() bool {
	return s.Order != nil && s.Order.Code != nil &&
		(s.Status == fsm.OrderStateFulfilled || s.Status == fsm.OrderStateSharing)
}

// Live reports whether an order is in flight.
func (s Snapshot) Live() bool {
	return fsm.IsLive(s.Status)
}

// with returns a copy of s moved to status with the given order. The order's
// own status field is kept in step.
func (s Snapshot) with(status string, order *Order) *Snapshot {
	next := &Snapshot{Status: status}
	if order != nil {
		order.Status = status
		next.Order = order
	}
	return next
}

// Purchase is one entry of the session's purchase history.
type Purchase struct {
	OrderID     string    `json:"orderId"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	Price       int64     `json:"price"`
	PurchasedAt time.Time `json:"purchasedAt"`
}
