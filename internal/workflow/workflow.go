// Package workflow drives one session's purchase from product selection
// through payment and fulfilment to sharing.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/buildtall-systems/gifticon/internal/catalog"
	"github.com/buildtall-systems/gifticon/internal/fsm"
	"github.com/buildtall-systems/gifticon/internal/fulfillment"
	"github.com/buildtall-systems/gifticon/internal/payment"
	"github.com/buildtall-systems/gifticon/internal/share"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPaymentTimeout bounds the wait on the payment gateway.
const DefaultPaymentTimeout = 10 * time.Second

// Catalog resolves products by id.
type Catalog interface {
	Get(id string) (catalog.Product, error)
}

// Minter issues redemption codes.
type Minter interface {
	Mint(orderID, productID string) fulfillment.RedemptionCode
}

// Sharer delivers a fulfilled order's artifact.
type Sharer interface {
	ShareToContact(ctx context.Context, item share.Item, query string) ([]share.Contact, error)
	SendToContact(item share.Item, c share.Contact) error
	ShareToChannel(item share.Item, kind share.ChannelKind) (share.ComposedMessage, error)
}

// SessionChecker reports whether the caller's session is still valid.
type SessionChecker interface {
	IsAuthenticated(ctx context.Context) bool
}

// Observer receives every committed snapshot, in commit order. Observers run
// while the workflow is locked and must not call back into it.
type Observer func(Snapshot)

// Option configures a Workflow.
type Option func(*Workflow)

// WithPaymentTimeout overrides DefaultPaymentTimeout.
func WithPaymentTimeout(d time.Duration) Option {
	return func(w *Workflow) { w.timeout = d }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(w *Workflow) { w.observers = append(w.observers, o) }
}

// WithSession makes payment outcomes depend on the session staying valid.
func WithSession(s SessionChecker) Option {
	return func(w *Workflow) { w.session = s }
}

// WithClock sets the clock used for order creation and history.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithIDGenerator sets the order id generator.
func WithIDGenerator(newID func() string) Option {
	return func(w *Workflow) { w.newID = newID }
}

// Workflow is the purchase state machine for one session. All methods are
// safe for concurrent use; every transition replaces the published snapshot
// as a whole.
type Workflow struct {
	catalog Catalog
	gateway payment.Gateway
	minter  Minter
	sharer  Sharer
	session SessionChecker
	logger  *zap.Logger
	sm      *fsm.OrderStateMachine

	timeout   time.Duration
	observers []Observer
	now       func() time.Time
	newID     func() string

	mu           sync.Mutex
	current      atomic.Pointer[Snapshot]
	cancelCharge context.CancelFunc
	history      []Purchase
}

func New(store Catalog, gateway payment.Gateway, minter Minter, sharer Sharer, logger *zap.Logger, opts ...Option) *Workflow {
	w := &Workflow{
		catalog: store,
		gateway: gateway,
		minter:  minter,
		sharer:  sharer,
		logger:  logger,
		sm:      fsm.NewOrderStateMachine(),
		timeout: DefaultPaymentTimeout,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.current.Store(&Snapshot{Status: fsm.OrderStateIdle})
	return w
}

// Snapshot returns the current state. It never blocks on a pending payment.
func (w *Workflow) Snapshot() Snapshot {
	return *w.current.Load()
}

// History returns completed purchases, newest first.
func (w *Workflow) History() []Purchase {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Purchase, len(w.history))
	for i, p := range w.history {
		out[len(w.history)-1-i] = p
	}
	return out
}

// StartPurchase opens a new order for productID, snapshotting its price.
func (w *Workflow) StartPurchase(ctx context.Context, productID string) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur := w.current.Load()

	if cur.Live() {
		return w.reject(cur, fmt.Errorf("%w: order %s is %s", ErrDuplicateInFlightOrder, cur.Order.OrderID, cur.Status))
	}
	product, err := w.catalog.Get(productID)
	if err != nil {
		return w.reject(cur, err)
	}
	status, err := w.transition(ctx, cur, fsm.OrderEventStart)
	if err != nil {
		return w.reject(cur, err)
	}

	order := &Order{
		OrderID:       w.newID(),
		ProductID:     product.ID,
		ProductName:   product.Name,
		PriceSnapshot: product.Price,
		CreatedAt:     w.now().UTC(),
	}
	return w.commit(cur, cur.with(status, order)), nil
}

// BeginPayment opens the payment sheet without choosing a method.
func (w *Workflow) BeginPayment(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur := w.current.Load()

	status, err := w.transition(ctx, cur, fsm.OrderEventBeginPayment)
	if err != nil {
		return w.reject(cur, err)
	}
	return w.commit(cur, cur.with(status, cur.Order.clone())), nil
}

// ChoosePaymentMethod selects or changes the payment method. It may be
// called again before confirming, and after a failed payment.
func (w *Workflow) ChoosePaymentMethod(ctx context.Context, method payment.Method) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur := w.current.Load()

	if _, err := payment.ParseMethod(string(method)); err != nil {
		return w.reject(cur, fmt.Errorf("%w: %v", ErrInvalidPaymentMethod, err))
	}
	status, err := w.transition(ctx, cur, fsm.OrderEventChooseMethod)
	if err != nil {
		return w.reject(cur, err)
	}

	order := cur.Order.clone()
	order.PaymentMethod = &method
	return w.commit(cur, cur.with(status, order)), nil
}

// Outcome is the settled result of a charge started asynchronously.
type Outcome struct {
	Snapshot Snapshot
	Err      error
}

// ConfirmPayment charges the order and waits, bounded by the payment
// timeout, for the gateway. Other methods stay callable during the wait.
func (w *Workflow) ConfirmPayment(ctx context.Context) (Snapshot, error) {
	snap, p, err := w.prepareConfirm(ctx)
	if err != nil {
		return snap, err
	}
	return w.awaitCharge(ctx, p)
}

// ConfirmPaymentAsync returns as soon as the order is processing. The
// charge outcome is delivered once on the returned channel.
func (w *Workflow) ConfirmPaymentAsync(ctx context.Context) (Snapshot, <-chan Outcome, error) {
	snap, p, err := w.prepareConfirm(ctx)
	if err != nil {
		return snap, nil, err
	}
	return snap, w.settle(ctx, p), nil
}

// RetryPayment charges a failed order again with its current method.
func (w *Workflow) RetryPayment(ctx context.Context) (Snapshot, error) {
	snap, p, err := w.prepareRetry(ctx)
	if err != nil {
		return snap, err
	}
	return w.awaitCharge(ctx, p)
}

// RetryPaymentAsync is RetryPayment without waiting for the gateway.
func (w *Workflow) RetryPaymentAsync(ctx context.Context) (Snapshot, <-chan Outcome, error) {
	snap, p, err := w.prepareRetry(ctx)
	if err != nil {
		return snap, nil, err
	}
	return snap, w.settle(ctx, p), nil
}

func (w *Workflow) prepareConfirm(ctx context.Context) (Snapshot, pendingCharge, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur := w.current.Load()

	if cur.Order != nil && cur.Order.PaymentMethod == nil &&
		(cur.Status == fsm.OrderStateSelecting || cur.Status == fsm.OrderStateAwaitingPaymentMethod) {
		snap, err := w.reject(cur, ErrNoPaymentMethodSelected)
		return snap, pendingCharge{}, err
	}
	return w.enterProcessing(ctx, cur, fsm.OrderEventConfirm)
}

func (w *Workflow) prepareRetry(ctx context.Context) (Snapshot, pendingCharge, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur := w.current.Load()

	if cur.Status == fsm.OrderStateFailed && w.session != nil && !w.session.IsAuthenticated(ctx) {
		snap, err := w.reject(cur, ErrSessionExpired)
		return snap, pendingCharge{}, err
	}
	return w.enterProcessing(ctx, cur, fsm.OrderEventRetry)
}

type pendingCharge struct {
	charge payment.Charge
	ctx    context.Context
}

// enterProcessing commits the processing snapshot and prepares the charge.
// Must be called with w.mu held.
func (w *Workflow) enterProcessing(ctx context.Context, cur *Snapshot, event string) (Snapshot, pendingCharge, error) {
	status, err := w.transition(ctx, cur, event)
	if err != nil {
		snap, err := w.reject(cur, err)
		return snap, pendingCharge{}, err
	}

	order := cur.Order.clone()
	order.Attempts++
	snap := w.commit(cur, cur.with(status, order))

	chargeCtx, cancel := context.WithTimeout(ctx, w.timeout)
	w.cancelCharge = cancel

	return snap, pendingCharge{
		charge: payment.Charge{
			OrderID: order.OrderID,
			Attempt: order.Attempts,
			Method:  *order.PaymentMethod,
			Amount:  order.PriceSnapshot,
		},
		ctx: chargeCtx,
	}, nil
}

func (w *Workflow) settle(ctx context.Context, p pendingCharge) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		snap, err := w.awaitCharge(ctx, p)
		out <- Outcome{Snapshot: snap, Err: err}
	}()
	return out
}

// awaitCharge runs the gateway call without holding the lock and applies
// its outcome only if the same attempt is still processing.
func (w *Workflow) awaitCharge(ctx context.Context, p pendingCharge) (Snapshot, error) {
	charge := p.charge
	res, chargeErr := w.gateway.Charge(p.ctx, charge)

	w.mu.Lock()
	defer w.mu.Unlock()
	cur := w.current.Load()

	if cur.Status != fsm.OrderStateProcessing || cur.Order == nil ||
		cur.Order.OrderID != charge.OrderID || cur.Order.Attempts != charge.Attempt {
		w.logger.Info("discarding payment outcome for cancelled order",
			zap.String("orderId", charge.OrderID),
			zap.Int("attempt", charge.Attempt),
		)
		return *cur, ErrOrderDiscarded
	}
	if w.cancelCharge != nil {
		w.cancelCharge()
		w.cancelCharge = nil
	}

	if w.session != nil && !w.session.IsAuthenticated(ctx) {
		return w.failPayment(ctx, cur, ErrSessionExpired)
	}
	if chargeErr != nil {
		if errors.Is(chargeErr, context.DeadlineExceeded) || errors.Is(chargeErr, context.Canceled) {
			return w.failPayment(ctx, cur, fmt.Errorf("%w after %s", ErrPaymentTimeout, w.timeout))
		}
		return w.failPayment(ctx, cur, fmt.Errorf("%w: %w", ErrPaymentTimeout, chargeErr))
	}
	if !res.Approved {
		return w.failPayment(ctx, cur, fmt.Errorf("%w: %s", ErrPaymentDeclined, res.Reason))
	}
	return w.fulfil(ctx, cur, res)
}

func (w *Workflow) failPayment(ctx context.Context, cur *Snapshot, cause error) (Snapshot, error) {
	status, err := w.transition(ctx, cur, fsm.OrderEventFail)
	if err != nil {
		return w.reject(cur, err)
	}
	next := cur.with(status, cur.Order.clone())
	next.LastError = cause
	w.logger.Warn("payment failed",
		zap.String("orderId", cur.Order.OrderID),
		zap.Int("attempt", cur.Order.Attempts),
		zap.Error(cause),
	)
	return w.commit(cur, next), cause
}

// fulfil mints the code, publishes the fulfilled snapshot and opens the
// share surface.
func (w *Workflow) fulfil(ctx context.Context, cur *Snapshot, res payment.Result) (Snapshot, error) {
	status, err := w.transition(ctx, cur, fsm.OrderEventApprove)
	if err != nil {
		return w.reject(cur, err)
	}

	order := cur.Order.clone()
	code := w.minter.Mint(order.OrderID, order.ProductID)
	order.Code = &code
	fulfilled := w.commit(cur, cur.with(status, order))

	w.history = append(w.history, Purchase{
		OrderID:     order.OrderID,
		ProductID:   order.ProductID,
		ProductName: order.ProductName,
		Price:       order.PriceSnapshot,
		PurchasedAt: code.IssuedAt,
	})
	w.logger.Info("order fulfilled",
		zap.String("orderId", order.OrderID),
		zap.String("productId", order.ProductID),
		zap.String("reference", res.Reference),
	)

	status, err = w.transition(ctx, &fulfilled, fsm.OrderEventOpenShare)
	if err != nil {
		return w.reject(&fulfilled, err)
	}
	return w.commit(&fulfilled, fulfilled.with(status, order.clone())), nil
}

// CloseShare dismisses the share surface and discards the order.
func (w *Workflow) CloseShare(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur := w.current.Load()

	status, err := w.transition(ctx, cur, fsm.OrderEventCloseShare)
	if err != nil {
		return w.reject(cur, err)
	}
	return w.commit(cur, cur.with(status, nil)), nil
}

// Cancel discards an order that has not been fulfilled. A payment still in
// flight is abandoned and its outcome ignored.
func (w *Workflow) Cancel(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur := w.current.Load()

	status, err := w.transition(ctx, cur, fsm.OrderEventCancel)
	if err != nil {
		return w.reject(cur, err)
	}
	if w.cancelCharge != nil {
		w.cancelCharge()
		w.cancelCharge = nil
	}
	w.logger.Info("order cancelled",
		zap.String("orderId", cur.Order.OrderID),
		zap.String("from", cur.Status),
	)
	return w.commit(cur, cur.with(status, nil)), nil
}

// ShareToContact lists directory contacts matching query.
func (w *Workflow) ShareToContact(ctx context.Context, query string) ([]share.Contact, error) {
	item, err := w.shareItem()
	if err != nil {
		return nil, err
	}
	return w.sharer.ShareToContact(ctx, item, query)
}

// SendToContact hands the artifact to c. Delivery happens in the background.
func (w *Workflow) SendToContact(c share.Contact) error {
	item, err := w.shareItem()
	if err != nil {
		return err
	}
	return w.sharer.SendToContact(item, c)
}

// ShareToChannel composes the share message for kind. An unavailable channel
// is recorded as a warning on the snapshot; the status does not change.
func (w *Workflow) ShareToChannel(kind share.ChannelKind) (share.ComposedMessage, error) {
	item, err := w.shareItem()
	if err != nil {
		return share.ComposedMessage{}, err
	}
	msg, err := w.sharer.ShareToChannel(item, kind)
	if errors.Is(err, share.ErrShareChannelUnavailable) {
		w.warn(item.OrderID, err)
	}
	return msg, err
}

func (w *Workflow) shareItem() (share.Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur := w.current.Load()
	if !cur.Fulfilled() {
		_, err := w.reject(cur, fmt.Errorf("%w: status is %s", ErrOrderNotFulfilled, cur.Status))
		return share.Item{}, err
	}
	return share.Item{
		OrderID:     cur.Order.OrderID,
		ProductName: cur.Order.ProductName,
		Payload:     cur.Order.Code.Payload,
	}, nil
}

func (w *Workflow) warn(orderID string, warning error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur := w.current.Load()
	if cur.Order == nil || cur.Order.OrderID != orderID {
		return
	}
	next := *cur
	next.Warning = warning
	w.commit(cur, &next)
}

// transition validates event against the order state machine.
func (w *Workflow) transition(ctx context.Context, cur *Snapshot, event string) (string, error) {
	status, err := w.sm.Transition(ctx, cur.Status, event)
	if err != nil {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, cur.Status)
	}
	return status, nil
}

// reject records err on an otherwise unchanged snapshot.
func (w *Workflow) reject(cur *Snapshot, err error) (Snapshot, error) {
	next := *cur
	next.LastError = err
	return w.commit(cur, &next), err
}

// commit publishes next. Must be called with w.mu held.
func (w *Workflow) commit(prev, next *Snapshot) Snapshot {
	next.Version = prev.Version + 1
	w.current.Store(next)

	if prev.Status != next.Status {
		fields := []zap.Field{zap.String("from", prev.Status), zap.String("to", next.Status)}
		if next.Order != nil {
			fields = append(fields, zap.String("orderId", next.Order.OrderID))
		}
		w.logger.Debug("order transition", fields...)
	}
	for _, o := range w.observers {
		o(*next)
	}
	return *next
}
