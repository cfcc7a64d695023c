package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/buildtall-systems/gifticon/internal/catalog"
	"github.com/buildtall-systems/gifticon/internal/fsm"
	"github.com/buildtall-systems/gifticon/internal/fulfillment"
	"github.com/buildtall-systems/gifticon/internal/payment"
	"github.com/buildtall-systems/gifticon/internal/share"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testOrderID = "order-1"

type chargeReply struct {
	res payment.Result
	err error
}

// heldGateway blocks every charge until the test replies. It ignores
// cancellation so a reply can arrive after the order was abandoned.
type heldGateway struct {
	calls   chan payment.Charge
	replies chan chargeReply
}

func newHeldGateway() *heldGateway {
	return &heldGateway{
		calls:   make(chan payment.Charge, 4),
		replies: make(chan chargeReply, 4),
	}
}

func (g *heldGateway) Charge(_ context.Context, c payment.Charge) (payment.Result, error) {
	g.calls <- c
	r := <-g.replies
	return r.res, r.err
}

type session struct{ expired atomic.Bool }

func (s *session) IsAuthenticated(context.Context) bool { return !s.expired.Load() }

type contacts []share.Contact

func (c contacts) Search(context.Context, string) ([]share.Contact, error) { return c, nil }

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.snaps))
	for _, s := range r.snaps {
		if len(out) == 0 || out[len(out)-1] != s.Status {
			out = append(out, s.Status)
		}
	}
	return out
}

func newTestWorkflow(t *testing.T, gw payment.Gateway, opts ...Option) (*Workflow, *share.Dispatcher) {
	t.Helper()
	store, err := catalog.NewStore(catalog.DefaultProducts())
	require.NoError(t, err)

	dir := contacts{
		{ID: "c1", Name: "Jiwoo Park", Phone: "01012345678"},
		{ID: "c2", Name: "Minji Kim", Phone: "01098765432"},
	}
	dispatcher := share.NewDispatcher(share.Config{
		Brand:     "Capo 靠谱",
		Supported: []share.ChannelKind{share.ChannelSMS, share.ChannelGenericLink},
	}, dir, nil, zap.NewNop())

	opts = append([]Option{WithIDGenerator(func() string { return testOrderID })}, opts...)
	return New(store, gw, fulfillment.NewEncoder(), dispatcher, zap.NewNop(), opts...), dispatcher
}

func waitForStatus(t *testing.T, w *Workflow, status string) {
	t.Helper()
	require.Eventually(t, func() bool { return w.Snapshot().Status == status },
		time.Second, time.Millisecond, "status never became %s", status)
}

func TestWorkflow_HappyPath(t *testing.T) {
	rec := &recorder{}
	w, _ := newTestWorkflow(t, payment.NewSimulated(0, payment.OutcomeApprove), WithObserver(rec.observe))
	ctx := context.Background()

	snap, err := w.StartPurchase(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, fsm.OrderStateSelecting, snap.Status)
	assert.Equal(t, int64(50000), snap.Order.PriceSnapshot)
	assert.Nil(t, snap.Order.PaymentMethod)

	snap, err = w.ChoosePaymentMethod(ctx, payment.MethodCard)
	require.NoError(t, err)
	assert.Equal(t, fsm.OrderStateAwaitingPaymentMethod, snap.Status)
	require.NotNil(t, snap.Order.PaymentMethod)
	assert.Equal(t, payment.MethodCard, *snap.Order.PaymentMethod)

	snap, err = w.ConfirmPayment(ctx)
	require.NoError(t, err)
	assert.Equal(t, fsm.OrderStateSharing, snap.Status)
	assert.True(t, snap.Fulfilled())
	require.NotNil(t, snap.Order.Code)

	decoded, err := fulfillment.Decode(snap.Order.Code.Payload)
	require.NoError(t, err)
	assert.Equal(t, testOrderID, decoded.OrderID)
	assert.Equal(t, "1", decoded.ProductID)

	assert.Equal(t, []string{
		fsm.OrderStateSelecting,
		fsm.OrderStateAwaitingPaymentMethod,
		fsm.OrderStateProcessing,
		fsm.OrderStateFulfilled,
		fsm.OrderStateSharing,
	}, rec.statuses())

	history := w.History()
	require.Len(t, history, 1)
	assert.Equal(t, "Starbucks Gift Card ₩50,000", history[0].ProductName)
	assert.Equal(t, int64(50000), history[0].Price)

	snap, err = w.CloseShare(ctx)
	require.NoError(t, err)
	assert.Equal(t, fsm.OrderStateClosed, snap.Status)
	assert.Nil(t, snap.Order)
}

func TestWorkflow_ObserversSeeConsistentSnapshots(t *testing.T) {
	rec := &recorder{}
	w, _ := newTestWorkflow(t, payment.NewSimulated(0, payment.OutcomeApprove), WithObserver(rec.observe))
	ctx := context.Background()

	_, _ = w.StartPurchase(ctx, "2")
	_, _ = w.StartPurchase(ctx, "3")
	_, _ = w.ChoosePaymentMethod(ctx, payment.MethodWallet)
	_, _ = w.ConfirmPayment(ctx)

	require.NotEmpty(t, rec.snaps)
	for i, s := range rec.snaps {
		assert.Equal(t, uint64(i+1), s.Version, "versions increase by one per commit")
		if s.Order != nil {
			assert.Equal(t, s.Status, s.Order.Status)
		}
		if s.Status == fsm.OrderStateFulfilled || s.Status == fsm.OrderStateSharing {
			assert.NotNil(t, s.Order.Code)
		} else if s.Order != nil {
			assert.Nil(t, s.Order.Code)
		}
	}
}

func TestWorkflow_DuplicateStartRejected(t *testing.T) {
	w, _ := newTestWorkflow(t, payment.NewSimulated(0, payment.OutcomeApprove))
	ctx := context.Background()

	first, err := w.StartPurchase(ctx, "1")
	require.NoError(t, err)

	snap, err := w.StartPurchase(ctx, "2")
	require.ErrorIs(t, err, ErrDuplicateInFlightOrder)
	assert.Equal(t, fsm.OrderStateSelecting, snap.Status)
	assert.Equal(t, first.Order.OrderID, snap.Order.OrderID)
	assert.Equal(t, "1", snap.Order.ProductID)
	assert.ErrorIs(t, snap.LastError, ErrDuplicateInFlightOrder)
}

func TestWorkflow_StartUnknownProduct(t *testing.T) {
	w, _ := newTestWorkflow(t, payment.NewSimulated(0, payment.OutcomeApprove))

	snap, err := w.StartPurchase(context.Background(), "nope")
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.Equal(t, fsm.OrderStateIdle, snap.Status)
	assert.Nil(t, snap.Order)
}

func TestWorkflow_ConfirmWithoutMethod(t *testing.T) {
	gw := payment.NewSimulated(0, payment.OutcomeApprove)
	w, _ := newTestWorkflow(t, gw)
	ctx := context.Background()

	_, err := w.StartPurchase(ctx, "1")
	require.NoError(t, err)

	_, err = w.ConfirmPayment(ctx)
	require.ErrorIs(t, err, ErrNoPaymentMethodSelected)
	assert.Equal(t, fsm.OrderStateSelecting, w.Snapshot().Status)

	snap, err := w.BeginPayment(ctx)
	require.NoError(t, err)
	assert.Equal(t, fsm.OrderStateAwaitingPaymentMethod, snap.Status)

	snap, err = w.ConfirmPayment(ctx)
	require.ErrorIs(t, err, ErrNoPaymentMethodSelected)
	assert.Equal(t, fsm.OrderStateAwaitingPaymentMethod, snap.Status)
	assert.Nil(t, snap.Order.Code)
	assert.Empty(t, gw.Charges())
}

func TestWorkflow_InvalidPaymentMethod(t *testing.T) {
	w, _ := newTestWorkflow(t, payment.NewSimulated(0, payment.OutcomeApprove))
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "1")

	_, err := w.ChoosePaymentMethod(ctx, payment.Method("cash"))
	require.ErrorIs(t, err, ErrInvalidPaymentMethod)
	assert.Equal(t, fsm.OrderStateSelecting, w.Snapshot().Status)
}

func TestWorkflow_ChangeMethodBeforeConfirm(t *testing.T) {
	gw := payment.NewSimulated(0, payment.OutcomeApprove)
	w, _ := newTestWorkflow(t, gw)
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "1")

	_, err := w.ChoosePaymentMethod(ctx, payment.MethodCard)
	require.NoError(t, err)
	snap, err := w.ChoosePaymentMethod(ctx, payment.MethodThirdPartyWallet)
	require.NoError(t, err)
	assert.Equal(t, fsm.OrderStateAwaitingPaymentMethod, snap.Status)
	assert.Equal(t, payment.MethodThirdPartyWallet, *snap.Order.PaymentMethod)

	_, err = w.ConfirmPayment(ctx)
	require.NoError(t, err)
	charges := gw.Charges()
	require.Len(t, charges, 1)
	assert.Equal(t, payment.MethodThirdPartyWallet, charges[0].Method)
}

func TestWorkflow_DeclineThenRetry(t *testing.T) {
	gw := payment.NewSimulated(0, payment.OutcomeApprove)
	gw.Script(testOrderID, payment.OutcomeDecline)
	w, _ := newTestWorkflow(t, gw)
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "3")
	_, _ = w.ChoosePaymentMethod(ctx, payment.MethodCard)

	snap, err := w.ConfirmPayment(ctx)
	require.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Equal(t, fsm.OrderStateFailed, snap.Status)
	assert.ErrorIs(t, snap.LastError, ErrPaymentDeclined)
	assert.Nil(t, snap.Order.Code)
	assert.Empty(t, w.History())

	snap, err = w.RetryPayment(ctx)
	require.NoError(t, err)
	assert.Equal(t, fsm.OrderStateSharing, snap.Status)
	assert.Equal(t, 2, snap.Order.Attempts)

	charges := gw.Charges()
	require.Len(t, charges, 2)
	assert.NotEqual(t, charges[0].IdempotencyKey(), charges[1].IdempotencyKey())
}

func TestWorkflow_DeclineThenChooseAnotherMethod(t *testing.T) {
	gw := payment.NewSimulated(0, payment.OutcomeApprove)
	gw.Script(testOrderID, payment.OutcomeDecline)
	w, _ := newTestWorkflow(t, gw)
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "3")
	_, _ = w.ChoosePaymentMethod(ctx, payment.MethodCard)
	_, _ = w.ConfirmPayment(ctx)

	snap, err := w.ChoosePaymentMethod(ctx, payment.MethodWallet)
	require.NoError(t, err)
	assert.Equal(t, fsm.OrderStateAwaitingPaymentMethod, snap.Status)

	snap, err = w.ConfirmPayment(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Fulfilled())
}

func TestWorkflow_TimeoutThenRetry(t *testing.T) {
	gw := payment.NewSimulated(0, payment.OutcomeApprove)
	gw.Script(testOrderID, payment.OutcomeHang)
	w, _ := newTestWorkflow(t, gw, WithPaymentTimeout(20*time.Millisecond))
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "5")
	_, _ = w.ChoosePaymentMethod(ctx, payment.MethodWallet)

	snap, err := w.ConfirmPayment(ctx)
	require.ErrorIs(t, err, ErrPaymentTimeout)
	assert.Equal(t, fsm.OrderStateFailed, snap.Status)

	snap, err = w.RetryPayment(ctx)
	require.NoError(t, err)
	assert.Equal(t, fsm.OrderStateSharing, snap.Status)
}

func TestWorkflow_GatewayErrorIsTimeout(t *testing.T) {
	gw := newHeldGateway()
	w, _ := newTestWorkflow(t, gw)
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "5")
	_, _ = w.ChoosePaymentMethod(ctx, payment.MethodWallet)

	gw.replies <- chargeReply{err: payment.ErrGatewayUnavailable}
	_, err := w.ConfirmPayment(ctx)
	require.ErrorIs(t, err, ErrPaymentTimeout)
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
	assert.Equal(t, fsm.OrderStateFailed, w.Snapshot().Status)
}

func TestWorkflow_PriceSnapshotIsFixed(t *testing.T) {
	gw := newHeldGateway()
	w, _ := newTestWorkflow(t, gw)
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "7")
	_, _ = w.ChoosePaymentMethod(ctx, payment.MethodCard)

	done := make(chan Snapshot)
	go func() {
		snap, _ := w.ConfirmPayment(ctx)
		done <- snap
	}()

	charge := <-gw.calls
	assert.Equal(t, int64(80000), charge.Amount)
	assert.Equal(t, testOrderID, charge.OrderID)
	assert.Equal(t, 1, charge.Attempt)

	gw.replies <- chargeReply{res: payment.Result{Approved: true, Reference: "ref"}}
	snap := <-done
	assert.Equal(t, int64(80000), snap.Order.PriceSnapshot)
}

func TestWorkflow_CancelLeavesNoCode(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, w *Workflow)
	}{
		{"selecting", func(t *testing.T, w *Workflow) {}},
		{"awaiting payment method", func(t *testing.T, w *Workflow) {
			_, err := w.ChoosePaymentMethod(context.Background(), payment.MethodCard)
			require.NoError(t, err)
		}},
		{"failed", func(t *testing.T, w *Workflow) {
			_, _ = w.ChoosePaymentMethod(context.Background(), payment.MethodCard)
			_, err := w.ConfirmPayment(context.Background())
			require.ErrorIs(t, err, ErrPaymentDeclined)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newTestWorkflow(t, payment.NewSimulated(0, payment.OutcomeDecline))
			_, err := w.StartPurchase(context.Background(), "1")
			require.NoError(t, err)
			tt.setup(t, w)

			snap, err := w.Cancel(context.Background())
			require.NoError(t, err)
			assert.Equal(t, fsm.OrderStateClosed, snap.Status)
			assert.Nil(t, snap.Order)
			assert.Empty(t, w.History())
		})
	}
}

func TestWorkflow_CancelDuringProcessingDiscardsLateApproval(t *testing.T) {
	gw := newHeldGateway()
	rec := &recorder{}
	w, _ := newTestWorkflow(t, gw, WithObserver(rec.observe))
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "1")
	_, _ = w.ChoosePaymentMethod(ctx, payment.MethodCard)

	errs := make(chan error)
	go func() {
		_, err := w.ConfirmPayment(ctx)
		errs <- err
	}()
	<-gw.calls
	assert.Equal(t, fsm.OrderStateProcessing, w.Snapshot().Status)

	snap, err := w.Cancel(ctx)
	require.NoError(t, err)
	assert.Equal(t, fsm.OrderStateClosed, snap.Status)

	gw.replies <- chargeReply{res: payment.Result{Approved: true, Reference: "late"}}
	require.ErrorIs(t, <-errs, ErrOrderDiscarded)

	final := w.Snapshot()
	assert.Equal(t, fsm.OrderStateClosed, final.Status)
	assert.Nil(t, final.Order)
	assert.Empty(t, w.History())
	assert.NotContains(t, rec.statuses(), fsm.OrderStateFulfilled)
}

func TestWorkflow_CancelAbortsInFlightCharge(t *testing.T) {
	w, _ := newTestWorkflow(t, payment.NewSimulated(0, payment.OutcomeHang))
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "1")
	_, _ = w.ChoosePaymentMethod(ctx, payment.MethodCard)

	errs := make(chan error)
	go func() {
		_, err := w.ConfirmPayment(ctx)
		errs <- err
	}()
	waitForStatus(t, w, fsm.OrderStateProcessing)

	_, err := w.Cancel(ctx)
	require.NoError(t, err)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrOrderDiscarded)
	case <-time.After(time.Second):
		t.Fatal("confirm did not return after cancel")
	}
}

func TestWorkflow_CancelRejectedAfterFulfilment(t *testing.T) {
	w, _ := newTestWorkflow(t, payment.NewSimulated(0, payment.OutcomeApprove))
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "1")
	_, _ = w.ChoosePaymentMethod(ctx, payment.MethodCard)
	_, _ = w.ConfirmPayment(ctx)

	snap, err := w.Cancel(ctx)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, fsm.OrderStateSharing, snap.Status)
	assert.NotNil(t, snap.Order.Code)
}

func TestWorkflow_NewPurchaseAfterClose(t *testing.T) {
	ids := []string{"a", "b"}
	var n atomic.Int32
	store, err := catalog.NewStore(catalog.DefaultProducts())
	require.NoError(t, err)
	dispatcher := share.NewDispatcher(share.Config{}, contacts{}, nil, zap.NewNop())
	w := New(store, payment.NewSimulated(0, payment.OutcomeApprove), fulfillment.NewEncoder(), dispatcher, zap.NewNop(),
		WithIDGenerator(func() string { return ids[n.Add(1)-1] }))
	ctx := context.Background()

	for _, id := range []string{"1", "2"} {
		_, err := w.StartPurchase(ctx, id)
		require.NoError(t, err)
		_, _ = w.ChoosePaymentMethod(ctx, payment.MethodWallet)
		_, err = w.ConfirmPayment(ctx)
		require.NoError(t, err)
		_, err = w.CloseShare(ctx)
		require.NoError(t, err)
	}

	history := w.History()
	require.Len(t, history, 2)
	assert.Equal(t, "b", history[0].OrderID)
	assert.Equal(t, "a", history[1].OrderID)
}

func TestWorkflow_SessionExpiredDuringPayment(t *testing.T) {
	gw := newHeldGateway()
	sess := &session{}
	w, _ := newTestWorkflow(t, gw, WithSession(sess))
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "1")
	_, _ = w.ChoosePaymentMethod(ctx, payment.MethodCard)

	errs := make(chan error)
	go func() {
		_, err := w.ConfirmPayment(ctx)
		errs <- err
	}()
	<-gw.calls
	sess.expired.Store(true)
	gw.replies <- chargeReply{res: payment.Result{Approved: true}}

	err := <-errs
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.ErrorIs(t, err, ErrPaymentTimeout)

	snap := w.Snapshot()
	assert.Equal(t, fsm.OrderStateFailed, snap.Status)
	assert.Nil(t, snap.Order.Code)

	_, err = w.RetryPayment(ctx)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, fsm.OrderStateFailed, w.Snapshot().Status)

	sess.expired.Store(false)
	go func() {
		_, err := w.RetryPayment(ctx)
		errs <- err
	}()
	<-gw.calls
	gw.replies <- chargeReply{res: payment.Result{Approved: true}}
	require.NoError(t, <-errs)
	assert.True(t, w.Snapshot().Fulfilled())
}

func TestWorkflow_ReadsDoNotBlockOnPayment(t *testing.T) {
	gw := newHeldGateway()
	w, _ := newTestWorkflow(t, gw)
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "1")
	_, _ = w.ChoosePaymentMethod(ctx, payment.MethodCard)

	done := make(chan struct{})
	go func() {
		_, _ = w.ConfirmPayment(ctx)
		close(done)
	}()
	<-gw.calls

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := w.Snapshot()
			assert.Equal(t, fsm.OrderStateProcessing, s.Status)
			assert.Equal(t, s.Status, s.Order.Status)
			_ = w.History()
		}()
	}
	wg.Wait()

	_, err := w.ChoosePaymentMethod(ctx, payment.MethodWallet)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	gw.replies <- chargeReply{res: payment.Result{Approved: true}}
	<-done
	assert.True(t, w.Snapshot().Fulfilled())
}

func TestWorkflow_ShareRequiresFulfilment(t *testing.T) {
	w, _ := newTestWorkflow(t, payment.NewSimulated(0, payment.OutcomeApprove))
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "1")

	_, err := w.ShareToContact(ctx, "jiwoo")
	assert.ErrorIs(t, err, ErrOrderNotFulfilled)
	_, err = w.ShareToChannel(share.ChannelSMS)
	assert.ErrorIs(t, err, ErrOrderNotFulfilled)
	err = w.SendToContact(share.Contact{ID: "c1"})
	assert.ErrorIs(t, err, ErrOrderNotFulfilled)
	assert.Equal(t, fsm.OrderStateSelecting, w.Snapshot().Status)
}

func TestWorkflow_ShareAfterFulfilment(t *testing.T) {
	w, _ := newTestWorkflow(t, payment.NewSimulated(0, payment.OutcomeApprove))
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "1")
	_, _ = w.ChoosePaymentMethod(ctx, payment.MethodCard)
	_, _ = w.ConfirmPayment(ctx)

	found, err := w.ShareToContact(ctx, "jiwoo")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "c1", found[0].ID)

	msg, err := w.ShareToChannel(share.ChannelSMS)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Starbucks Gift Card")
	assert.Nil(t, w.Snapshot().Warning)

	msg, err = w.ShareToChannel(share.ChannelMessagingApp)
	require.ErrorIs(t, err, share.ErrShareChannelUnavailable)
	assert.NotEmpty(t, msg.URL)

	snap := w.Snapshot()
	assert.Equal(t, fsm.OrderStateSharing, snap.Status)
	assert.ErrorIs(t, snap.Warning, share.ErrShareChannelUnavailable)

	// No sender is configured in this fixture.
	assert.ErrorIs(t, w.SendToContact(found[0]), share.ErrNoContactSender)
}

func TestOrder_JSON(t *testing.T) {
	method := payment.MethodCard
	order := Order{
		OrderID:       "o1",
		ProductID:     "1",
		ProductName:   "Starbucks Gift Card ₩50,000",
		PriceSnapshot: 50000,
		PaymentMethod: &method,
		Status:        fsm.OrderStateProcessing,
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Attempts:      1,
	}

	raw, err := json.Marshal(order)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "o1", fields["orderId"])
	assert.Equal(t, float64(50000), fields["priceSnapshot"])
	assert.Equal(t, "card", fields["paymentMethod"])
	assert.Equal(t, "processing", fields["status"])
	assert.Nil(t, fields["code"])
}

func TestErrSessionExpired(t *testing.T) {
	assert.True(t, errors.Is(ErrSessionExpired, ErrPaymentTimeout))
	assert.False(t, errors.Is(ErrPaymentTimeout, ErrSessionExpired))
	assert.Equal(t, "session expired during payment", ErrSessionExpired.Error())
}

func TestWorkflow_ConfirmPaymentAsync(t *testing.T) {
	gw := newHeldGateway()
	w, _ := newTestWorkflow(t, gw)
	ctx := context.Background()

	_, err := w.StartPurchase(ctx, "2")
	require.NoError(t, err)
	_, err = w.ChoosePaymentMethod(ctx, payment.MethodWallet)
	require.NoError(t, err)

	snap, outcome, err := w.ConfirmPaymentAsync(ctx)
	require.NoError(t, err)
	assert.Equal(t, fsm.OrderStateProcessing, snap.Status)

	charge := <-gw.calls
	assert.Equal(t, int64(15000), charge.Amount)
	gw.replies <- chargeReply{res: payment.Result{Approved: true, Reference: "ref"}}

	select {
	case o := <-outcome:
		require.NoError(t, o.Err)
		assert.Equal(t, fsm.OrderStateSharing, o.Snapshot.Status)
	case <-time.After(time.Second):
		t.Fatal("no outcome delivered")
	}
}

func TestWorkflow_AsyncRejectionIsSynchronous(t *testing.T) {
	gw := newHeldGateway()
	w, _ := newTestWorkflow(t, gw)
	ctx := context.Background()

	_, err := w.StartPurchase(ctx, "2")
	require.NoError(t, err)

	_, outcome, err := w.ConfirmPaymentAsync(ctx)
	assert.ErrorIs(t, err, ErrNoPaymentMethodSelected)
	assert.Nil(t, outcome)

	_, outcome, err = w.RetryPaymentAsync(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Nil(t, outcome)
	assert.Empty(t, gw.calls)
}

func TestSnapshot_Fulfilled(t *testing.T) {
	code := &fulfillment.RedemptionCode{Payload: "GIFTCON-31-0-1-6f"}
	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{"sharing with code", Snapshot{Status: fsm.OrderStateSharing, Order: &Order{Code: code}}, true},
		{"fulfilled with code", Snapshot{Status: fsm.OrderStateFulfilled, Order: &Order{Code: code}}, true},
		{"processing", Snapshot{Status: fsm.OrderStateProcessing, Order: &Order{}}, false},
		{"sharing without code", Snapshot{Status: fsm.OrderStateSharing, Order: &Order{}}, false},
		{"closed", Snapshot{Status: fsm.OrderStateClosed}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.snap.Fulfilled())
		})
	}
}

func TestWorkflow_ReadersSeeSharingAfterApproval(t *testing.T) {
	rec := &recorder{}
	w, _ := newTestWorkflow(t, payment.NewSimulated(0, payment.OutcomeApprove), WithObserver(rec.observe))
	ctx := context.Background()
	_, _ = w.StartPurchase(ctx, "1")
	_, _ = w.ChoosePaymentMethod(ctx, payment.MethodCard)

	snap, err := w.ConfirmPayment(ctx)
	require.NoError(t, err)
	assert.Equal(t, fsm.OrderStateSharing, snap.Status)
	assert.Equal(t, fsm.OrderStateSharing, w.Snapshot().Status)
	assert.True(t, w.Snapshot().Fulfilled())
	assert.Contains(t, rec.statuses(), fsm.OrderStateFulfilled)
}
