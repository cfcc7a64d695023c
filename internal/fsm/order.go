package fsm

import (
	"context"
	"errors"
	"sync"

	"github.com/looplab/fsm"
)

// OrderStateMachine holds the order transition table. It keeps no order
// state of its own: callers pass the current status and get the next one.
type OrderStateMachine struct {
	fsm *fsm.FSM
	mu  sync.Mutex
}

func NewOrderStateMachine() *OrderStateMachine {
	osm := &OrderStateMachine{}
	osm.fsm = fsm.NewFSM(
		OrderStateIdle,
		fsm.Events{
			{Name: OrderEventStart, Src: []string{OrderStateIdle, OrderStateClosed}, Dst: OrderStateSelecting},
			{Name: OrderEventBeginPayment, Src: []string{OrderStateSelecting}, Dst: OrderStateAwaitingPaymentMethod},
			{Name: OrderEventChooseMethod, Src: []string{OrderStateSelecting, OrderStateAwaitingPaymentMethod, OrderStateFailed}, Dst: OrderStateAwaitingPaymentMethod},
			{Name: OrderEventConfirm, Src: []string{OrderStateAwaitingPaymentMethod}, Dst: OrderStateProcessing},
			{Name: OrderEventApprove, Src: []string{OrderStateProcessing}, Dst: OrderStateFulfilled},
			{Name: OrderEventFail, Src: []string{OrderStateProcessing}, Dst: OrderStateFailed},
			{Name: OrderEventRetry, Src: []string{OrderStateFailed}, Dst: OrderStateProcessing},
			{Name: OrderEventOpenShare, Src: []string{OrderStateFulfilled}, Dst: OrderStateSharing},
			{Name: OrderEventCloseShare, Src: []string{OrderStateSharing}, Dst: OrderStateClosed},
			{Name: OrderEventCancel, Src: []string{OrderStateSelecting, OrderStateAwaitingPaymentMethod, OrderStateProcessing, OrderStateFailed}, Dst: OrderStateClosed},
		},
		fsm.Callbacks{},
	)
	return osm
}

func (osm *OrderStateMachine) CanTransition(currentState, event string) bool {
	osm.mu.Lock()
	defer osm.mu.Unlock()
	osm.fsm.SetState(currentState)
	return osm.fsm.Can(event)
}

// Transition returns the status reached by applying event to currentState.
// Re-choosing a payment method is a self-transition and is not an error.
func (osm *OrderStateMachine) Transition(ctx context.Context, currentState, event string) (string, error) {
	osm.mu.Lock()
	defer osm.mu.Unlock()
	osm.fsm.SetState(currentState)
	if err := osm.fsm.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) && noTransition.Err == nil {
			return currentState, nil
		}
		return "", err
	}
	return osm.fsm.Current(), nil
}

func (osm *OrderStateMachine) AvailableEvents(currentState string) []string {
	osm.mu.Lock()
	defer osm.mu.Unlock()
	osm.fsm.SetState(currentState)
	return osm.fsm.AvailableTransitions()
}
