package payment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome scripts what the simulated gateway answers.
type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeDecline Outcome = "decline"
	OutcomeHang    Outcome = "hang" // never answers; the caller's deadline fires
)

// Simulated stands in for a payment network: it waits Latency and answers
// with the scripted outcome. Per-order overrides let tests drive retries.
type Simulated struct {
	Latency time.Duration
	Default Outcome

	mu       sync.Mutex
	scripted map[string][]Outcome
	charges  []Charge
}

func NewSimulated(latency time.Duration, outcome Outcome) *Simulated {
	if outcome == "" {
		outcome = OutcomeApprove
	}
	return &Simulated{
		Latency:  latency,
		Default:  outcome,
		scripted: make(map[string][]Outcome),
	}
}

// Script queues outcomes for successive charges of one order.
func (s *Simulated) Script(orderID string, outcomes ...Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripted[orderID] = append(s.scripted[orderID], outcomes...)
}

// Charges returns the charges received so far.
func (s *Simulated) Charges() []Charge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Charge, len(s.charges))
	copy(out, s.charges)
	return out
}

func (s *Simulated) next(c Charge) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charges = append(s.charges, c)
	if q := s.scripted[c.OrderID]; len(q) > 0 {
		s.scripted[c.OrderID] = q[1:]
		return q[0]
	}
	return s.Default
}

func (s *Simulated) Charge(ctx context.Context, c Charge) (Result, error) {
	outcome := s.next(c)

	if outcome == OutcomeHang {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}

	if s.Latency > 0 {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(s.Latency):
		}
	} else if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if outcome == OutcomeDecline {
		return Result{Approved: false, Reason: "card declined by issuer"}, nil
	}
	return Result{Approved: true, Reference: "sim_" + uuid.NewString()}, nil
}
