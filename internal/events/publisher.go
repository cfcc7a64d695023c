// Package events publishes order lifecycle transitions to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/buildtall-systems/gifticon/internal/workflow"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DefaultTopic receives order transitions when none is configured.
const DefaultTopic = "gifticon.order-transitions"

const defaultBuffer = 256

// ErrPublisherClosed indicates Run was called after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// ErrPublisherRunning indicates Run was called twice.
var ErrPublisherRunning = errors.New("publisher already running")

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Transition is the wire record for one status change.
type Transition struct {
	Session    string    `json:"session"`
	OrderID    string    `json:"orderId,omitempty"`
	ProductID  string    `json:"productId,omitempty"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Version    uint64    `json:"version"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewKafkaWriter builds an async writer for topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// Publisher forwards transitions to a MessageWriter from a single goroutine.
// Observers never block: when the buffer is full the transition is dropped
// and logged.
type Publisher struct {
	writer MessageWriter
	logger *zap.Logger
	now    func() time.Time

	queue   chan Transition
	mu      sync.Mutex
	running bool
	closed  chan struct{}
	done    chan struct{}
}

func NewPublisher(writer MessageWriter, logger *zap.Logger) *Publisher {
	return &Publisher{
		writer: writer,
		logger: logger,
		now:    time.Now,
		queue:  make(chan Transition, defaultBuffer),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Observer returns a workflow observer for one session. It emits a
// Transition whenever the session's status changes.
func (p *Publisher) Observer(session string) workflow.Observer {
	var last string
	return func(s workflow.Snapshot) {
		if s.Status == last {
			return
		}
		t := Transition{
			Session:    session,
			From:       last,
			To:         s.Status,
			Version:    s.Version,
			OccurredAt: p.now().UTC(),
		}
		last = s.Status
		if s.Order != nil {
			t.OrderID = s.Order.OrderID
			t.ProductID = s.Order.ProductID
		}
		if s.LastError != nil {
			t.Error = s.LastError.Error()
		}
		p.enqueue(t)
	}
}

func (p *Publisher) enqueue(t Transition) {
	select {
	case <-p.closed:
		return
	default:
	}
	select {
	case p.queue <- t:
	default:
		p.logger.Warn("transition queue full, dropping",
			zap.String("session", t.Session),
			zap.String("to", t.To),
		)
	}
}

// Run writes queued transitions until ctx is done or Close is called, then
// flushes what is left.
func (p *Publisher) Run(ctx context.Context) error {
	p.mu.Lock()
	select {
	case <-p.closed:
		p.mu.Unlock()
		return ErrPublisherClosed
	default:
	}
	if p.running {
		p.mu.Unlock()
		return ErrPublisherRunning
	}
	p.running = true
	p.mu.Unlock()
	defer close(p.done)

	for {
		select {
		case t := <-p.queue:
			p.write(ctx, t)
		case <-ctx.Done():
			p.drain()
			return nil
		case <-p.closed:
			p.drain()
			return nil
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case t := <-p.queue:
			p.write(ctx, t)
		default:
			return
		}
	}
}

func (p *Publisher) write(ctx context.Context, t Transition) {
	value, err := json.Marshal(t)
	if err != nil {
		p.logger.Error("encoding transition", zap.Error(err))
		return
	}
	key := t.OrderID
	if key == "" {
		key = t.Session
	}
	msg := kafka.Message{Key: []byte(key), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("writing transition",
			zap.String("orderId", t.OrderID),
			zap.String("to", t.To),
			zap.Error(err),
		)
	}
}

// Close stops Run, waits for the final flush and closes the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	select {
	case <-p.closed:
		p.mu.Unlock()
		return nil
	default:
	}
	close(p.closed)
	running := p.running
	p.mu.Unlock()

	if running {
		<-p.done
	}
	return p.writer.Close()
}
