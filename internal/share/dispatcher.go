package share

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultSendTimeout = 30 * time.Second

// Dispatcher routes a fulfilled item to a contact or a channel.
type Dispatcher struct {
	directory ContactDirectory
	sender    ContactSender
	composer  Composer
	supported map[ChannelKind]bool
	logger    *zap.Logger

	sendTimeout time.Duration
	wg          sync.WaitGroup
}

// Config configures a Dispatcher. A nil Supported enables every channel.
type Config struct {
	Brand          string
	GenericLinkURL string
	Supported      []ChannelKind
	SendTimeout    time.Duration
}

func NewDispatcher(cfg Config, directory ContactDirectory, sender ContactSender, logger *zap.Logger) *Dispatcher {
	supported := make(map[ChannelKind]bool)
	kinds := cfg.Supported
	if kinds == nil {
		kinds = Channels()
	}
	for _, k := range kinds {
		supported[k] = true
	}
	timeout := cfg.SendTimeout
	if timeout == 0 {
		timeout = defaultSendTimeout
	}
	return &Dispatcher{
		directory:   directory,
		sender:      sender,
		composer:    Composer{Brand: cfg.Brand, GenericLinkURL: cfg.GenericLinkURL},
		supported:   supported,
		logger:      logger,
		sendTimeout: timeout,
	}
}

// ShareToContact returns the directory's candidates for query, keeping only
// case-insensitive name matches in the order the directory returned them.
func (d *Dispatcher) ShareToContact(ctx context.Context, item Item, query string) ([]Contact, error) {
	found, err := d.directory.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("searching contacts: %w", err)
	}
	matches := make([]Contact, 0, len(found))
	for _, c := range found {
		if MatchesContact(c, query) {
			matches = append(matches, c)
		}
	}
	d.logger.Debug("contact candidates",
		zap.String("orderId", item.OrderID),
		zap.String("query", query),
		zap.Int("matches", len(matches)),
	)
	return matches, nil
}

// SendToContact starts delivery to c in the background and returns at once.
// Delivery failures are logged; they never affect the caller.
func (d *Dispatcher) SendToContact(item Item, c Contact) error {
	if d.sender == nil {
		return ErrNoContactSender
	}
	message := d.composer.Message(item.ProductName) + "\nRedemption code: " + item.Payload

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		defer cancel()
		if err := d.sender.Send(ctx, c, message); err != nil {
			d.logger.Warn("sending to contact failed",
				zap.String("orderId", item.OrderID),
				zap.String("contactId", c.ID),
				zap.Error(err),
			)
			return
		}
		d.logger.Info("sent to contact",
			zap.String("orderId", item.OrderID),
			zap.String("contactId", c.ID),
		)
	}()
	return nil
}

// ShareToChannel composes the message for kind. When kind is not supported
// in this environment the message is returned together with
// ErrShareChannelUnavailable, which callers treat as a warning.
func (d *Dispatcher) ShareToChannel(item Item, kind ChannelKind) (ComposedMessage, error) {
	msg, err := d.composer.Compose(kind, item.ProductName)
	if err != nil {
		return ComposedMessage{}, err
	}
	if !d.supported[kind] {
		return msg, fmt.Errorf("%w: %s", ErrShareChannelUnavailable, kind)
	}
	return msg, nil
}

// Wait blocks until background sends have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
