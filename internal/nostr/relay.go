// Package nostr delivers redemption messages to contacts as encrypted Nostr
// direct messages.
package nostr

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"
)

// ErrNoRelays indicates no relay could be reached.
var ErrNoRelays = errors.New("no relays connected")

// Publisher sends a signed event to the network.
type Publisher interface {
	Publish(ctx context.Context, event *nostr.Event) error
}

// RelayPool holds write connections to a set of relays.
type RelayPool struct {
	relayURLs []string
	relays    []*nostr.Relay
	mu        sync.RWMutex
	logger    *zap.Logger
}

func NewRelayPool(relayURLs []string, logger *zap.Logger) *RelayPool {
	return &RelayPool{
		relayURLs: relayURLs,
		logger:    logger,
	}
}

// Connect dials every configured relay. It fails only if none answer.
func (rp *RelayPool) Connect(ctx context.Context) error {
	var connected int
	for _, url := range rp.relayURLs {
		relay, err := nostr.RelayConnect(ctx, url)
		if err != nil {
			rp.logger.Warn("relay connect failed", zap.String("relay", url), zap.Error(err))
			continue
		}

		rp.mu.Lock()
		rp.relays = append(rp.relays, relay)
		rp.mu.Unlock()

		connected++
		rp.logger.Info("connected to relay", zap.String("relay", url))
	}

	if connected == 0 {
		return ErrNoRelays
	}

	rp.logger.Info("relay pool ready",
		zap.Int("connected", connected),
		zap.Int("configured", len(rp.relayURLs)),
	)
	return nil
}

// Publish sends an event to all connected relays. It succeeds if at least
// one relay accepts the event.
func (rp *RelayPool) Publish(ctx context.Context, event *nostr.Event) error {
	rp.mu.RLock()
	relays := make([]*nostr.Relay, len(rp.relays))
	copy(relays, rp.relays)
	rp.mu.RUnlock()

	if len(relays) == 0 {
		return ErrNoRelays
	}

	var lastErr error
	var published int

	for _, relay := range relays {
		err := relay.Publish(ctx, *event)
		if err != nil {
			lastErr = err
			rp.logger.Warn("publish failed", zap.String("relay", relay.URL), zap.Error(err))
			continue
		}
		published++
	}

	if published == 0 {
		return fmt.Errorf("failed to publish to any relay: %w", lastErr)
	}

	rp.logger.Debug("published event",
		zap.String("eventId", event.ID),
		zap.Int("relays", published),
	)
	return nil
}

// Close shuts down all relay connections.
func (rp *RelayPool) Close() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	for _, relay := range rp.relays {
		_ = relay.Close()
	}
	rp.relays = nil
}
