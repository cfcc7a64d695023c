package nostr

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildtall-systems/gifticon/internal/share"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/keyer"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// ErrContactUnreachable indicates the contact has no usable npub.
var ErrContactUnreachable = errors.New("contact has no nostr public key")

// Sender delivers share messages as gift-wrapped DMs.
type Sender struct {
	keyer     nostr.Keyer
	pubkeyHex string
	publisher Publisher
}

var _ share.ContactSender = (*Sender)(nil)

// NewSender creates a sender signing with the hex secret key secretHex.
func NewSender(secretHex string, publisher Publisher) (*Sender, error) {
	kr, err := keyer.NewPlainKeySigner(secretHex)
	if err != nil {
		return nil, fmt.Errorf("creating keyer: %w", err)
	}
	pubkey, err := nostr.GetPublicKey(secretHex)
	if err != nil {
		return nil, fmt.Errorf("deriving public key: %w", err)
	}
	return &Sender{keyer: kr, pubkeyHex: pubkey, publisher: publisher}, nil
}

// PublicKey returns the sender's hex public key.
func (s *Sender) PublicKey() string {
	return s.pubkeyHex
}

// Send wraps message for the contact's npub and publishes it.
func (s *Sender) Send(ctx context.Context, to share.Contact, message string) error {
	recipient, err := decodeNpub(to.Npub)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrContactUnreachable, to.ID, err)
	}

	event, err := WrapDM(ctx, s.keyer, s.pubkeyHex, recipient, message)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("publishing dm: %w", err)
	}
	return nil
}

func decodeNpub(npub string) (string, error) {
	if npub == "" {
		return "", errors.New("empty npub")
	}
	prefix, value, err := nip19.Decode(npub)
	if err != nil {
		return "", err
	}
	if prefix != "npub" {
		return "", fmt.Errorf("expected npub, got %s", prefix)
	}
	hex, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected npub payload %T", value)
	}
	return hex, nil
}
