// Package share routes a fulfilled order's redemption artifact to a contact
// or composes a message for a messaging channel.
package share

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrShareChannelUnavailable is a warning: the channel exists but is not
// supported where the service runs. The composed message is still returned.
var ErrShareChannelUnavailable = errors.New("share channel unavailable")

// ErrUnknownChannel indicates a channel kind outside the supported set.
var ErrUnknownChannel = errors.New("unknown share channel")

// ErrNoContactSender indicates contact delivery was requested without a sender.
var ErrNoContactSender = errors.New("no contact sender configured")

// ChannelKind is a messaging channel a message can be shared through.
type ChannelKind string

const (
	ChannelSMS          ChannelKind = "sms"
	ChannelMessagingApp ChannelKind = "messagingApp"
	ChannelGenericLink  ChannelKind = "genericLink"
)

// Channels returns every channel kind.
func Channels() []ChannelKind {
	return []ChannelKind{ChannelSMS, ChannelMessagingApp, ChannelGenericLink}
}

// ParseChannel validates a raw channel kind.
func ParseChannel(raw string) (ChannelKind, error) {
	for _, k := range Channels() {
		if string(k) == raw {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannel, raw)
}

// Contact is a person from the external contact directory. Npub is set
// when the contact can receive Nostr direct messages.
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Npub  string `json:"npub,omitempty"`
}

// Item is the fulfilled purchase being shared.
type Item struct {
	OrderID     string
	ProductName string
	Payload     string
}

// ComposedMessage is ready to hand to a platform share action. URL is empty
// for channels that take plain text.
type ComposedMessage struct {
	Kind ChannelKind `json:"kind"`
	Text string      `json:"text"`
	URL  string      `json:"url,omitempty"`
}

// ContactDirectory looks up contacts.
type ContactDirectory interface {
	Search(ctx context.Context, query string) ([]Contact, error)
}

// StaticDirectory is a fixed contact list. Search returns every contact
// and leaves name matching to the Dispatcher.
type StaticDirectory []Contact

func (d StaticDirectory) Search(context.Context, string) ([]Contact, error) {
	return d, nil
}

// ContactSender delivers a message to one contact.
type ContactSender interface {
	Send(ctx context.Context, to Contact, message string) error
}

// FormatPhone renders 10- and 11-digit numbers with grouping; anything else
// is returned unchanged.
func FormatPhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch len(d) {
	case 10:
		return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:])
	case 11:
		return fmt.Sprintf("%s (%s) %s-%s", d[:1], d[1:4], d[4:7], d[7:])
	default:
		return phone
	}
}

// MatchesContact reports whether the contact's name contains query,
// ignoring case.
func MatchesContact(c Contact, query string) bool {
	return strings.Contains(strings.ToLower(c.Name), strings.ToLower(query))
}
