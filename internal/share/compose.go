package share

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	smsBase          = "sms:?body="
	messagingAppBase = "https://wa.me/?text="
)

// Composer turns a message into a channel invocation.
type Composer struct {
	Brand          string
	GenericLinkURL string // prefix the escaped message is appended to
}

// Message is the text shared for a purchase.
func (c Composer) Message(productName string) string {
	return fmt.Sprintf("I just purchased %s via %s!", productName, c.Brand)
}

// Compose builds the invocation for kind.
func (c Composer) Compose(kind ChannelKind, productName string) (ComposedMessage, error) {
	text := c.Message(productName)
	msg := ComposedMessage{Kind: kind, Text: text}

	switch kind {
	case ChannelSMS:
		msg.URL = smsBase + escape(text)
	case ChannelMessagingApp:
		msg.URL = messagingAppBase + escape(text)
	case ChannelGenericLink:
		if c.GenericLinkURL != "" {
			msg.URL = c.GenericLinkURL + escape(text)
		}
	default:
		return ComposedMessage{}, fmt.Errorf("%w: %q", ErrUnknownChannel, kind)
	}
	return msg, nil
}

// escape matches encodeURIComponent: spaces become %20, not '+'.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
