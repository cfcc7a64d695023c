// Package fulfillment mints and decodes redemption payloads for paid orders.
package fulfillment

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// PayloadPrefix starts every redemption payload.
const PayloadPrefix = "GIFTCON"

// ErrMalformedPayload indicates a payload that was not produced by Encode.
var ErrMalformedPayload = errors.New("malformed redemption payload")

// RedemptionCode proves a completed purchase.
type RedemptionCode struct {
	Payload  string    `json:"payload"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Decoded is the information recoverable from a payload.
type Decoded struct {
	OrderID   string
	ProductID string
	IssuedAt  time.Time
	Sequence  uint64
}

// Encoder produces payloads that are unique for the lifetime of the encoder:
// a monotonic sequence number is embedded next to the identifiers, so two
// orders issued in the same millisecond still differ.
type Encoder struct {
	seq atomic.Uint64
	now func() time.Time
}

func NewEncoder() *Encoder {
	return &Encoder{now: time.Now}
}

// NewEncoderWithClock creates an encoder with a custom clock (for testing).
func NewEncoderWithClock(now func() time.Time) *Encoder {
	return &Encoder{now: now}
}

// Encode builds the payload
// GIFTCON-<productID>-<issuedAt unix ms>-<seq>-<orderID>, with both ids
// hex encoded so they may contain the separator. The timestamp is the hex
// two's-complement of the unix milliseconds, so pre-epoch times carry no sign.
func (e *Encoder) Encode(orderID, productID string, issuedAt time.Time) string {
	seq := e.seq.Add(1)
	return strings.Join([]string{
		PayloadPrefix,
		hex.EncodeToString([]byte(productID)),
		strconv.FormatUint(uint64(issuedAt.UnixMilli()), 16),
		strconv.FormatUint(seq, 10),
		hex.EncodeToString([]byte(orderID)),
	}, "-")
}

// Mint issues a redemption code stamped with the encoder's clock.
func (e *Encoder) Mint(orderID, productID string) RedemptionCode {
	issuedAt := e.now().UTC().Truncate(time.Millisecond)
	return RedemptionCode{
		Payload:  e.Encode(orderID, productID, issuedAt),
		IssuedAt: issuedAt,
	}
}

// Decode recovers the identifiers and issue time from a payload.
func Decode(payload string) (Decoded, error) {
	parts := strings.Split(payload, "-")
	if len(parts) != 5 || parts[0] != PayloadPrefix {
		return Decoded{}, fmt.Errorf("%w: expected 5 fields with %s prefix", ErrMalformedPayload, PayloadPrefix)
	}

	productID, err := hex.DecodeString(parts[1])
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: product id: %v", ErrMalformedPayload, err)
	}
	ms, err := strconv.ParseUint(parts[2], 16, 64)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: issued at: %v", ErrMalformedPayload, err)
	}
	seq, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: sequence: %v", ErrMalformedPayload, err)
	}
	orderID, err := hex.DecodeString(parts[4])
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: order id: %v", ErrMalformedPayload, err)
	}

	return Decoded{
		OrderID:   string(orderID),
		ProductID: string(productID),
		IssuedAt:  time.UnixMilli(int64(ms)).UTC(),
		Sequence:  seq,
	}, nil
}
