package notification

import (
	"context"
	"errors"
)

// ErrNoCarrier is returned by an SMSSender with no configured carrier.
var ErrNoCarrier = errors.New("no SMS carrier configured")

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}
