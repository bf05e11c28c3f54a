package common

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidSide = errors.New("invalid side")

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "bid"
	case Sell:
		return "ask"
	}
	return "unknown"
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide accepts the wire spellings of both sides.
func ParseSide(s string) (Side, error) {
	switch s {
	case "bid", "buy":
		return Buy, nil
	case "ask", "sell":
		return Sell, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSide, s)
}

// Order is a limit order. Resting orders keep their identity positionally
// within the book; Quantity is the remaining unfilled amount and is mutated
// downward as fills occur.
type Order struct {
	Owner      string          // Account the order trades for
	Side       Side            // Order side
	LimitPrice decimal.Decimal // Worst acceptable execution price
	Quantity   decimal.Decimal // Remaining unfilled quantity
}

func (order Order) String() string {
	return fmt.Sprintf(
		`Owner:      %s
Side:       %v
LimitPrice: %s
Quantity:   %s`,
		order.Owner,
		order.Side,
		order.LimitPrice,
		order.Quantity,
	)
}
