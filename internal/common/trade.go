package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade records one settled match between two accounts. Price is always the
// resting order's limit price; price improvement goes to the taker.
type Trade struct {
	ID        string          // Trade tracked uuid
	Buyer     string          // Account receiving the instrument
	Seller    string          // Account receiving the quote currency
	Taker     Side            // Side of the incoming order
	Quantity  decimal.Decimal // Matched quantity
	Price     decimal.Decimal // Execution price (resting order's limit)
	Timestamp time.Time       // Time of settlement
}

func (t Trade) String() string {
	return fmt.Sprintf(
		`ID:        %s
Buyer:     %s
Seller:    %s
Taker:     %v
Quantity:  %s
Price:     %s
Timestamp: %v`,
		t.ID,
		t.Buyer,
		t.Seller,
		t.Taker,
		t.Quantity,
		t.Price,
		t.Timestamp.Format(time.RFC3339),
	)
}
