package engine

import (
	"errors"

	"bourse/internal/common"

	"github.com/shopspring/decimal"
)

var (
	// ErrRejection covers orders and quotes with a non-positive price or
	// quantity.
	ErrRejection = errors.New("order rejection")
	// ErrUnknownAccount rejects submissions from accounts the ledger does
	// not know. Keeping them out of the book guarantees settlement always
	// finds both counterparties.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrUnfulfillable reports a fill-or-kill order whose feasibility scan
	// cannot cover the requested quantity at the requested limit.
	ErrUnfulfillable = errors.New("cannot fulfill at current price")
	// ErrNotEnoughLiquidity reports a quote the opposite side cannot cover.
	ErrNotEnoughLiquidity = errors.New("not enough liquidity")
)

// DepthLevel aggregates resting quantity at one exact price. When a price
// momentarily exists on both sides the side tag of the second side scanned
// wins while quantity accumulates across both.
type DepthLevel struct {
	Side     common.Side
	Quantity decimal.Decimal
}

// TradeReporter receives every settled trade. Implementations must not call
// back into the engine.
type TradeReporter interface {
	ReportTrade(trade common.Trade)
}
