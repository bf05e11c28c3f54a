// Package engine implements the venue's matching core: order submission with
// fill-or-kill and limit semantics, settlement against the ledger, and the
// depth and quote read paths.
package engine

import (
	"fmt"
	"sync"
	"time"

	"bourse/internal/common"
	"bourse/internal/ledger"
	"bourse/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Engine owns the order book and the ledger reference. All operations run
// under a single mutual-exclusion domain: Place holds the write lock for the
// entire match-and-settle sequence, the read paths share the read lock. No
// two mutations of the book or the ledger ever interleave.
type Engine struct {
	mu sync.RWMutex

	book      OrderBook
	ledger    *ledger.Ledger
	reporter  TradeReporter
	log       zerolog.Logger
	lastPrice decimal.Decimal
}

func New(l *ledger.Ledger, log zerolog.Logger) *Engine {
	engine := &Engine{
		ledger: l,
		log:    log.With().Str("component", "engine").Logger(),
	}
	engine.book = NewOrderBook(engine)
	return engine
}

// SetReporter installs the trade reporter. Must be called before the engine
// serves requests.
func (engine *Engine) SetReporter(reporter TradeReporter) {
	engine.reporter = reporter
}

// Place submits a limit order and returns the quantity filled immediately.
// Any unfilled remainder rests on the order's own side. With fillOrKill set,
// a read-only feasibility scan runs first and an unfulfillable order returns
// ErrUnfulfillable with no state mutated at all.
func (engine *Engine) Place(order common.Order, fillOrKill bool) (decimal.Decimal, error) {
	if !order.LimitPrice.IsPositive() || !order.Quantity.IsPositive() {
		metrics.OrdersRejectedTotal.Inc()
		return decimal.Zero, ErrRejection
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	if !engine.ledger.Has(order.Owner) {
		metrics.OrdersRejectedTotal.Inc()
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownAccount, order.Owner)
	}

	if fillOrKill && !engine.book.feasible(&order) {
		metrics.OrdersKilledTotal.Inc()
		return decimal.Zero, ErrUnfulfillable
	}

	requested := order.Quantity
	engine.book.match(&order)
	if order.Quantity.IsPositive() {
		engine.book.insert(&order)
	}
	filled := requested.Sub(order.Quantity)

	metrics.OrdersSubmittedTotal.Inc()
	engine.log.Debug().
		Str("owner", order.Owner).
		Stringer("side", order.Side).
		Stringer("price", order.LimitPrice).
		Stringer("requested", requested).
		Stringer("filled", filled).
		Msg("order placed")
	return filled, nil
}

// trade settles one match between the incoming (taker) order and a resting
// (maker) order at the resting price, then reports it. Called by the book
// mid-sweep, with the engine write lock held.
func (engine *Engine) trade(taker, maker *common.Order, quantity, price decimal.Decimal) {
	buyer, seller := taker.Owner, maker.Owner
	if taker.Side == common.Sell {
		buyer, seller = maker.Owner, taker.Owner
	}

	record := common.Trade{
		ID:        uuid.New().String(),
		Buyer:     buyer,
		Seller:    seller,
		Taker:     taker.Side,
		Quantity:  quantity,
		Price:     price,
		Timestamp: time.Now(),
	}

	if err := engine.ledger.Transfer(buyer, seller, quantity, price); err != nil {
		// Place refuses orders from unknown accounts, so this leg is
		// unreachable unless book and ledger have diverged.
		engine.log.Error().
			Err(err).
			Str("buyer", buyer).
			Str("seller", seller).
			Msg("settlement skipped: book and ledger inconsistent")
		return
	}

	engine.lastPrice = price
	metrics.TradesExecutedTotal.Inc()
	metrics.TradeVolume.Add(quantity.InexactFloat64())
	engine.log.Info().
		Str("trade_id", record.ID).
		Str("buyer", buyer).
		Str("seller", seller).
		Stringer("quantity", quantity).
		Stringer("price", price).
		Msg("trade executed")

	if engine.reporter != nil {
		engine.reporter.ReportTrade(record)
	}
}

// Depth aggregates resting quantity per price level across both sides.
func (engine *Engine) Depth() map[string]DepthLevel {
	engine.mu.RLock()
	defer engine.mu.RUnlock()

	metrics.DepthRequestsTotal.Inc()
	return engine.book.depth()
}

// Quote prices a hypothetical fill of quantity on side for requester,
// excluding the requester's own resting orders, and returns the average
// execution price. Nothing is mutated.
func (engine *Engine) Quote(side common.Side, quantity decimal.Decimal, requester string) (decimal.Decimal, error) {
	if !quantity.IsPositive() {
		return decimal.Zero, ErrRejection
	}

	engine.mu.RLock()
	defer engine.mu.RUnlock()

	metrics.QuoteRequestsTotal.Inc()
	cost, covered := engine.book.simulateFill(side, quantity, requester)
	if !covered {
		return decimal.Zero, ErrNotEnoughLiquidity
	}
	return cost.Div(quantity), nil
}

// Balance returns the account's holdings, zeroed for unknown accounts. It
// shares the engine read lock so a lookup never observes the ledger in the
// middle of a multi-trade submit.
func (engine *Engine) Balance(account string) ledger.Holdings {
	engine.mu.RLock()
	defer engine.mu.RUnlock()
	return engine.ledger.Balance(account)
}

// BestBid returns the highest resting bid price, if any.
func (engine *Engine) BestBid() (decimal.Decimal, bool) {
	engine.mu.RLock()
	defer engine.mu.RUnlock()
	return engine.book.bestBid()
}

// BestAsk returns the lowest resting ask price, if any.
func (engine *Engine) BestAsk() (decimal.Decimal, bool) {
	engine.mu.RLock()
	defer engine.mu.RUnlock()
	return engine.book.bestAsk()
}

// LastPrice returns the price of the most recent trade, zero before any.
func (engine *Engine) LastPrice() decimal.Decimal {
	engine.mu.RLock()
	defer engine.mu.RUnlock()
	return engine.lastPrice
}
