package engine

import (
	"bourse/internal/common"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

type priceLevel struct {
	price  decimal.Decimal
	orders []*common.Order
}

type priceLevels = btree.BTreeG[*priceLevel]

// OrderBook keeps the two resting-order sides as btrees of price levels,
// orders at a level held in arrival order. Bids compare greatest first and
// asks least first, so for any incoming order Scan over the opposite side
// always visits the most favorable price first. Matching order is defined by
// these comparators, never by a physical array end.
type OrderBook struct {
	// Pointer to the owning engine, which settles and reports trades.
	engine *Engine

	bids *priceLevels
	asks *priceLevels
}

func NewOrderBook(engine *Engine) OrderBook {
	// Sorted greatest first.
	bids := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price.GreaterThan(b.price)
	})
	// Sorted least first.
	asks := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price.LessThan(b.price)
	})
	return OrderBook{
		engine: engine,
		bids:   bids,
		asks:   asks,
	}
}

// restingSide returns the side a remainder of this order would rest on.
func (book *OrderBook) restingSide(side common.Side) *priceLevels {
	if side == common.Buy {
		return book.bids
	}
	return book.asks
}

// matchingSide returns the side an incoming order matches against.
func (book *OrderBook) matchingSide(side common.Side) *priceLevels {
	if side == common.Buy {
		return book.asks
	}
	return book.bids
}

// withinLimit reports whether a resting price level passes the incoming
// order's limit test: asks at or below a buy's limit, bids at or above a
// sell's limit.
func withinLimit(side common.Side, limit, restingPrice decimal.Decimal) bool {
	if side == common.Buy {
		return restingPrice.LessThanOrEqual(limit)
	}
	return restingPrice.GreaterThanOrEqual(limit)
}

// insert rests the order's remaining quantity on its own side, creating the
// price level if it does not exist yet.
func (book *OrderBook) insert(order *common.Order) {
	levels := book.restingSide(order.Side)

	// Levels comparator only accounts for price, so a dummy level works
	// for the search.
	level, ok := levels.GetMut(&priceLevel{price: order.LimitPrice})
	if ok {
		level.orders = append(level.orders, order)
	} else {
		levels.Set(&priceLevel{
			price:  order.LimitPrice,
			orders: []*common.Order{order},
		})
	}
}

// feasible is the read-only fill-or-kill pre-check: it simulates consuming
// the opposite side best price first and reports whether the order's full
// quantity is coverable within its limit. Resting orders owned by the
// submitter count towards cover, matching the reference scan.
func (book *OrderBook) feasible(order *common.Order) bool {
	need := order.Quantity
	book.matchingSide(order.Side).Scan(func(level *priceLevel) bool {
		if !withinLimit(order.Side, order.LimitPrice, level.price) {
			return false
		}
		for _, resting := range level.orders {
			need = need.Sub(resting.Quantity)
		}
		return need.IsPositive()
	})
	return !need.IsPositive()
}

// match sweeps the opposite side best price first, consuming resting orders
// within the incoming order's limit. Skipped self-owned orders stay exactly
// where they are; only the matched orders are removed, and a level is deleted
// only once it holds no orders at all. Each match settles immediately through
// the engine at the resting order's price.
func (book *OrderBook) match(incoming *common.Order) {
	levels := book.matchingSide(incoming.Side)

	var emptied []*priceLevel
	levels.Scan(func(level *priceLevel) bool {
		if !withinLimit(incoming.Side, incoming.LimitPrice, level.price) {
			return false
		}

		kept := level.orders[:0]
		for _, resting := range level.orders {
			if incoming.Quantity.IsPositive() && resting.Owner != incoming.Owner {
				matchQty := decimal.Min(incoming.Quantity, resting.Quantity)
				incoming.Quantity = incoming.Quantity.Sub(matchQty)
				resting.Quantity = resting.Quantity.Sub(matchQty)

				book.engine.trade(incoming, resting, matchQty, level.price)

				if resting.Quantity.IsZero() {
					// Fully consumed, drop from the level.
					continue
				}
			}
			kept = append(kept, resting)
		}
		level.orders = kept

		if len(level.orders) == 0 {
			// Structural deletes wait until the scan is done.
			emptied = append(emptied, level)
		}
		return incoming.Quantity.IsPositive()
	})

	for _, level := range emptied {
		levels.Delete(level)
	}
}

// simulateFill prices a hypothetical fill of quantity against the opposite
// side, skipping the requester's own resting orders, without mutating
// anything. It returns the total cost and whether the side could cover the
// quantity in full.
func (book *OrderBook) simulateFill(side common.Side, quantity decimal.Decimal, requester string) (decimal.Decimal, bool) {
	cost := decimal.Zero
	remaining := quantity
	book.matchingSide(side).Scan(func(level *priceLevel) bool {
		for _, resting := range level.orders {
			if resting.Owner == requester {
				continue
			}
			matchQty := decimal.Min(remaining, resting.Quantity)
			cost = cost.Add(matchQty.Mul(level.price))
			remaining = remaining.Sub(matchQty)
			if !remaining.IsPositive() {
				return false
			}
		}
		return true
	})
	return cost, !remaining.IsPositive()
}

// depth aggregates resting quantity per exact price across both sides, asks
// first then bids, keyed by the price's string form.
func (book *OrderBook) depth() map[string]DepthLevel {
	out := make(map[string]DepthLevel)
	accumulate := func(side common.Side, levels *priceLevels) {
		levels.Scan(func(level *priceLevel) bool {
			bucket := out[level.price.String()]
			bucket.Side = side
			for _, resting := range level.orders {
				bucket.Quantity = bucket.Quantity.Add(resting.Quantity)
			}
			out[level.price.String()] = bucket
			return true
		})
	}
	accumulate(common.Sell, book.asks)
	accumulate(common.Buy, book.bids)
	return out
}

// bestBid returns the highest resting bid price.
func (book *OrderBook) bestBid() (decimal.Decimal, bool) {
	level, ok := book.bids.Min()
	if !ok {
		return decimal.Zero, false
	}
	return level.price, true
}

// bestAsk returns the lowest resting ask price.
func (book *OrderBook) bestAsk() (decimal.Decimal, bool) {
	level, ok := book.asks.Min()
	if !ok {
		return decimal.Zero, false
	}
	return level.price, true
}
