// Package ledger holds account holdings and performs settlement transfers.
// It has no ordering logic; the matching engine drives it.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var ErrUnknownAccount = errors.New("unknown account")

// Holdings maps an asset symbol to the quantity an account holds.
type Holdings map[string]decimal.Decimal

// Ledger tracks holdings of the traded instrument and its quote currency
// per account. Accounts are provisioned through Deposit before the venue
// serves requests and are never created or removed during trading.
type Ledger struct {
	mu         sync.RWMutex
	instrument string
	quote      string
	accounts   map[string]Holdings
}

func New(instrument, quote string) *Ledger {
	return &Ledger{
		instrument: instrument,
		quote:      quote,
		accounts:   make(map[string]Holdings),
	}
}

// Symbols returns the instrument and quote currency symbols.
func (l *Ledger) Symbols() (string, string) {
	return l.instrument, l.quote
}

// Deposit credits an account with an amount of symbol, creating the account
// if it does not exist yet. Used for bootstrap only.
func (l *Ledger) Deposit(account, symbol string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	holdings, ok := l.accounts[account]
	if !ok {
		holdings = Holdings{
			l.instrument: decimal.Zero,
			l.quote:      decimal.Zero,
		}
		l.accounts[account] = holdings
	}
	holdings[symbol] = holdings[symbol].Add(amount)
}

// Has reports whether the account exists.
func (l *Ledger) Has(account string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.accounts[account]
	return ok
}

// Balance returns a copy of the account's holdings. Unknown accounts yield a
// zeroed holdings record rather than an error.
func (l *Ledger) Balance(account string) Holdings {
	l.mu.RLock()
	defer l.mu.RUnlock()

	holdings, ok := l.accounts[account]
	if !ok {
		return Holdings{
			l.instrument: decimal.Zero,
			l.quote:      decimal.Zero,
		}
	}

	out := make(Holdings, len(holdings))
	for symbol, quantity := range holdings {
		out[symbol] = quantity
	}
	return out
}

// Transfer settles one trade: quantity of the instrument moves from seller to
// buyer, and quantity*price of the quote currency moves from buyer to seller.
// Both legs apply atomically under the ledger lock.
//
// No balance-sufficiency check is made; holdings may go negative. Risk
// controls are a known gap of this venue, not an oversight of this method.
func (l *Ledger) Transfer(buyer, seller string, quantity, price decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	buyerHoldings, ok := l.accounts[buyer]
	if !ok {
		return fmt.Errorf("%w: buyer %s", ErrUnknownAccount, buyer)
	}
	sellerHoldings, ok := l.accounts[seller]
	if !ok {
		return fmt.Errorf("%w: seller %s", ErrUnknownAccount, seller)
	}

	cost := quantity.Mul(price)
	sellerHoldings[l.instrument] = sellerHoldings[l.instrument].Sub(quantity)
	buyerHoldings[l.instrument] = buyerHoldings[l.instrument].Add(quantity)
	sellerHoldings[l.quote] = sellerHoldings[l.quote].Add(cost)
	buyerHoldings[l.quote] = buyerHoldings[l.quote].Sub(cost)
	return nil
}
