package engine

import (
	"sync"
	"testing"
	"time"

	"bourse/internal/common"
	"bourse/internal/ledger"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

type tradeRecorder struct {
	trades []common.Trade
}

func (r *tradeRecorder) ReportTrade(trade common.Trade) {
	r.trades = append(r.trades, trade)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestEngine(accounts ...string) (*Engine, *tradeRecorder) {
	l := ledger.New("NVIDIA", "USD")
	for _, account := range accounts {
		l.Deposit(account, "NVIDIA", dec("100"))
		l.Deposit(account, "USD", dec("100000"))
	}
	recorder := &tradeRecorder{}
	eng := New(l, zerolog.Nop())
	eng.SetReporter(recorder)
	return eng, recorder
}

func place(t *testing.T, eng *Engine, owner string, side common.Side, price, quantity string) decimal.Decimal {
	t.Helper()
	filled, err := eng.Place(common.Order{
		Owner:      owner,
		Side:       side,
		LimitPrice: dec(price),
		Quantity:   dec(quantity),
	}, false)
	require.NoError(t, err)
	return filled
}

// --- Tests ------------------------------------------------------------------

func TestBestPricesTrackSortedSides(t *testing.T) {
	eng, _ := newTestEngine("A", "B")

	place(t, eng, "A", common.Buy, "98", "10")
	place(t, eng, "A", common.Buy, "99", "10")
	place(t, eng, "B", common.Sell, "101", "10")
	place(t, eng, "B", common.Sell, "100", "10")

	bid, ok := eng.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Equal(dec("99")))

	ask, ok := eng.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Equal(dec("100")))
}

func TestMatchConsumesBestPriceFirst(t *testing.T) {
	eng, recorder := newTestEngine("A", "B", "C")

	place(t, eng, "B", common.Sell, "101", "5")
	place(t, eng, "C", common.Sell, "100", "5")

	filled := place(t, eng, "A", common.Buy, "101", "7")
	assert.True(t, filled.Equal(dec("7")))

	// The cheaper ask trades first and in full, then the worse one partially.
	require.Len(t, recorder.trades, 2)
	assert.Equal(t, "C", recorder.trades[0].Seller)
	assert.True(t, recorder.trades[0].Price.Equal(dec("100")))
	assert.True(t, recorder.trades[0].Quantity.Equal(dec("5")))
	assert.Equal(t, "B", recorder.trades[1].Seller)
	assert.True(t, recorder.trades[1].Price.Equal(dec("101")))
	assert.True(t, recorder.trades[1].Quantity.Equal(dec("2")))
}

func TestMatchStopsAtLimit(t *testing.T) {
	eng, recorder := newTestEngine("A", "B")

	place(t, eng, "B", common.Sell, "100", "5")
	place(t, eng, "B", common.Sell, "102", "5")

	filled := place(t, eng, "A", common.Buy, "101", "10")
	assert.True(t, filled.Equal(dec("5")))
	require.Len(t, recorder.trades, 1)
	assert.True(t, recorder.trades[0].Price.Equal(dec("100")))

	// The remainder rests as a bid at the incoming limit.
	bid, ok := eng.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Equal(dec("101")))
}

func TestTradePriceIsRestingPrice(t *testing.T) {
	eng, recorder := newTestEngine("A", "B")

	place(t, eng, "B", common.Sell, "100", "5")
	place(t, eng, "A", common.Buy, "105", "5")

	require.Len(t, recorder.trades, 1)
	assert.True(t, recorder.trades[0].Price.Equal(dec("100")))
	// Price improvement goes to the incoming buyer.
	assert.True(t, eng.Balance("A")["USD"].Equal(dec("99500")))
}

func TestSellSideTradePriceIsRestingBid(t *testing.T) {
	eng, recorder := newTestEngine("A", "B")

	place(t, eng, "A", common.Buy, "100", "5")
	place(t, eng, "B", common.Sell, "95", "5")

	require.Len(t, recorder.trades, 1)
	assert.True(t, recorder.trades[0].Price.Equal(dec("100")))
	assert.Equal(t, "A", recorder.trades[0].Buyer)
}

func TestSelfTradeSkippedWithoutConsuming(t *testing.T) {
	eng, recorder := newTestEngine("A", "B")

	// A's own ask queued ahead of B's at the same level.
	place(t, eng, "A", common.Sell, "100", "5")
	place(t, eng, "B", common.Sell, "100", "5")

	filled := place(t, eng, "A", common.Buy, "100", "10")
	assert.True(t, filled.Equal(dec("5")))

	// Only B's order traded; A's resting ask is untouched.
	require.Len(t, recorder.trades, 1)
	assert.Equal(t, "B", recorder.trades[0].Seller)

	depth := eng.Depth()
	level, ok := depth["100"]
	require.True(t, ok)
	// A's surviving ask of 5 plus A's new resting bid of 5 share the
	// bucket; bids are folded in second so the bid tag wins.
	assert.True(t, level.Quantity.Equal(dec("10")))
	assert.Equal(t, common.Buy, level.Side)
}

func TestSelfCrossOnlyRestsRemainder(t *testing.T) {
	eng, recorder := newTestEngine("A", "B")

	place(t, eng, "A", common.Sell, "100", "5")
	filled := place(t, eng, "A", common.Buy, "100", "5")

	assert.True(t, filled.IsZero())
	assert.Empty(t, recorder.trades)

	ask, ok := eng.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Equal(dec("100")))
	bid, ok := eng.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Equal(dec("100")))
}

func TestPartialFillRestsRemainder(t *testing.T) {
	eng, _ := newTestEngine("A", "B")

	place(t, eng, "B", common.Sell, "100", "3")
	filled := place(t, eng, "A", common.Buy, "100", "5")
	assert.True(t, filled.Equal(dec("3")))

	_, haveAsk := eng.BestAsk()
	assert.False(t, haveAsk)

	depth := eng.Depth()
	require.Contains(t, depth, "100")
	assert.Equal(t, common.Buy, depth["100"].Side)
	assert.True(t, depth["100"].Quantity.Equal(dec("2")))
}

func TestFillOrKillInfeasibleMutatesNothing(t *testing.T) {
	eng, recorder := newTestEngine("A", "B")

	place(t, eng, "B", common.Sell, "100", "2")
	before := eng.Depth()
	balanceBefore := eng.Balance("A")

	_, err := eng.Place(common.Order{
		Owner:      "A",
		Side:       common.Buy,
		LimitPrice: dec("100"),
		Quantity:   dec("5"),
	}, true)
	require.ErrorIs(t, err, ErrUnfulfillable)

	assert.Empty(t, recorder.trades)
	assert.Equal(t, before, eng.Depth())
	assert.Equal(t, balanceBefore, eng.Balance("A"))
}

func TestFillOrKillFeasibleExecutes(t *testing.T) {
	eng, _ := newTestEngine("A", "B")

	place(t, eng, "B", common.Sell, "100", "3")
	place(t, eng, "B", common.Sell, "101", "3")

	filled, err := eng.Place(common.Order{
		Owner:      "A",
		Side:       common.Buy,
		LimitPrice: dec("101"),
		Quantity:   dec("5"),
	}, true)
	require.NoError(t, err)
	assert.True(t, filled.Equal(dec("5")))
}

func TestFillOrKillLimitBoundsFeasibility(t *testing.T) {
	eng, _ := newTestEngine("A", "B")

	// Liquidity exists but only beyond the limit.
	place(t, eng, "B", common.Sell, "100", "3")
	place(t, eng, "B", common.Sell, "102", "3")

	_, err := eng.Place(common.Order{
		Owner:      "A",
		Side:       common.Buy,
		LimitPrice: dec("101"),
		Quantity:   dec("5"),
	}, true)
	require.ErrorIs(t, err, ErrUnfulfillable)
}

func TestQuoteAveragesAcrossLevels(t *testing.T) {
	eng, _ := newTestEngine("A", "B")

	place(t, eng, "B", common.Sell, "100", "5")
	place(t, eng, "B", common.Sell, "110", "5")

	avg, err := eng.Quote(common.Buy, dec("10"), "A")
	require.NoError(t, err)
	assert.True(t, avg.Equal(dec("105")))
}

func TestQuoteSkipsRequesterLiquidity(t *testing.T) {
	eng, _ := newTestEngine("A", "B")

	place(t, eng, "A", common.Sell, "100", "5")
	place(t, eng, "B", common.Sell, "110", "5")

	// A's own ask cannot serve A's quote.
	avg, err := eng.Quote(common.Buy, dec("5"), "A")
	require.NoError(t, err)
	assert.True(t, avg.Equal(dec("110")))

	_, err = eng.Quote(common.Buy, dec("6"), "A")
	require.ErrorIs(t, err, ErrNotEnoughLiquidity)
}

func TestQuoteInsufficientLiquidity(t *testing.T) {
	eng, _ := newTestEngine("A")

	_, err := eng.Quote(common.Buy, dec("1"), "A")
	require.ErrorIs(t, err, ErrNotEnoughLiquidity)
}

func TestQuoteDoesNotMutate(t *testing.T) {
	eng, _ := newTestEngine("A", "B")

	place(t, eng, "B", common.Sell, "100", "5")
	before := eng.Depth()

	_, err := eng.Quote(common.Buy, dec("3"), "A")
	require.NoError(t, err)
	assert.Equal(t, before, eng.Depth())
}

func TestDepthAggregatesPerLevel(t *testing.T) {
	eng, _ := newTestEngine("A", "B")

	place(t, eng, "A", common.Buy, "99", "4")
	place(t, eng, "A", common.Buy, "99", "6")
	place(t, eng, "B", common.Sell, "101", "7")

	depth := eng.Depth()
	require.Len(t, depth, 2)
	assert.Equal(t, common.Buy, depth["99"].Side)
	assert.True(t, depth["99"].Quantity.Equal(dec("10")))
	assert.Equal(t, common.Sell, depth["101"].Side)
	assert.True(t, depth["101"].Quantity.Equal(dec("7")))
}

func TestPlaceRejectsNonPositiveInputs(t *testing.T) {
	eng, _ := newTestEngine("A")

	_, err := eng.Place(common.Order{Owner: "A", Side: common.Buy, LimitPrice: dec("0"), Quantity: dec("1")}, false)
	require.ErrorIs(t, err, ErrRejection)

	_, err = eng.Place(common.Order{Owner: "A", Side: common.Buy, LimitPrice: dec("1"), Quantity: dec("-1")}, false)
	require.ErrorIs(t, err, ErrRejection)
}

func TestPlaceRejectsUnknownAccount(t *testing.T) {
	eng, _ := newTestEngine("A")

	_, err := eng.Place(common.Order{Owner: "ghost", Side: common.Buy, LimitPrice: dec("1"), Quantity: dec("1")}, false)
	require.ErrorIs(t, err, ErrUnknownAccount)

	depth := eng.Depth()
	assert.Empty(t, depth)
}

// sweepReporter parks the engine inside its first settlement until released,
// holding a multi-trade sweep open mid-flight.
type sweepReporter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *sweepReporter) ReportTrade(common.Trade) {
	r.once.Do(func() {
		close(r.started)
		<-r.release
	})
}

func TestBalanceWaitsForInFlightSubmit(t *testing.T) {
	l := ledger.New("NVIDIA", "USD")
	l.Deposit("A", "NVIDIA", dec("10"))
	l.Deposit("A", "USD", dec("50000"))
	l.Deposit("B", "NVIDIA", dec("20"))
	l.Deposit("B", "USD", dec("50000"))

	reporter := &sweepReporter{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	eng := New(l, zerolog.Nop())
	eng.SetReporter(reporter)

	place(t, eng, "B", common.Sell, "100", "3")
	place(t, eng, "B", common.Sell, "101", "3")

	submitDone := make(chan struct{})
	go func() {
		defer close(submitDone)
		_, err := eng.Place(common.Order{
			Owner:      "A",
			Side:       common.Buy,
			LimitPrice: dec("101"),
			Quantity:   dec("6"),
		}, false)
		assert.NoError(t, err)
	}()

	// The sweep has settled 3@100 and still owes 3@101. A balance lookup
	// started now must not see the half-settled ledger.
	<-reporter.started
	observed := make(chan ledger.Holdings, 1)
	go func() {
		observed <- eng.Balance("A")
	}()

	time.Sleep(50 * time.Millisecond)
	close(reporter.release)
	<-submitDone

	balance := <-observed
	assert.True(t, balance["NVIDIA"].Equal(dec("16")))
	assert.True(t, balance["USD"].Equal(dec("49397")))
}

func TestLastPriceTracksMostRecentTrade(t *testing.T) {
	eng, _ := newTestEngine("A", "B")

	assert.True(t, eng.LastPrice().IsZero())
	place(t, eng, "B", common.Sell, "100", "5")
	place(t, eng, "A", common.Buy, "100", "5")
	assert.True(t, eng.LastPrice().Equal(dec("100")))
}
