package portfolio

import (
	"testing"
	"time"

	"portfolio-tracker-go/internal/ledger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type stubBar struct {
	date  time.Time
	close float64
}

// stubMarket is a hand-seeded MarketData for simulator tests.
type stubMarket struct {
	bars      map[string][]stubBar
	dividends map[string]map[time.Time]float64
	splits    map[string]map[time.Time]float64
}

func newStubMarket() *stubMarket {
	return &stubMarket{
		bars:      make(map[string][]stubBar),
		dividends: make(map[string]map[time.Time]float64),
		splits:    make(map[string]map[time.Time]float64),
	}
}

func (m *stubMarket) addBar(symbol string, date time.Time, close float64) {
	m.bars[symbol] = append(m.bars[symbol], stubBar{date: date, close: close})
}

func (m *stubMarket) addDividend(symbol string, date time.Time, amount float64) {
	if m.dividends[symbol] == nil {
		m.dividends[symbol] = make(map[time.Time]float64)
	}
	m.dividends[symbol][date] = amount
}

func (m *stubMarket) addSplit(symbol string, date time.Time, ratio float64) {
	if m.splits[symbol] == nil {
		m.splits[symbol] = make(map[time.Time]float64)
	}
	m.splits[symbol][date] = ratio
}

func (m *stubMarket) PriceAt(symbol string, date time.Time) (float64, bool) {
	bars := m.bars[symbol]
	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].date.After(date) {
			return bars[i].close, true
		}
	}
	return 0, false
}

func (m *stubMarket) DividendOn(symbol string, date time.Time) (float64, bool) {
	amount, ok := m.dividends[symbol][date]
	return amount, ok
}

func (m *stubMarket) SplitOn(symbol string, date time.Time) (float64, bool) {
	ratio, ok := m.splits[symbol][date]
	return ratio, ok
}

func newSimulator(trades []ledger.Trade, market MarketData, cfg Config) *Simulator {
	return NewSimulator(ledger.New(trades), market, cfg, zap.NewNop())
}

func TestDepositOnlySeries(t *testing.T) {
	sim := newSimulator([]ledger.Trade{
		{Date: day(2024, 1, 2), Symbol: ledger.CashSymbol, Action: ledger.Deposit, Amount: 10000},
	}, newStubMarket(), Config{})

	// Jan 2 (Tue) through Jan 8 (Mon): five business days.
	snapshots := sim.RunUntil(day(2024, 1, 8))
	assert.Len(t, snapshots, 5)

	for i, snap := range snapshots {
		assert.Equal(t, 10000.0, snap.Cash)
		assert.Equal(t, 0.0, snap.MarketValue)
		assert.Equal(t, 10000.0, snap.TotalEquity)
		assert.Equal(t, 10000.0, snap.InvestedCapital)
		if i == 0 {
			assert.Equal(t, 10000.0, snap.NetFlow)
		} else {
			assert.Equal(t, 0.0, snap.NetFlow)
		}
	}
}

func TestSameDayDepositFundsBuy(t *testing.T) {
	market := newStubMarket()
	market.addBar("X", day(2024, 1, 2), 100)

	// The buy is listed before the deposit; ledger ordering must fix that.
	sim := newSimulator([]ledger.Trade{
		{Date: day(2024, 1, 2), Symbol: "X", Action: ledger.Buy, Quantity: 10, Price: 100, Amount: 1000},
		{Date: day(2024, 1, 2), Symbol: ledger.CashSymbol, Action: ledger.Deposit, Amount: 1000},
	}, market, Config{})

	snapshots := sim.RunUntil(day(2024, 1, 2))
	assert.Len(t, snapshots, 1)

	snap := snapshots[0]
	assert.Equal(t, 0.0, snap.Cash)
	assert.Equal(t, 1000.0, snap.MarketValue)
	assert.Equal(t, 1000.0, snap.TotalEquity)
	assert.Equal(t, 1000.0, snap.InvestedCapital)
	assert.Equal(t, 1000.0, snap.NetFlow)
	assert.Equal(t, 1.0, snap.Weights["X"])
}

func TestSplitPreservesMarketValue(t *testing.T) {
	market := newStubMarket()
	market.addBar("X", day(2024, 1, 2), 100)
	market.addBar("X", day(2024, 1, 3), 50) // post-split close
	market.addSplit("X", day(2024, 1, 3), 2)

	sim := newSimulator([]ledger.Trade{
		{Date: day(2024, 1, 2), Symbol: ledger.CashSymbol, Action: ledger.Deposit, Amount: 1000},
		{Date: day(2024, 1, 2), Symbol: "X", Action: ledger.Buy, Quantity: 10, Price: 100, Amount: 1000},
	}, market, Config{})

	snapshots := sim.RunUntil(day(2024, 1, 3))
	assert.Len(t, snapshots, 2)

	// 10 shares at $100 before, 20 at $50 after: value unchanged.
	assert.Equal(t, 1000.0, snapshots[0].MarketValue)
	assert.Equal(t, 1000.0, snapshots[1].MarketValue)
}

func TestDividendWithholding(t *testing.T) {
	market := newStubMarket()
	market.addBar("X", day(2024, 1, 2), 10)
	market.addDividend("X", day(2024, 1, 3), 1)

	cfg := Config{DividendTaxRate: 0.30}
	sim := newSimulator([]ledger.Trade{
		{Date: day(2024, 1, 2), Symbol: ledger.CashSymbol, Action: ledger.Deposit, Amount: 1000},
		{Date: day(2024, 1, 2), Symbol: "X", Action: ledger.Buy, Quantity: 100, Price: 10, Amount: 1000},
	}, market, cfg)

	snapshots := sim.RunUntil(day(2024, 1, 3))
	assert.Len(t, snapshots, 2)

	// 100 shares x $1 x (1 - 0.30) = $70 credited.
	assert.Equal(t, 0.0, snapshots[0].Cash)
	assert.Equal(t, 70.0, snapshots[1].Cash)

	history := sim.DividendHistory()
	assert.Len(t, history, 1)
	assert.Equal(t, "X", history[0].Symbol)
	assert.Equal(t, 70.0, history[0].Amount)
	assert.Equal(t, day(2024, 1, 3), history[0].Date)
}

func TestDividendTaxExemptSymbol(t *testing.T) {
	market := newStubMarket()
	market.addBar("SGOV", day(2024, 1, 2), 100)
	market.addDividend("SGOV", day(2024, 1, 3), 0.4)

	cfg := Config{TaxExemptSymbols: []string{"SGOV"}, DividendTaxRate: 0.30}
	sim := newSimulator([]ledger.Trade{
		{Date: day(2024, 1, 2), Symbol: ledger.CashSymbol, Action: ledger.Deposit, Amount: 1000},
		{Date: day(2024, 1, 2), Symbol: "SGOV", Action: ledger.Buy, Quantity: 10, Price: 100, Amount: 1000},
	}, market, cfg)

	snapshots := sim.RunUntil(day(2024, 1, 3))
	assert.Equal(t, 4.0, snapshots[1].Cash) // 10 x 0.4, no withholding
}

func TestSplitAppliesBeforeDividendCredit(t *testing.T) {
	market := newStubMarket()
	market.addBar("X", day(2024, 1, 2), 100)
	market.addBar("X", day(2024, 1, 3), 50)
	market.addSplit("X", day(2024, 1, 3), 2)
	market.addDividend("X", day(2024, 1, 3), 1)

	cfg := Config{TaxExemptSymbols: []string{"X"}}
	sim := newSimulator([]ledger.Trade{
		{Date: day(2024, 1, 2), Symbol: ledger.CashSymbol, Action: ledger.Deposit, Amount: 1000},
		{Date: day(2024, 1, 2), Symbol: "X", Action: ledger.Buy, Quantity: 10, Price: 100, Amount: 1000},
	}, market, cfg)

	snapshots := sim.RunUntil(day(2024, 1, 3))

	// The credit is computed from the post-split 20 shares, not 10.
	assert.Equal(t, 20.0, snapshots[1].Cash)
	// And valuation uses post-split holdings too.
	assert.Equal(t, 1000.0, snapshots[1].MarketValue)
}

func TestWeekdayFilter(t *testing.T) {
	sim := newSimulator([]ledger.Trade{
		{Date: day(2024, 1, 5), Symbol: ledger.CashSymbol, Action: ledger.Deposit, Amount: 100},
	}, newStubMarket(), Config{})

	// Friday through Monday: the weekend is simulated but not reported.
	snapshots := sim.RunUntil(day(2024, 1, 8))
	assert.Len(t, snapshots, 2)
	assert.Equal(t, day(2024, 1, 5), snapshots[0].Date)
	assert.Equal(t, day(2024, 1, 8), snapshots[1].Date)
	for _, snap := range snapshots {
		wd := snap.Date.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
	}
}

func TestEquityIdentityAndFlowConservation(t *testing.T) {
	market := newStubMarket()
	market.addBar("X", day(2024, 1, 2), 100)
	market.addBar("X", day(2024, 1, 4), 120)
	market.addBar("X", day(2024, 1, 9), 90)

	sim := newSimulator([]ledger.Trade{
		{Date: day(2024, 1, 2), Symbol: ledger.CashSymbol, Action: ledger.Deposit, Amount: 5000},
		{Date: day(2024, 1, 2), Symbol: "X", Action: ledger.Buy, Quantity: 20, Price: 100, Amount: 2000},
		{Date: day(2024, 1, 4), Symbol: "X", Action: ledger.Sell, Quantity: 5, Price: 120, Amount: 600},
		{Date: day(2024, 1, 5), Symbol: ledger.CashSymbol, Action: ledger.Withdraw, Amount: 1000},
		{Date: day(2024, 1, 9), Symbol: "X", Action: ledger.Buy, Quantity: 10, Price: 90, Amount: 900},
	}, market, Config{})

	snapshots := sim.RunUntil(day(2024, 1, 12))
	assert.NotEmpty(t, snapshots)

	for _, snap := range snapshots {
		assert.Equal(t, snap.Cash+snap.MarketValue, snap.TotalEquity, "equity identity on %s", snap.Date)
	}

	// Invested capital tracks external flows only, never trading P&L.
	for _, snap := range snapshots {
		if snap.Date.Before(day(2024, 1, 5)) {
			assert.Equal(t, 5000.0, snap.InvestedCapital)
		} else {
			assert.Equal(t, 4000.0, snap.InvestedCapital)
		}
	}
}

func TestSymbolWithoutMarketDataContributesZero(t *testing.T) {
	sim := newSimulator([]ledger.Trade{
		{Date: day(2024, 1, 2), Symbol: ledger.CashSymbol, Action: ledger.Deposit, Amount: 1000},
		{Date: day(2024, 1, 2), Symbol: "UNLISTED", Action: ledger.Buy, Quantity: 10, Price: 100, Amount: 1000},
	}, newStubMarket(), Config{})

	snapshots := sim.RunUntil(day(2024, 1, 3))
	for _, snap := range snapshots {
		assert.Equal(t, 0.0, snap.MarketValue)
		assert.Equal(t, 0.0, snap.Cash)
		assert.Equal(t, 0.0, snap.TotalEquity)
		assert.Equal(t, 0.0, snap.Weights["UNLISTED"])
	}
}

func TestEmptyLedgerProducesNoSnapshots(t *testing.T) {
	sim := newSimulator(nil, newStubMarket(), Config{})
	assert.Empty(t, sim.Run())
}
