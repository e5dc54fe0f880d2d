package portfolio

import (
	"time"

	"portfolio-tracker-go/internal/ledger"

	"go.uber.org/zap"
)

// MarketData is the read side of the market-data cache the simulator
// consumes. Every call is a synchronous lookup into already-refreshed
// series; the simulator itself never fetches anything.
type MarketData interface {
	PriceAt(symbol string, date time.Time) (float64, bool)
	DividendOn(symbol string, date time.Time) (float64, bool)
	SplitOn(symbol string, date time.Time) (float64, bool)
}

// DailySnapshot is one business day's fully resolved portfolio state.
// Snapshots are emitted in date order and never mutated afterwards.
type DailySnapshot struct {
	Date            time.Time
	Cash            float64
	MarketValue     float64
	TotalEquity     float64
	InvestedCapital float64
	NetFlow         float64
	Weights         map[string]float64
}

// DividendPayment records one net dividend credited during a run. It is a
// side channel next to the snapshot series, not part of it.
type DividendPayment struct {
	Date   time.Time
	Symbol string
	Amount float64
}

// Config carries the dividend withholding rules.
type Config struct {
	TaxExemptSymbols []string
	DividendTaxRate  float64
}

// Simulator deterministically replays a trade ledger plus corporate actions
// into the daily snapshot series. One simulator owns one run's state; it is
// strictly sequential and must not be shared across goroutines.
type Simulator struct {
	ledger    *ledger.Ledger
	market    MarketData
	taxExempt map[string]struct{}
	taxRate   float64
	logger    *zap.Logger

	dividendHistory []DividendPayment
}

// NewSimulator creates a simulator over the given ledger and market data.
func NewSimulator(l *ledger.Ledger, market MarketData, cfg Config, logger *zap.Logger) *Simulator {
	taxExempt := make(map[string]struct{}, len(cfg.TaxExemptSymbols))
	for _, s := range cfg.TaxExemptSymbols {
		taxExempt[s] = struct{}{}
	}
	return &Simulator{
		ledger:    l,
		market:    market,
		taxExempt: taxExempt,
		taxRate:   cfg.DividendTaxRate,
		logger:    logger,
	}
}

// Run replays the ledger over every calendar day from the first trade to
// now and returns the business-day snapshot series.
func (s *Simulator) Run() []DailySnapshot {
	_, end := s.ledger.DateRange()
	return s.RunUntil(end)
}

// RunUntil is Run with a fixed end day (inclusive).
func (s *Simulator) RunUntil(end time.Time) []DailySnapshot {
	if s.ledger.Empty() {
		s.logger.Warn("Ledger is empty, producing no snapshots")
		return nil
	}

	start, _ := s.ledger.DateRange()
	endDay := ledger.Day(end)

	holdings := make(map[string]float64)
	for _, sym := range s.ledger.Symbols() {
		holdings[sym] = 0
	}
	cash := 0.0
	investedCapital := 0.0
	s.dividendHistory = nil

	var history []DailySnapshot

	// Every calendar day is walked, weekends included, so holdings, cash
	// and corporate actions carry forward without gaps.
	for d := start; !d.After(endDay); d = d.AddDate(0, 0, 1) {
		netFlow := 0.0

		for _, t := range s.ledger.TradesOn(d) {
			switch t.Action {
			case ledger.Deposit:
				cash += t.Amount
				investedCapital += t.Amount
				netFlow += t.Amount
			case ledger.Withdraw:
				cash -= t.Amount
				investedCapital -= t.Amount
				netFlow -= t.Amount
			case ledger.Buy:
				holdings[t.Symbol] += t.Quantity
				cash -= t.Amount
			case ledger.Sell:
				holdings[t.Symbol] -= t.Quantity
				cash += t.Amount
			}
		}

		marketValue := 0.0
		values := make(map[string]float64, len(holdings))

		for sym := range holdings {
			price, ok := s.market.PriceAt(sym, d)
			if !ok {
				price = 0 // no observation at or before d yet
			}

			// Splits land before the dividend, so the credit is computed
			// from post-split holdings; both land before valuation.
			if ratio, ok := s.market.SplitOn(sym, d); ok {
				holdings[sym] *= ratio
			}

			if perShare, ok := s.market.DividendOn(sym, d); ok {
				net := perShare * (1 - s.taxRateFor(sym))
				total := holdings[sym] * net
				if total > 0 {
					cash += total
					s.dividendHistory = append(s.dividendHistory, DividendPayment{
						Date:   d,
						Symbol: sym,
						Amount: total,
					})
					s.logger.Debug("Dividend credited",
						zap.String("symbol", sym),
						zap.Time("date", d),
						zap.Float64("amount", total))
				}
			}

			val := holdings[sym] * price
			marketValue += val
			values[sym] = val
		}

		totalEquity := cash + marketValue

		weights := make(map[string]float64, len(values))
		for sym, val := range values {
			if totalEquity > 0 {
				weights[sym] = val / totalEquity
			} else {
				weights[sym] = 0
			}
		}

		history = append(history, DailySnapshot{
			Date:            d,
			Cash:            cash,
			MarketValue:     marketValue,
			TotalEquity:     totalEquity,
			InvestedCapital: investedCapital,
			NetFlow:         netFlow,
			Weights:         weights,
		})
	}

	return businessDays(history)
}

// DividendHistory returns the net dividend credits of the last run.
func (s *Simulator) DividendHistory() []DividendPayment {
	return s.dividendHistory
}

func (s *Simulator) taxRateFor(symbol string) float64 {
	if _, ok := s.taxExempt[symbol]; ok {
		return 0
	}
	return s.taxRate
}

// businessDays drops Saturdays and Sundays from the simulated series.
// Weekend days exist only so state carries forward correctly.
func businessDays(in []DailySnapshot) []DailySnapshot {
	out := make([]DailySnapshot, 0, len(in))
	for _, snap := range in {
		if wd := snap.Date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, snap)
	}
	return out
}
