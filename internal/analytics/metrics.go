package analytics

import (
	"math"

	"portfolio-tracker-go/internal/portfolio"

	"github.com/montanaflynn/stats"
)

const tradingDaysPerYear = 252

// Metrics are the return and risk statistics derived from a snapshot series.
type Metrics struct {
	TotalReturn          float64
	CumulativeReturn     float64
	AnnualizedVolatility float64
	SharpeRatio          float64
	SortinoRatio         float64
	VaR95Return          float64
	VaR95Dollar          float64
	MaxDrawdown          float64
}

// DailyReturns derives the flow-adjusted daily return series. External cash
// moved on a day is treated as at risk for half the day, so deposits and
// withdrawals do not register as performance. The first day's return is 0.
func DailyReturns(snapshots []portfolio.DailySnapshot) []float64 {
	returns := make([]float64, len(snapshots))
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].TotalEquity
		flow := snapshots[i].NetFlow
		denom := prev + 0.5*flow
		if denom <= 0 {
			continue
		}
		returns[i] = (snapshots[i].TotalEquity - prev - flow) / denom
	}
	return returns
}

// dailyPnL is the equity change net of external flows, in dollars.
func dailyPnL(snapshots []portfolio.DailySnapshot) []float64 {
	pnl := make([]float64, len(snapshots))
	for i := 1; i < len(snapshots); i++ {
		pnl[i] = snapshots[i].TotalEquity - snapshots[i-1].TotalEquity - snapshots[i].NetFlow
	}
	return pnl
}

// Calculate computes the metrics over a business-day snapshot series.
// Fewer than two snapshots yield zero-valued metrics, not an error.
func Calculate(snapshots []portfolio.DailySnapshot, annualRiskFree float64) Metrics {
	var m Metrics
	if len(snapshots) < 2 {
		return m
	}

	returns := DailyReturns(snapshots)
	pnl := dailyPnL(snapshots)
	dailyRF := math.Pow(1+annualRiskFree, 1.0/365) - 1

	last := snapshots[len(snapshots)-1]
	if last.InvestedCapital > 0 {
		m.TotalReturn = last.TotalEquity/last.InvestedCapital - 1
	}

	cum := 1.0
	for _, r := range returns {
		cum *= 1 + r
	}
	m.CumulativeReturn = cum - 1

	if stdev, err := stats.StandardDeviationSample(returns); err == nil && stdev > 0 {
		m.AnnualizedVolatility = stdev * math.Sqrt(tradingDaysPerYear)

		excess := make([]float64, len(returns))
		for i, r := range returns {
			excess[i] = r - dailyRF
		}
		meanExcess, _ := stats.Mean(excess)
		m.SharpeRatio = meanExcess * tradingDaysPerYear / m.AnnualizedVolatility

		// Sortino penalizes only days that underperform the risk-free rate.
		var downside []float64
		for _, r := range returns {
			if r < dailyRF {
				downside = append(downside, r)
			}
		}
		if len(downside) > 1 {
			if downStdev, err := stats.StandardDeviationSample(downside); err == nil && downStdev > 0 {
				m.SortinoRatio = meanExcess * tradingDaysPerYear / (downStdev * math.Sqrt(tradingDaysPerYear))
			}
		}
	}

	if v, err := stats.Percentile(returns, 5); err == nil {
		m.VaR95Return = v
	}
	if v, err := stats.Percentile(pnl, 5); err == nil {
		m.VaR95Dollar = v
	}

	rollingMax := snapshots[0].TotalEquity
	for _, snap := range snapshots {
		if snap.TotalEquity > rollingMax {
			rollingMax = snap.TotalEquity
		}
		if rollingMax > 0 {
			if dd := snap.TotalEquity/rollingMax - 1; dd < m.MaxDrawdown {
				m.MaxDrawdown = dd
			}
		}
	}

	return m
}
