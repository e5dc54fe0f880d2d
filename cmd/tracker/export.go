package main

import (
	"fmt"
	"os"
	"path/filepath"

	"portfolio-tracker-go/internal/portfolio"

	"github.com/gocarina/gocsv"
)

const exportDateLayout = "2006-01-02"

// snapshotRow is the CSV shape of one daily snapshot.
type snapshotRow struct {
	Date            string  `csv:"DATE"`
	Cash            float64 `csv:"CASH"`
	MarketValue     float64 `csv:"MARKET_VALUE"`
	TotalEquity     float64 `csv:"TOTAL_EQUITY"`
	InvestedCapital float64 `csv:"INVESTED_CAPITAL"`
	NetFlow         float64 `csv:"NET_FLOW"`
}

// dividendRow is the CSV shape of one dividend credit.
type dividendRow struct {
	Date   string  `csv:"DATE"`
	Symbol string  `csv:"SYMBOL"`
	Amount float64 `csv:"AMOUNT"`
}

// exportResults writes the snapshot series and dividend history as CSV
// files for the downstream reporting layer.
func exportResults(dir string, snapshots []portfolio.DailySnapshot, dividends []portfolio.DividendPayment) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	snapRows := make([]snapshotRow, len(snapshots))
	for i, s := range snapshots {
		snapRows[i] = snapshotRow{
			Date:            s.Date.Format(exportDateLayout),
			Cash:            s.Cash,
			MarketValue:     s.MarketValue,
			TotalEquity:     s.TotalEquity,
			InvestedCapital: s.InvestedCapital,
			NetFlow:         s.NetFlow,
		}
	}
	if err := writeCSV(filepath.Join(dir, "snapshots.csv"), &snapRows); err != nil {
		return err
	}

	divRows := make([]dividendRow, len(dividends))
	for i, d := range dividends {
		divRows[i] = dividendRow{
			Date:   d.Date.Format(exportDateLayout),
			Symbol: d.Symbol,
			Amount: d.Amount,
		}
	}
	return writeCSV(filepath.Join(dir, "dividends.csv"), &divRows)
}

func writeCSV(path string, rows interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(rows, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
