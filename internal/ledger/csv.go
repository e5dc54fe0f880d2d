package ledger

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"
)

// csvRow mirrors one line of the trade history file. Fields stay strings so
// a single garbled cell drops that row instead of failing the whole file.
type csvRow struct {
	Date   string `csv:"DATE"`
	Symbol string `csv:"SYMBOL"`
	Action string `csv:"BUY/SELL"`
	Qty    string `csv:"QTY"`
	Price  string `csv:"PRICE"`
	Amount string `csv:"AMT"`
	Fee    string `csv:"FEE"`
}

var dateLayouts = []string{"2006-01-02", "1/2/2006", "2006-01-02 15:04:05"}

// LoadCSV reads and normalizes a trade history file. Malformed rows are
// dropped with a warning; they never abort ingestion.
func LoadCSV(path string, logger *zap.Logger) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer f.Close()

	var rows []*csvRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse ledger file: %w", err)
	}

	trades := make([]Trade, 0, len(rows))
	for i, row := range rows {
		trade, err := normalizeRow(row)
		if err != nil {
			logger.Warn("Dropping malformed ledger row", zap.Int("row", i+2), zap.Error(err))
			continue
		}
		trades = append(trades, trade)
	}

	logger.Info("Trade ledger loaded",
		zap.String("file", path),
		zap.Int("trades", len(trades)),
		zap.Int("dropped", len(rows)-len(trades)))

	return New(trades), nil
}

// normalizeRow validates one raw row and derives the Trade entity from it.
func normalizeRow(row *csvRow) (Trade, error) {
	var t Trade

	date, err := parseDate(row.Date)
	if err != nil {
		return t, err
	}

	symbol := strings.TrimSpace(row.Symbol)
	if symbol == "" {
		return t, fmt.Errorf("missing symbol")
	}

	action, err := ParseAction(row.Action)
	if err != nil {
		return t, err
	}

	t = Trade{Date: date, Symbol: symbol, Action: action}

	if fee := strings.TrimSpace(row.Fee); fee != "" {
		t.Fee, err = strconv.ParseFloat(fee, 64)
		if err != nil {
			return t, fmt.Errorf("bad fee %q: %w", row.Fee, err)
		}
		if t.Fee < 0 {
			return t, fmt.Errorf("negative fee %v", t.Fee)
		}
	}

	if action == Deposit || action == Withdraw {
		// Cash movements take their amount straight from the file;
		// quantity and price are irrelevant.
		t.Amount, err = strconv.ParseFloat(strings.TrimSpace(row.Amount), 64)
		if err != nil {
			return t, fmt.Errorf("bad amount %q: %w", row.Amount, err)
		}
		return t, nil
	}

	t.Quantity, err = strconv.ParseFloat(strings.TrimSpace(row.Qty), 64)
	if err != nil {
		return t, fmt.Errorf("bad quantity %q: %w", row.Qty, err)
	}
	if t.Quantity < 0 {
		return t, fmt.Errorf("negative quantity %v", t.Quantity)
	}

	t.Price, err = strconv.ParseFloat(strings.TrimSpace(row.Price), 64)
	if err != nil {
		return t, fmt.Errorf("bad price %q: %w", row.Price, err)
	}

	// The file's AMT column is not trusted for security trades.
	t.Amount = round3(t.Quantity * t.Price)
	return t, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return Day(d), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
