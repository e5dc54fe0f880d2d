package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// CashSymbol marks ledger rows that move external cash rather than shares.
const CashSymbol = "CASH"

// Action is the type of a ledger entry. The constant order is the fixed
// same-day processing order: a deposit lands before the buy it funds, and a
// withdrawal is settled before any same-day sell. Reordering these would
// make cash balances go spuriously negative.
type Action int

const (
	Deposit Action = iota
	Buy
	Withdraw
	Sell
)

func (a Action) String() string {
	switch a {
	case Deposit:
		return "DEPOSIT"
	case Buy:
		return "BUY"
	case Withdraw:
		return "WITHDRAW"
	case Sell:
		return "SELL"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction maps a ledger file's BUY/SELL column value onto an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEPOSIT":
		return Deposit, nil
	case "BUY":
		return Buy, nil
	case "WITHDRAW":
		return Withdraw, nil
	case "SELL":
		return Sell, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Day truncates t to midnight UTC. All ledger dates are keyed this way.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Trade is one normalized ledger entry. Amount is the signed cash effect:
// recomputed as round(quantity*price, 3) for security trades, taken directly
// from the file for cash movements. Trades are immutable once ingested.
type Trade struct {
	Date     time.Time
	Symbol   string
	Action   Action
	Quantity float64
	Price    float64
	Amount   float64
	Fee      float64
}

// IsCash reports whether the trade moves external cash.
func (t Trade) IsCash() bool { return t.Symbol == CashSymbol }

// Ledger is an ordered sequence of trades, sorted by date and then by the
// fixed same-day action order.
type Ledger struct {
	trades []Trade
}

// New builds a ledger from trades in any order.
func New(trades []Trade) *Ledger {
	sorted := make([]Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Action < sorted[j].Action
	})
	return &Ledger{trades: sorted}
}

// Empty reports whether the ledger holds no trades.
func (l *Ledger) Empty() bool { return len(l.trades) == 0 }

// TradesOn returns the ordered trades dated exactly on the given day.
func (l *Ledger) TradesOn(date time.Time) []Trade {
	d := Day(date)
	lo := sort.Search(len(l.trades), func(i int) bool { return !l.trades[i].Date.Before(d) })
	hi := lo
	for hi < len(l.trades) && l.trades[hi].Date.Equal(d) {
		hi++
	}
	return l.trades[lo:hi]
}

// Symbols returns the distinct non-cash symbols, sorted.
func (l *Ledger) Symbols() []string {
	seen := make(map[string]struct{})
	for _, t := range l.trades {
		if !t.IsCash() {
			seen[t.Symbol] = struct{}{}
		}
	}
	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// DateRange returns the first trade date and the current day.
func (l *Ledger) DateRange() (time.Time, time.Time) {
	if l.Empty() {
		now := Day(time.Now())
		return now, now
	}
	return l.trades[0].Date, Day(time.Now())
}
