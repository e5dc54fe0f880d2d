package marketdata

import (
	"context"
	"sort"
	"sync"
	"time"

	"portfolio-tracker-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// symbolSeries holds one symbol's merged, date-ascending history. It is
// built by exactly one refresh task and never mutated afterwards.
type symbolSeries struct {
	bars      []models.PriceBar
	dividends map[time.Time]float64
	splits    map[time.Time]float64
}

// Cache maintains per-symbol price, dividend and split history, merging
// fresh provider fetches with whatever was previously persisted. It is the
// sole mutator of the series stores.
type Cache struct {
	db           *gorm.DB
	provider     ProviderInterface
	lookbackDays int
	logger       *zap.Logger

	mu     sync.RWMutex
	series map[string]*symbolSeries
}

// NewCache creates a cache on top of the given store and provider.
func NewCache(db *gorm.DB, provider ProviderInterface, lookbackDays int, logger *zap.Logger) *Cache {
	return &Cache{
		db:           db,
		provider:     provider,
		lookbackDays: lookbackDays,
		logger:       logger,
		series:       make(map[string]*symbolSeries),
	}
}

// dateOnly truncates t to midnight UTC. Every series and lookup is keyed
// on these normalized dates.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Refresh fetches, merges and persists one symbol's history, then installs
// it as the symbol's live series. It never fails: a broken fetch degrades
// to the persisted history, a broken persist keeps the in-memory merge.
func (c *Cache) Refresh(ctx context.Context, symbol string, requestedStart time.Time) {
	s := c.buildSeries(ctx, symbol, requestedStart)

	c.mu.Lock()
	c.series[symbol] = s
	c.mu.Unlock()
}

// buildSeries does the fetch+merge+persist work for one symbol without
// touching any shared state.
func (c *Cache) buildSeries(ctx context.Context, symbol string, requestedStart time.Time) *symbolSeries {
	// Start a little earlier than asked so the fetched range always
	// overlaps the persisted one.
	start := dateOnly(requestedStart).AddDate(0, 0, -c.lookbackDays)
	now := time.Now()

	var existingBars []models.PriceBar
	if err := c.db.Where("symbol = ?", symbol).Order("date asc").Find(&existingBars).Error; err != nil {
		c.logger.Error("Failed to read persisted bars", zap.String("symbol", symbol), zap.Error(err))
	}

	fetchedBars, err := c.provider.GetDailyBars(ctx, symbol, start, now)
	if err != nil {
		c.logger.Warn("Bar fetch failed, falling back to cached history",
			zap.String("symbol", symbol), zap.Error(err))
	}

	bars := mergeBars(existingBars, fetchedBars)
	if len(fetchedBars) > 0 {
		c.persistBars(symbol, bars)
	}

	var existingDivs []models.Dividend
	if err := c.db.Where("symbol = ?", symbol).Find(&existingDivs).Error; err != nil {
		c.logger.Error("Failed to read persisted dividends", zap.String("symbol", symbol), zap.Error(err))
	}
	fetchedDivs, err := c.provider.GetDividends(ctx, symbol, start)
	if err != nil {
		c.logger.Warn("Dividend fetch failed, falling back to cached history",
			zap.String("symbol", symbol), zap.Error(err))
	}
	dividends := make(map[time.Time]float64, len(existingDivs)+len(fetchedDivs))
	for _, d := range existingDivs {
		dividends[dateOnly(d.Date)] = d.Amount
	}
	for _, d := range fetchedDivs {
		dividends[dateOnly(d.Date)] = d.Amount // newest fetch wins
	}
	if len(fetchedDivs) > 0 {
		c.persistDividends(symbol, fetchedDivs)
	}

	var existingSplits []models.Split
	if err := c.db.Where("symbol = ?", symbol).Find(&existingSplits).Error; err != nil {
		c.logger.Error("Failed to read persisted splits", zap.String("symbol", symbol), zap.Error(err))
	}
	fetchedSplits, err := c.provider.GetSplits(ctx, symbol, start)
	if err != nil {
		c.logger.Warn("Split fetch failed, falling back to cached history",
			zap.String("symbol", symbol), zap.Error(err))
	}
	splits := make(map[time.Time]float64, len(existingSplits)+len(fetchedSplits))
	for _, s := range existingSplits {
		splits[dateOnly(s.Date)] = s.Ratio
	}
	for _, s := range fetchedSplits {
		splits[dateOnly(s.Date)] = s.Ratio
	}
	if len(fetchedSplits) > 0 {
		c.persistSplits(symbol, fetchedSplits)
	}

	return &symbolSeries{bars: bars, dividends: dividends, splits: splits}
}

// mergeBars combines the persisted and freshly fetched bars, removing
// duplicate dates in favor of the fetched value, sorted ascending.
func mergeBars(existing, fetched []models.PriceBar) []models.PriceBar {
	byDate := make(map[time.Time]models.PriceBar, len(existing)+len(fetched))
	for _, b := range existing {
		b.Date = dateOnly(b.Date)
		byDate[b.Date] = b
	}
	for _, b := range fetched {
		b.Date = dateOnly(b.Date)
		byDate[b.Date] = b
	}

	merged := make([]models.PriceBar, 0, len(byDate))
	for _, b := range byDate {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })
	return merged
}

// persistBars upserts the merged bars onto the (symbol, date) index.
// A write failure is logged; the in-memory series is still served.
func (c *Cache) persistBars(symbol string, bars []models.PriceBar) {
	rows := make([]models.PriceBar, len(bars))
	copy(rows, bars)
	for i := range rows {
		rows[i].ID = 0 // match existing rows by (symbol, date), not primary key
	}

	err := c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"close", "updated_at"}),
	}).CreateInBatches(rows, 200).Error
	if err != nil {
		c.logger.Error("Failed to persist merged bars", zap.String("symbol", symbol), zap.Error(err))
	}
}

func (c *Cache) persistDividends(symbol string, divs []models.Dividend) {
	rows := make([]models.Dividend, len(divs))
	copy(rows, divs)
	for i := range rows {
		rows[i].ID = 0
	}

	err := c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).CreateInBatches(rows, 200).Error
	if err != nil {
		c.logger.Error("Failed to persist merged dividends", zap.String("symbol", symbol), zap.Error(err))
	}
}

func (c *Cache) persistSplits(symbol string, splits []models.Split) {
	rows := make([]models.Split, len(splits))
	copy(rows, splits)
	for i := range rows {
		rows[i].ID = 0
	}

	err := c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"ratio", "updated_at"}),
	}).CreateInBatches(rows, 200).Error
	if err != nil {
		c.logger.Error("Failed to persist merged splits", zap.String("symbol", symbol), zap.Error(err))
	}
}

// PriceAt returns the most recent close at or before the given date.
// The second return is false when the date precedes the first observation
// or the symbol has no history at all.
func (c *Cache) PriceAt(symbol string, date time.Time) (float64, bool) {
	c.mu.RLock()
	s, ok := c.series[symbol]
	c.mu.RUnlock()
	if !ok || len(s.bars) == 0 {
		return 0, false
	}

	d := dateOnly(date)
	// First bar strictly after d; the pad observation sits just before it.
	i := sort.Search(len(s.bars), func(i int) bool { return s.bars[i].Date.After(d) })
	if i == 0 {
		return 0, false
	}
	return s.bars[i-1].Close, true
}

// DividendOn returns the per-share dividend with the exact ex-date, if any.
func (c *Cache) DividendOn(symbol string, date time.Time) (float64, bool) {
	c.mu.RLock()
	s, ok := c.series[symbol]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	amount, ok := s.dividends[dateOnly(date)]
	return amount, ok
}

// SplitOn returns the split ratio effective on the exact date, if any.
func (c *Cache) SplitOn(symbol string, date time.Time) (float64, bool) {
	c.mu.RLock()
	s, ok := c.series[symbol]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	ratio, ok := s.splits[dateOnly(date)]
	return ratio, ok
}

// Bars returns the symbol's merged bar series, oldest first.
func (c *Cache) Bars(symbol string) []models.PriceBar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.series[symbol]
	if !ok {
		return nil
	}
	return s.bars
}
