package marketdata

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RefreshAll refreshes every symbol through a bounded worker pool.
// Symbols are isolated from each other: one symbol failing or degrading to
// cached data never affects its siblings. Each task writes only its own
// result slot; the shared series map is touched once, after the pool has
// fully drained, so the call doubles as the simulator's start barrier.
func (c *Cache) RefreshAll(ctx context.Context, symbols []string, requestedStart time.Time, concurrency int) {
	if len(symbols) == 0 {
		return
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	c.logger.Info("Refreshing market data",
		zap.Int("symbols", len(symbols)),
		zap.Int("concurrency", concurrency))

	results := make([]*symbolSeries, len(symbols))

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = c.buildSeries(ctx, symbol, requestedStart)
		}(i, symbol)
	}
	wg.Wait()

	c.mu.Lock()
	for i, symbol := range symbols {
		if results[i] != nil {
			c.series[symbol] = results[i]
		}
	}
	c.mu.Unlock()
}
