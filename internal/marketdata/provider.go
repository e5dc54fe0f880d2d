package marketdata

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const dateLayout = "2006-01-02"

// ProviderInterface defines the market-data provider operations the cache needs.
type ProviderInterface interface {
	GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error)
	GetDividends(ctx context.Context, symbol string, from time.Time) ([]models.Dividend, error)
	GetSplits(ctx context.Context, symbol string, from time.Time) ([]models.Split, error)
}

// Client is a client for an end-of-day market history HTTP API.
// It implements the ProviderInterface.
type Client struct {
	client   *resty.Client
	apiToken string
	logger   *zap.Logger
	limiter  *rate.Limiter
}

// ensure Client implements the interface
var _ ProviderInterface = (*Client)(nil)

// NewClient creates a new market-data provider client.
func NewClient(cfg *config.Provider, logger *zap.Logger) *Client {
	client := resty.New().SetBaseURL(cfg.BaseURL)

	// Initialize the rate limiter
	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:   client,
		apiToken: cfg.ApiToken,
		logger:   logger,
		limiter:  limiter,
	}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// barRow mirrors one daily bar in the provider's JSON response.
type barRow struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// GetDailyBars fetches the daily close history for a symbol over [from, to].
func (c *Client) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	var rows []barRow

	req := c.client.R().
		SetContext(ctx).
		SetResult(&rows).
		SetQueryParams(map[string]string{
			"from":      from.Format(dateLayout),
			"to":        to.Format(dateLayout),
			"api_token": c.apiToken,
		}).
		SetHeader("Accept", "application/json")

	if _, err := c.doRequest(ctx, "GET", "/eod/"+symbol, req); err != nil {
		return nil, fmt.Errorf("failed to get daily bars for %s: %w", symbol, err)
	}

	bars := make([]models.PriceBar, 0, len(rows))
	for _, row := range rows {
		d, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			c.logger.Warn("Skipping bar with unparseable date",
				zap.String("symbol", symbol), zap.String("date", row.Date))
			continue
		}
		bars = append(bars, models.PriceBar{Symbol: symbol, Date: dateOnly(d), Close: row.Close})
	}
	return bars, nil
}

// dividendRow mirrors one dividend in the provider's JSON response.
type dividendRow struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// GetDividends fetches the per-share dividend history for a symbol from a start date.
func (c *Client) GetDividends(ctx context.Context, symbol string, from time.Time) ([]models.Dividend, error) {
	var rows []dividendRow

	req := c.client.R().
		SetContext(ctx).
		SetResult(&rows).
		SetQueryParams(map[string]string{
			"from":      from.Format(dateLayout),
			"api_token": c.apiToken,
		}).
		SetHeader("Accept", "application/json")

	if _, err := c.doRequest(ctx, "GET", "/dividends/"+symbol, req); err != nil {
		return nil, fmt.Errorf("failed to get dividends for %s: %w", symbol, err)
	}

	divs := make([]models.Dividend, 0, len(rows))
	for _, row := range rows {
		d, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			c.logger.Warn("Skipping dividend with unparseable date",
				zap.String("symbol", symbol), zap.String("date", row.Date))
			continue
		}
		divs = append(divs, models.Dividend{Symbol: symbol, Date: dateOnly(d), Amount: row.Amount})
	}
	return divs, nil
}

// splitRow mirrors one split in the provider's JSON response.
type splitRow struct {
	Date  string  `json:"date"`
	Ratio float64 `json:"ratio"`
}

// GetSplits fetches the split history for a symbol from a start date.
func (c *Client) GetSplits(ctx context.Context, symbol string, from time.Time) ([]models.Split, error) {
	var rows []splitRow

	req := c.client.R().
		SetContext(ctx).
		SetResult(&rows).
		SetQueryParams(map[string]string{
			"from":      from.Format(dateLayout),
			"api_token": c.apiToken,
		}).
		SetHeader("Accept", "application/json")

	if _, err := c.doRequest(ctx, "GET", "/splits/"+symbol, req); err != nil {
		return nil, fmt.Errorf("failed to get splits for %s: %w", symbol, err)
	}

	splits := make([]models.Split, 0, len(rows))
	for _, row := range rows {
		d, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			c.logger.Warn("Skipping split with unparseable date",
				zap.String("symbol", symbol), zap.String("date", row.Date))
			continue
		}
		splits = append(splits, models.Split{Symbol: symbol, Date: dateOnly(d), Ratio: row.Ratio})
	}
	return splits, nil
}
