package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"portfolio-tracker-go/internal/analytics"
	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/database"
	"portfolio-tracker-go/internal/ledger"
	"portfolio-tracker-go/internal/logger"
	"portfolio-tracker-go/internal/marketdata"
	"portfolio-tracker-go/internal/models"
	"portfolio-tracker-go/internal/portfolio"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Open the market-data store
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open market data store", zap.Error(err))
	}

	// Ingest the trade ledger. An unreadable or empty ledger is not an
	// error: there is simply nothing to simulate.
	led, err := ledger.LoadCSV(cfg.Portfolio.LedgerFile, log)
	if err != nil {
		log.Warn("Trade ledger unreadable", zap.Error(err))
		led = ledger.New(nil)
	}
	if led.Empty() {
		log.Warn("Trade ledger is empty, nothing to simulate")
		return
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, cancelling refresh...")
		cancel()
	}()

	// Refresh market data for every ledger symbol. The call returns only
	// once all symbols are in their final merged state, so the simulator
	// can start immediately afterwards.
	client := marketdata.NewClient(&cfg.Provider, log)
	cache := marketdata.NewCache(db, client, cfg.Data.LookbackDays, log)

	start, _ := led.DateRange()
	cache.RefreshAll(ctx, led.Symbols(), start, cfg.Data.RefreshConcurrency)

	// Replay the ledger into the daily snapshot series.
	sim := portfolio.NewSimulator(led, cache, portfolio.Config{
		TaxExemptSymbols: cfg.Portfolio.TaxExemptSymbols,
		DividendTaxRate:  cfg.Portfolio.DividendTaxRate,
	}, log)
	snapshots := sim.Run()
	log.Info("Simulation complete",
		zap.Int("business_days", len(snapshots)),
		zap.Int("dividend_credits", len(sim.DividendHistory())))

	persistDividendHistory(db, sim.DividendHistory(), log)

	metrics := analytics.Calculate(snapshots, cfg.Analytics.RiskFreeRate)
	log.Info("Performance metrics",
		zap.Float64("total_return", metrics.TotalReturn),
		zap.Float64("cumulative_return", metrics.CumulativeReturn),
		zap.Float64("annualized_volatility", metrics.AnnualizedVolatility),
		zap.Float64("sharpe_ratio", metrics.SharpeRatio),
		zap.Float64("sortino_ratio", metrics.SortinoRatio),
		zap.Float64("var_95_return", metrics.VaR95Return),
		zap.Float64("var_95_dollar", metrics.VaR95Dollar),
		zap.Float64("max_drawdown", metrics.MaxDrawdown))

	if err := exportResults(cfg.Portfolio.OutputDir, snapshots, sim.DividendHistory()); err != nil {
		log.Error("Failed to export results", zap.Error(err))
		return
	}
	log.Info("Results exported", zap.String("dir", cfg.Portfolio.OutputDir))
}

// persistDividendHistory appends this run's dividend credits to the store.
// A write failure only costs the log, never the run.
func persistDividendHistory(db *gorm.DB, payments []portfolio.DividendPayment, log *zap.Logger) {
	if len(payments) == 0 {
		return
	}
	rows := make([]models.DividendPayment, len(payments))
	for i, p := range payments {
		rows[i] = models.DividendPayment{Symbol: p.Symbol, Date: p.Date, Amount: p.Amount}
	}
	if err := db.CreateInBatches(rows, 200).Error; err != nil {
		log.Error("Failed to persist dividend history", zap.Error(err))
	}
}
