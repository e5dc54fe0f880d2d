package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Provider  Provider  `mapstructure:"provider"`
	Database  Database  `mapstructure:"database"`
	Data      Data      `mapstructure:"data"`
	Portfolio Portfolio `mapstructure:"portfolio"`
	Analytics Analytics `mapstructure:"analytics"`
	Logger    Logger    `mapstructure:"logger"`
}

// Provider holds the configuration for the market-data provider API.
type Provider struct {
	BaseURL        string  `mapstructure:"base_url"`
	ApiToken       string  `mapstructure:"api_token"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Database holds the configuration for the market-data store.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Data holds the tunables for the incremental cache refresh.
type Data struct {
	LookbackDays       int `mapstructure:"lookback_days"`
	RefreshConcurrency int `mapstructure:"refresh_concurrency"`
}

// Portfolio holds the configuration for the ledger replay.
type Portfolio struct {
	LedgerFile       string   `mapstructure:"ledger_file"`
	OutputDir        string   `mapstructure:"output_dir"`
	TaxExemptSymbols []string `mapstructure:"tax_exempt_symbols"`
	DividendTaxRate  float64  `mapstructure:"dividend_tax_rate"`
}

// Analytics holds the configuration for the performance metrics.
type Analytics struct {
	RiskFreeRate float64 `mapstructure:"risk_free_rate"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("provider.rate_limit", 20) // requests per second
	viper.SetDefault("provider.rate_limit_burst", 5)
	viper.SetDefault("database.dsn", "data/marketdata.db")
	viper.SetDefault("data.lookback_days", 5)
	viper.SetDefault("data.refresh_concurrency", 20)
	viper.SetDefault("portfolio.ledger_file", "input/trade_history.csv")
	viper.SetDefault("portfolio.output_dir", "output")
	viper.SetDefault("portfolio.tax_exempt_symbols", []string{"SHV", "SGOV", "BIL"})
	viper.SetDefault("portfolio.dividend_tax_rate", 0.30)
	viper.SetDefault("analytics.risk_free_rate", 0.04)
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
