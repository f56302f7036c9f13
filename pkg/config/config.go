package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trading agent.
type Config struct {
	Port string

	// Execution
	Mode                  string // paper | live
	MaxPositionUSD        float64
	MaxDailyLossPct       float64 // reported only
	PositionPolicy        string  // full_close | proportional
	SerializeSymbolOrders bool

	// Persistence
	StoreBackend string // auto | supabase | postgres | sqlite | none
	SupabaseURL  string
	SupabaseKey  string
	DatabaseURL  string
	DBPath       string
	StoreTimeout time.Duration

	// Exchanges
	BinanceAPIKey      string
	BinanceAPISecret   string
	CoinbaseAPIKey     string
	CoinbaseAPISecret  string
	CoinbasePassphrase string
	ExchangeTimeout    time.Duration
	ExchangeTestnet    bool
	PrimaryExchange    string
	PublicMarketData   bool // query public endpoints without keys
	PriceStream        bool // follow the binance trade stream for the strategy symbol
	SampleDataPath     string
	SampleSymbol       string

	// Strategy
	StrategySymbol    string
	StrategyTimeframe string
	SMAShort          int
	SMALong           int
	SMABuffer         int
	OrderSize         float64
	StrategyConfig    string

	// Loop
	LoopInterval  time.Duration
	FaultInterval time.Duration

	// Auth
	JWTSecret string

	// Localization
	Language string // "en" or "zh"
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		Mode:                  strings.ToLower(getEnv("MODE", "paper")),
		MaxPositionUSD:        getEnvFloat("MAX_POSITION_USD", 5000),
		MaxDailyLossPct:       getEnvFloat("MAX_DAILY_LOSS_PCT", 5),
		PositionPolicy:        strings.ToLower(getEnv("POSITION_POLICY", "full_close")),
		SerializeSymbolOrders: getEnvBool("SERIALIZE_SYMBOL_ORDERS", true),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "auto")),
		SupabaseURL:  getEnv("SUPABASE_URL", ""),
		SupabaseKey:  getEnv("SUPABASE_KEY", ""),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		DBPath:       getEnv("DB_PATH", ""),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 10*time.Second),

		BinanceAPIKey:      getEnv("EXCHANGE_BINANCE_KEY", ""),
		BinanceAPISecret:   getEnv("EXCHANGE_BINANCE_SECRET", ""),
		CoinbaseAPIKey:     getEnv("EXCHANGE_COINBASE_KEY", ""),
		CoinbaseAPISecret:  getEnv("EXCHANGE_COINBASE_SECRET", ""),
		CoinbasePassphrase: getEnv("EXCHANGE_COINBASE_PASSPHRASE", ""),
		ExchangeTimeout:    getEnvDuration("EXCHANGE_TIMEOUT", 10*time.Second),
		ExchangeTestnet:    getEnvBool("EXCHANGE_TESTNET", false),
		PrimaryExchange:    strings.ToLower(getEnv("PRIMARY_EXCHANGE", "")),
		PublicMarketData:   getEnvBool("PUBLIC_MARKET_DATA", true),
		PriceStream:        getEnvBool("PRICE_STREAM", false),
		SampleDataPath:     getEnv("SAMPLE_DATA_PATH", "data/sample_minute_ohlc.csv"),
		SampleSymbol:       getEnv("SAMPLE_SYMBOL", "BTC/USDT"),

		StrategySymbol:    getEnv("STRATEGY_SYMBOL", "BTC/USDT"),
		StrategyTimeframe: getEnv("STRATEGY_TIMEFRAME", "1m"),
		SMAShort:          getEnvInt("SMA_SHORT", 20),
		SMALong:           getEnvInt("SMA_LONG", 50),
		SMABuffer:         getEnvInt("SMA_BUFFER", 10),
		OrderSize:         getEnvFloat("ORDER_SIZE", 0.001),
		StrategyConfig:    getEnv("STRATEGY_CONFIG", "strategy.yaml"),

		LoopInterval:  getEnvDuration("LOOP_INTERVAL", 60*time.Second),
		FaultInterval: getEnvDuration("FAULT_INTERVAL", 5*time.Second),

		JWTSecret: getEnv("API_JWT_SECRET", ""),
		Language:  strings.ToLower(getEnv("LANGUAGE", "en")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case "paper", "live":
	default:
		return fmt.Errorf("MODE must be paper or live, got %q", c.Mode)
	}
	switch c.PositionPolicy {
	case "full_close", "full", "proportional", "reduce":
	default:
		return fmt.Errorf("POSITION_POLICY must be full_close or proportional, got %q", c.PositionPolicy)
	}
	switch c.StoreBackend {
	case "auto", "supabase", "postgres", "sqlite", "none":
	default:
		return fmt.Errorf("STORE_BACKEND %q is not supported", c.StoreBackend)
	}
	if c.SMAShort <= 0 || c.SMABuffer < 0 {
		return fmt.Errorf("SMA_SHORT must be positive and SMA_BUFFER non-negative (got %d, %d)", c.SMAShort, c.SMABuffer)
	}
	if !(c.OrderSize > 0) {
		return fmt.Errorf("ORDER_SIZE must be positive, got %v", c.OrderSize)
	}
	if strings.TrimSpace(c.StrategySymbol) == "" {
		return errors.New("STRATEGY_SYMBOL is empty")
	}
	if c.SMAShort >= c.SMALong {
		return fmt.Errorf("SMA_SHORT (%d) must be below SMA_LONG (%d)", c.SMAShort, c.SMALong)
	}
	return nil
}

// SupabaseConfigured reports whether both halves of the REST store pair are set.
func (c *Config) SupabaseConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}
