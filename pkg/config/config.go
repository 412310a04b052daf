package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the service.
type Config struct {
	Port string

	// OKX
	OKXAPIKey     string
	OKXSecretKey  string
	OKXPassphrase string
	OKXSimulated  bool

	// Market
	Symbol       string // spot pair for candles, e.g. ETH-USDT
	InstID       string // swap instrument for execution, e.g. ETH-USDT-SWAP
	Timeframe    string
	TotalCandles int
	WarmupBars   int

	// Run mode: "backtest" or "live"
	Mode string

	// Paths
	DBPath         string
	ReportPath     string
	StrategyConfig string

	// Dashboard auth
	JWTSecret         string
	DashboardPassword string

	// Keepalive self-ping target; empty disables the pinger
	SelfURL string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	symbol := getEnv("SYMBOL", "ETH-USDT")
	instID := getEnv("INST_ID", "")
	if instID == "" {
		instID = symbol + "-SWAP"
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		OKXAPIKey:         os.Getenv("OKX_API_KEY"),
		OKXSecretKey:      os.Getenv("OKX_SECRET_KEY"),
		OKXPassphrase:     os.Getenv("OKX_PASSPHRASE"),
		OKXSimulated:      getEnv("OKX_SIMULATED", "false") == "true",
		Symbol:            symbol,
		InstID:            instID,
		Timeframe:         getEnv("TIMEFRAME", "30m"),
		TotalCandles:      getEnvInt("TOTAL_CANDLES", 6000),
		WarmupBars:        getEnvInt("WARMUP_BARS", 300),
		Mode:              strings.ToLower(getEnv("MODE", "backtest")),
		DBPath:            getEnv("DB_PATH", "./data/azlema.db"),
		ReportPath:        getEnv("REPORT_PATH", "./data/report.html"),
		StrategyConfig:    getEnv("STRATEGY_CONFIG", "./azlema.yaml"),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret"),
		DashboardPassword: getEnv("DASHBOARD_PASSWORD", ""),
		SelfURL:           getEnv("SELF_URL", ""),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
