package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Mode != "backtest" {
		t.Errorf("Mode = %q, want backtest", cfg.Mode)
	}
	if cfg.InstID != "ETH-USDT-SWAP" {
		t.Errorf("InstID = %q, want derived ETH-USDT-SWAP", cfg.InstID)
	}
	if cfg.TotalCandles != 6000 || cfg.WarmupBars != 300 {
		t.Errorf("candle defaults = %d/%d", cfg.TotalCandles, cfg.WarmupBars)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MODE", "LIVE")
	t.Setenv("SYMBOL", "BTC-USDT")
	t.Setenv("TOTAL_CANDLES", "1234")
	t.Setenv("INST_ID", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Mode != "live" {
		t.Errorf("Mode = %q, want lowercased live", cfg.Mode)
	}
	if cfg.InstID != "BTC-USDT-SWAP" {
		t.Errorf("InstID = %q, want BTC-USDT-SWAP", cfg.InstID)
	}
	if cfg.TotalCandles != 1234 {
		t.Errorf("TotalCandles = %d", cfg.TotalCandles)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("TOTAL_CANDLES", "not-a-number")
	if got := getEnvInt("TOTAL_CANDLES", 77); got != 77 {
		t.Errorf("getEnvInt = %d, want fallback 77", got)
	}
}
