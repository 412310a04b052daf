package db

import "time"

// TradeRow is one persisted trade event.
type TradeRow struct {
	ID           string
	RunID        string
	Symbol       string
	Kind         string
	Price        float64
	Qty          float64
	PnL          float64
	BalanceAfter float64
	ExitReason   string
	BarTime      time.Time
}

// BacktestRun is the stored summary of one completed backtest.
type BacktestRun struct {
	ID             string
	Symbol         string
	Timeframe      string
	Candles        int
	TotalTrades    int
	WinRate        float64
	TotalPnL       float64
	FinalBalance   float64
	MaxDrawdownPct float64
	Sharpe         float64
	ProfitFactor   float64
	CreatedAt      time.Time
}
