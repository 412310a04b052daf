package backtest

import (
	"fmt"
	"time"

	"azlema-core/internal/strategy"
)

// Trade is one completed entry/exit round trip.
type Trade struct {
	Side       string              `json:"side"`
	EntryTime  time.Time           `json:"entry_time"`
	ExitTime   time.Time           `json:"exit_time"`
	EntryPrice float64             `json:"entry_price"`
	ExitPrice  float64             `json:"exit_price"`
	Qty        float64             `json:"qty"`
	PnL        float64             `json:"pnl"`
	Reason     strategy.ExitReason `json:"exit_reason"`
}

// Result aggregates a finished run: the raw event stream, paired trades, the
// per-bar equity curve, and summary statistics.
type Result struct {
	Events      []strategy.TradeEvent `json:"events"`
	Trades      []Trade               `json:"trades"`
	Equity      []float64             `json:"equity"`
	Timestamps  []time.Time           `json:"timestamps"`
	Closes      []float64             `json:"closes"`

	InitialCapital float64 `json:"initial_capital"`
	FinalBalance   float64 `json:"final_balance"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalTrades    int     `json:"total_trades"`
	WinRate        float64 `json:"win_rate"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Sharpe         float64 `json:"sharpe"`
	ProfitFactor   float64 `json:"profit_factor"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
}

// Engine feeds an ordered candle series through one strategy instance.
// Backtests fail fast: any inconsistency aborts the run with an error.
type Engine struct {
	strat          *strategy.AZLEMA
	periodsPerYear float64
}

// DefaultPeriodsPerYear annualizes 30m bars: 48 per day, 365 days.
const DefaultPeriodsPerYear = 48 * 365

func New(strat *strategy.AZLEMA, periodsPerYear float64) *Engine {
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}
	return &Engine{strat: strat, periodsPerYear: periodsPerYear}
}

// Run processes the full series and returns the aggregated result.
func (e *Engine) Run(candles []strategy.Candle) (*Result, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("backtest: empty candle series")
	}

	res := &Result{InitialCapital: e.strat.Config().InitialCapital}
	var open *Trade

	lastSeq := candles[0].Seq - 1
	for _, c := range candles {
		if c.Seq <= lastSeq {
			return nil, fmt.Errorf("backtest: candle seq %d not ascending after %d", c.Seq, lastSeq)
		}
		lastSeq = c.Seq

		for _, ev := range e.strat.Next(c) {
			res.Events = append(res.Events, ev)
			switch ev.Kind {
			case strategy.EnterLong, strategy.EnterShort:
				if open != nil {
					return nil, fmt.Errorf("backtest: entry at seq %d while a trade is open", ev.Seq)
				}
				side := strategy.SideBuy
				if ev.Kind == strategy.EnterShort {
					side = strategy.SideSell
				}
				open = &Trade{
					Side:       side,
					EntryTime:  ev.Timestamp,
					EntryPrice: ev.Price,
					Qty:        ev.Qty,
				}
			case strategy.ExitLong, strategy.ExitShort:
				if open == nil {
					return nil, fmt.Errorf("backtest: exit at seq %d with no open trade", ev.Seq)
				}
				open.ExitTime = ev.Timestamp
				open.ExitPrice = ev.Price
				open.PnL = ev.RealizedPnL
				open.Reason = ev.Reason
				res.Trades = append(res.Trades, *open)
				open = nil
			}
		}

		res.Equity = append(res.Equity, e.strat.Balance())
		res.Timestamps = append(res.Timestamps, c.Timestamp)
		res.Closes = append(res.Closes, c.Close)
	}

	res.FinalBalance = e.strat.Balance()
	res.TotalPnL = e.strat.NetProfit()
	res.TotalTrades = len(res.Trades)
	computeStats(res, e.periodsPerYear)
	return res, nil
}
