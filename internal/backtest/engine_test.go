package backtest

import (
	"math"
	"testing"
	"time"

	"azlema-core/internal/strategy"
)

var base = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func synthCandles(n int) []strategy.Candle {
	out := make([]strategy.Candle, 0, n)
	prev := 100.0
	for i := 1; i <= n; i++ {
		phase := float64(i%40) / 40
		px := 100 + 8*(2*math.Abs(phase-0.5)) + 0.3*math.Sin(float64(i)*7)
		out = append(out, strategy.Candle{
			Open:      prev,
			High:      math.Max(prev, px) + 0.2,
			Low:       math.Min(prev, px) - 0.2,
			Close:     px,
			Timestamp: base.Add(time.Duration(i) * 30 * time.Minute),
			Seq:       i,
		})
		prev = px
	}
	return out
}

func TestRunProducesConsistentResult(t *testing.T) {
	eng := New(strategy.New(strategy.DefaultConfig()), 0)
	res, err := eng.Run(synthCandles(300))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Equity) != 300 || len(res.Timestamps) != 300 {
		t.Fatalf("equity curve length %d, want 300", len(res.Equity))
	}
	if res.TotalTrades != len(res.Trades) {
		t.Errorf("TotalTrades %d != len(Trades) %d", res.TotalTrades, len(res.Trades))
	}

	var pnlSum float64
	for _, tr := range res.Trades {
		pnlSum += tr.PnL
		if tr.Reason == "" {
			t.Errorf("trade missing exit reason: %+v", tr)
		}
		if tr.ExitTime.Before(tr.EntryTime) {
			t.Errorf("trade exits before it enters: %+v", tr)
		}
	}
	if math.Abs(res.FinalBalance-(res.InitialCapital+pnlSum)) > 1e-6 {
		t.Errorf("final balance %v != initial %v + pnl %v",
			res.FinalBalance, res.InitialCapital, pnlSum)
	}
	if res.Equity[len(res.Equity)-1] != res.FinalBalance {
		t.Errorf("equity curve tail %v != final balance %v",
			res.Equity[len(res.Equity)-1], res.FinalBalance)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	eng := New(strategy.New(strategy.DefaultConfig()), 0)
	if _, err := eng.Run(nil); err == nil {
		t.Error("empty series accepted")
	}

	candles := synthCandles(10)
	candles[5].Seq = candles[4].Seq // duplicate
	eng = New(strategy.New(strategy.DefaultConfig()), 0)
	if _, err := eng.Run(candles); err == nil {
		t.Error("non-ascending seq accepted")
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		equity []float64
		want   float64
	}{
		{"monotone up", []float64{100, 110, 120}, 0},
		{"single dip", []float64{100, 120, 90, 130}, 25},
		{"deepest wins", []float64{100, 80, 120, 60}, 50},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maxDrawdown(tt.equity); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("maxDrawdown = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSharpe(t *testing.T) {
	if got := sharpe([]float64{100, 100, 100}, DefaultPeriodsPerYear); got != 0 {
		t.Errorf("flat curve sharpe = %v, want 0", got)
	}
	if got := sharpe([]float64{100}, DefaultPeriodsPerYear); got != 0 {
		t.Errorf("short curve sharpe = %v, want 0", got)
	}
	up := sharpe([]float64{100, 101, 102.01, 103.03}, DefaultPeriodsPerYear)
	if up <= 0 {
		t.Errorf("rising curve sharpe = %v, want > 0", up)
	}
	down := sharpe([]float64{100, 99, 98, 96}, DefaultPeriodsPerYear)
	if down >= 0 {
		t.Errorf("falling curve sharpe = %v, want < 0", down)
	}
}

func TestProfitFactorInfiniteWithoutLosses(t *testing.T) {
	res := &Result{
		Trades:      []Trade{{PnL: 5}, {PnL: 3}},
		TotalTrades: 2,
		Equity:      []float64{100, 105, 108},
	}
	computeStats(res, DefaultPeriodsPerYear)
	if !math.IsInf(res.ProfitFactor, 1) {
		t.Errorf("profit factor = %v, want +Inf", res.ProfitFactor)
	}
	if res.WinRate != 1 {
		t.Errorf("win rate = %v, want 1", res.WinRate)
	}
	if res.AvgWin != 4 {
		t.Errorf("avg win = %v, want 4", res.AvgWin)
	}
}
