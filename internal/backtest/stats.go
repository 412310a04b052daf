package backtest

import "math"

// computeStats fills the summary fields of res from its trades and equity
// curve. periodsPerYear annualizes the per-bar return ratio.
func computeStats(res *Result, periodsPerYear float64) {
	var wins, losses int
	var grossWin, grossLoss float64
	for _, tr := range res.Trades {
		if tr.PnL > 0 {
			wins++
			grossWin += tr.PnL
		} else if tr.PnL < 0 {
			losses++
			grossLoss += -tr.PnL
		}
	}
	if res.TotalTrades > 0 {
		res.WinRate = float64(wins) / float64(res.TotalTrades)
	}
	if wins > 0 {
		res.AvgWin = grossWin / float64(wins)
	}
	if losses > 0 {
		res.AvgLoss = grossLoss / float64(losses)
	}
	switch {
	case grossLoss > 0:
		res.ProfitFactor = grossWin / grossLoss
	case grossWin > 0:
		res.ProfitFactor = math.Inf(1)
	}

	res.MaxDrawdownPct = maxDrawdown(res.Equity)
	res.Sharpe = sharpe(res.Equity, periodsPerYear)
}

// maxDrawdown returns the largest peak-to-trough decline of the curve as a
// percentage of the peak.
func maxDrawdown(equity []float64) float64 {
	var peak, maxDD float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpe is the annualized mean/stdev ratio of per-bar equity returns.
// A flat curve has zero deviation and yields zero.
func sharpe(equity []float64, periodsPerYear float64) float64 {
	if len(equity) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			return 0
		}
		returns = append(returns, equity[i]/equity[i-1]-1)
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(periodsPerYear)
}
