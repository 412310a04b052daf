package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"azlema-core/internal/backtest"
)

// Write renders the backtest result as a standalone HTML page at path.
func Write(path, symbol, timeframe string, res *backtest.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	return Render(f, symbol, timeframe, res)
}

// Render writes the report HTML to w.
func Render(w io.Writer, symbol, timeframe string, res *backtest.Result) error {
	data, err := buildView(symbol, timeframe, res)
	if err != nil {
		return err
	}
	return page.Execute(w, data)
}

type tradeView struct {
	EntryTime  string
	ExitTime   string
	Side       string
	Qty        string
	EntryPrice string
	ExitPrice  string
	PnL        float64
	PnLText    string
	Reason     string
}

type view struct {
	Symbol       string
	Timeframe    string
	GeneratedAt  string
	PnL          float64
	PnLText      string
	FinalBalance string
	WinRate      string
	TotalTrades  int
	MaxDrawdown  string
	Sharpe       string
	ProfitFactor string
	PFPositive   bool
	AvgWinLoss   string
	Trades       []tradeView

	Labels template.JS
	Equity template.JS
	Closes template.JS
}

func buildView(symbol, timeframe string, res *backtest.Result) (*view, error) {
	labels := make([]string, len(res.Timestamps))
	for i, ts := range res.Timestamps {
		labels[i] = ts.Format("2006-01-02 15:04")
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return nil, err
	}
	equityJSON, err := json.Marshal(res.Equity)
	if err != nil {
		return nil, err
	}
	closesJSON, err := json.Marshal(res.Closes)
	if err != nil {
		return nil, err
	}

	pf := "∞"
	if !math.IsInf(res.ProfitFactor, 1) {
		pf = fmt.Sprintf("%.2f", res.ProfitFactor)
	}

	v := &view{
		Symbol:       symbol,
		Timeframe:    timeframe,
		GeneratedAt:  time.Now().UTC().Format(time.RFC1123),
		PnL:          res.TotalPnL,
		PnLText:      fmt.Sprintf("%.2f", res.TotalPnL),
		FinalBalance: fmt.Sprintf("%.2f", res.FinalBalance),
		WinRate:      fmt.Sprintf("%.1f%%", res.WinRate*100),
		TotalTrades:  res.TotalTrades,
		MaxDrawdown:  fmt.Sprintf("%.2f%%", res.MaxDrawdownPct),
		Sharpe:       fmt.Sprintf("%.2f", res.Sharpe),
		ProfitFactor: pf,
		PFPositive:   res.ProfitFactor >= 1,
		AvgWinLoss:   fmt.Sprintf("%.2f / -%.2f", res.AvgWin, res.AvgLoss),
		Labels:       template.JS(labelsJSON),
		Equity:       template.JS(equityJSON),
		Closes:       template.JS(closesJSON),
	}
	for _, tr := range res.Trades {
		v.Trades = append(v.Trades, tradeView{
			EntryTime:  tr.EntryTime.Format("2006-01-02 15:04"),
			ExitTime:   tr.ExitTime.Format("2006-01-02 15:04"),
			Side:       tr.Side,
			Qty:        fmt.Sprintf("%.4f", tr.Qty),
			EntryPrice: fmt.Sprintf("%.2f", tr.EntryPrice),
			ExitPrice:  fmt.Sprintf("%.2f", tr.ExitPrice),
			PnL:        tr.PnL,
			PnLText:    fmt.Sprintf("%.2f", tr.PnL),
			Reason:     string(tr.Reason),
		})
	}
	return v, nil
}

var page = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>AZLEMA Backtest — {{.Symbol}} {{.Timeframe}}</title>
<script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.0/dist/chart.umd.min.js"></script>
<style>
  body { background:#12161c; color:#eaecef; font-family:system-ui,sans-serif; margin:0; }
  .container { max-width:1100px; margin:0 auto; padding:25px; }
  h1 { font-size:22px; }
  .stats-grid { display:grid; grid-template-columns:repeat(auto-fit,minmax(200px,1fr)); gap:15px; margin-bottom:25px; }
  .stat-card { background:#1e2329; border-radius:8px; padding:20px; border-left:5px solid #f0b90b; }
  .stat-label { color:#848e9c; font-size:13px; }
  .stat-value { font-size:24px; font-weight:600; margin-top:6px; }
  .positive { color:#0ecb81; }
  .negative { color:#f6465d; }
  .chart-container { background:#1e2329; border-radius:8px; padding:20px; margin-bottom:25px; height:320px; }
  table { width:100%; border-collapse:collapse; background:#1e2329; border-radius:8px; }
  th, td { padding:9px 12px; text-align:right; font-size:13px; border-bottom:1px solid #2b3139; }
  th { color:#848e9c; }
  td:first-child, th:first-child { text-align:left; }
  .footer { color:#848e9c; font-size:12px; margin-top:20px; }
</style>
</head>
<body>
<div class="container">
  <h1>Adaptive Zero Lag EMA — {{.Symbol}} {{.Timeframe}}</h1>

  <div class="stats-grid">
    <div class="stat-card">
      <div class="stat-label">Total PnL (USDT)</div>
      <div class="stat-value {{if ge .PnL 0.0}}positive{{else}}negative{{end}}">{{.PnLText}}</div>
    </div>
    <div class="stat-card">
      <div class="stat-label">Final Balance</div>
      <div class="stat-value">{{.FinalBalance}}</div>
    </div>
    <div class="stat-card">
      <div class="stat-label">Win Rate</div>
      <div class="stat-value">{{.WinRate}}</div>
    </div>
    <div class="stat-card">
      <div class="stat-label">Total Trades</div>
      <div class="stat-value">{{.TotalTrades}}</div>
    </div>
    <div class="stat-card">
      <div class="stat-label">Max Drawdown</div>
      <div class="stat-value negative">{{.MaxDrawdown}}</div>
    </div>
    <div class="stat-card">
      <div class="stat-label">Sharpe (annualized)</div>
      <div class="stat-value">{{.Sharpe}}</div>
    </div>
    <div class="stat-card">
      <div class="stat-label">Profit Factor</div>
      <div class="stat-value {{if .PFPositive}}positive{{else}}negative{{end}}">{{.ProfitFactor}}</div>
    </div>
    <div class="stat-card">
      <div class="stat-label">Avg Win / Avg Loss</div>
      <div class="stat-value" style="font-size:18px">{{.AvgWinLoss}}</div>
    </div>
  </div>

  <div class="chart-container"><canvas id="equityChart"></canvas></div>
  <div class="chart-container"><canvas id="priceChart"></canvas></div>

  <h2>Trades</h2>
  <table>
    <thead>
      <tr>
        <th>Entry</th><th>Exit</th><th>Side</th><th>Qty</th>
        <th>Entry Px</th><th>Exit Px</th><th>PnL (USDT)</th><th>Reason</th>
      </tr>
    </thead>
    <tbody>
      {{range .Trades}}
      <tr>
        <td>{{.EntryTime}}</td><td>{{.ExitTime}}</td><td>{{.Side}}</td><td>{{.Qty}}</td>
        <td>{{.EntryPrice}}</td><td>{{.ExitPrice}}</td>
        <td class="{{if ge .PnL 0.0}}positive{{else}}negative{{end}}">{{.PnLText}}</td>
        <td>{{.Reason}}</td>
      </tr>
      {{end}}
    </tbody>
  </table>

  <div class="footer">Generated {{.GeneratedAt}}</div>
</div>

<script>
const labels = {{.Labels}};
new Chart(document.getElementById('equityChart').getContext('2d'), {
  type: 'line',
  data: { labels: labels, datasets: [{
    label: 'Equity (USDT)', data: {{.Equity}},
    borderColor: '#f0b90b', backgroundColor: 'rgba(240,185,11,0.08)',
    fill: true, pointRadius: 0, borderWidth: 1.5
  }]},
  options: { maintainAspectRatio: false, scales: { x: { ticks: { maxTicksLimit: 12 } } } }
});
new Chart(document.getElementById('priceChart').getContext('2d'), {
  type: 'line',
  data: { labels: labels, datasets: [{
    label: 'Close', data: {{.Closes}},
    borderColor: '#0ecb81', pointRadius: 0, borderWidth: 1.5
  }]},
  options: { maintainAspectRatio: false, scales: { x: { ticks: { maxTicksLimit: 12 } } } }
});
</script>
</body>
</html>
`))
