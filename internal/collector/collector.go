package collector

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"azlema-core/internal/strategy"
	"azlema-core/pkg/okx"
)

const maxPerRequest = 300

// Collector assembles an ordered, duplicate-free candle history for one
// instrument, paging backward through the OKX candle endpoint. When the
// exchange is unreachable it degrades to a seeded synthetic series so
// development and backtests still run.
type Collector struct {
	market    *okx.MarketDataClient
	symbol    string
	timeframe string
	limit     int
	retries   int
	mockSeed  int64
}

func New(market *okx.MarketDataClient, symbol, timeframe string, limit int) *Collector {
	return &Collector{
		market:    market,
		symbol:    normalizeSymbol(symbol),
		timeframe: normalizeTimeframe(timeframe),
		limit:     limit,
		retries:   3,
		mockSeed:  42,
	}
}

func normalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "/", "-")
	return strings.ReplaceAll(s, "_", "-")
}

// normalizeTimeframe maps the common lowercase spellings onto OKX bar codes,
// which capitalize hours and above.
func normalizeTimeframe(tf string) string {
	mapping := map[string]string{
		"1m": "1m", "3m": "3m", "5m": "5m", "15m": "15m", "30m": "30m",
		"1h": "1H", "2h": "2H", "4h": "4H", "6h": "6H", "12h": "12H",
		"1d": "1D", "1w": "1W",
	}
	if bar, ok := mapping[strings.ToLower(tf)]; ok {
		return bar
	}
	return "30m"
}

// BarDuration returns the wall-clock length of one bar.
func (c *Collector) BarDuration() time.Duration {
	switch c.timeframe {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1H":
		return time.Hour
	case "2H":
		return 2 * time.Hour
	case "4H":
		return 4 * time.Hour
	case "6H":
		return 6 * time.Hour
	case "12H":
		return 12 * time.Hour
	case "1D":
		return 24 * time.Hour
	case "1W":
		return 7 * 24 * time.Hour
	}
	return 30 * time.Minute
}

// Symbol returns the normalized instrument id.
func (c *Collector) Symbol() string { return c.symbol }

// Timeframe returns the normalized OKX bar code.
func (c *Collector) Timeframe() string { return c.timeframe }

// Latest returns the most recent fully closed candle. OKX lists the still
// forming bar first, so the candidate is accepted only once its close time
// has passed.
func (c *Collector) Latest(ctx context.Context) (strategy.Candle, error) {
	rows, err := c.fetchPage(ctx, 3, 0)
	if err != nil {
		return strategy.Candle{}, err
	}
	now := time.Now().UTC()
	step := c.BarDuration()
	for _, r := range rows {
		open := time.UnixMilli(r.Ts).UTC()
		if open.Add(step).After(now) {
			continue
		}
		return strategy.Candle{
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
			Timestamp: open,
		}, nil
	}
	return strategy.Candle{}, fmt.Errorf("no closed candle for %s %s", c.symbol, c.timeframe)
}

// Collect fetches up to the configured number of candles, oldest first with
// sequence indices assigned. Exchange failures fall back to the synthetic
// series; only context cancellation is returned as an error.
func (c *Collector) Collect(ctx context.Context) ([]strategy.Candle, error) {
	log.Printf("🔍 collecting %d candles | %s %s", c.limit, c.symbol, c.timeframe)

	var rows []okx.CandleRow
	var after int64
	for len(rows) < c.limit {
		batch := c.limit - len(rows)
		if batch > maxPerRequest {
			batch = maxPerRequest
		}
		page, err := c.fetchPage(ctx, batch, after)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("⚠️  OKX fetch failed (%v), using synthetic data", err)
			return c.Synthetic(c.limit), nil
		}
		if len(page) == 0 {
			break
		}
		rows = append(rows, page...)
		log.Printf("   page: +%d candles (total %d)", len(page), len(rows))
		if len(page) < maxPerRequest {
			break
		}
		after = page[len(page)-1].Ts // oldest timestamp received
	}
	if len(rows) == 0 {
		log.Printf("⚠️  no data from OKX, using synthetic data")
		return c.Synthetic(c.limit), nil
	}

	return c.assemble(rows), nil
}

func (c *Collector) fetchPage(ctx context.Context, batch int, after int64) ([]okx.CandleRow, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		page, err := c.market.Candles(ctx, c.symbol, c.timeframe, batch, after)
		if err == nil {
			return page, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// assemble reverses newest-first pages into ascending order, drops duplicate
// timestamps, trims to the limit, and assigns sequence indices.
func (c *Collector) assemble(rows []okx.CandleRow) []strategy.Candle {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	out := make([]strategy.Candle, 0, len(rows))
	var lastTs int64 = -1
	for _, r := range rows {
		if r.Ts <= lastTs {
			continue
		}
		lastTs = r.Ts
		out = append(out, strategy.Candle{
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
			Timestamp: time.UnixMilli(r.Ts).UTC(),
		})
	}
	if len(out) > c.limit {
		out = out[len(out)-c.limit:]
	}
	for i := range out {
		out[i].Seq = i + 1
	}
	log.Printf("✅ %d candles | %s → %s", len(out),
		out[0].Timestamp.Format(time.RFC3339), out[len(out)-1].Timestamp.Format(time.RFC3339))
	return out
}

// Synthetic builds a deterministic random-walk series for development and
// fallback runs.
func (c *Collector) Synthetic(n int) []strategy.Candle {
	log.Printf("📊 generating %d synthetic candles", n)
	rng := rand.New(rand.NewSource(c.mockSeed))

	const (
		basePrice = 2500.0
		vol       = 0.012
	)
	step := c.BarDuration()
	end := time.Now().UTC().Truncate(step)
	out := make([]strategy.Candle, 0, n)
	p := basePrice
	for i := 0; i < n; i++ {
		chg := (rng.Float64()*2 - 1) * vol
		p = p * (1 + chg)
		if p < basePrice*0.5 {
			p = basePrice * 0.5
		}
		hi := p * (1 + rng.Float64()*0.004)
		lo := p * (1 - rng.Float64()*0.004)
		cl := p * (1 + (rng.Float64()*2-1)*0.002)
		if cl > hi {
			hi = cl
		}
		if cl < lo {
			lo = cl
		}
		out = append(out, strategy.Candle{
			Open:      p,
			High:      hi,
			Low:       lo,
			Close:     cl,
			Volume:    5000 + rng.Float64()*10000,
			Timestamp: end.Add(-step * time.Duration(n-i)),
			Seq:       i + 1,
		})
	}
	return out
}
