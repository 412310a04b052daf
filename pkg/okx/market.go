package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// MarketDataClient hits the public OKX market endpoints. No credentials.
type MarketDataClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewMarketDataClient(baseURL string) *MarketDataClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &MarketDataClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CandleRow is one raw kline: millisecond timestamp plus OHLCV.
type CandleRow struct {
	Ts     int64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Candles fetches up to limit klines for instID at the given bar size.
// OKX returns newest first; after, when nonzero, pages backward from that
// millisecond timestamp (exclusive).
func (m *MarketDataClient) Candles(ctx context.Context, instID, bar string, limit int, after int64) ([]CandleRow, error) {
	params := url.Values{
		"instId": {instID},
		"bar":    {bar},
		"limit":  {strconv.Itoa(limit)},
	}
	if after != 0 {
		params.Set("after", strconv.FormatInt(after, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		m.baseURL+"/api/v5/market/candles?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	res, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("okx: decode candles: %w", err)
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx: candles returned code %s: %s", resp.Code, resp.Msg)
	}

	var rows [][]string
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		return nil, fmt.Errorf("okx: decode candle rows: %w", err)
	}
	out := make([]CandleRow, 0, len(rows))
	for _, r := range rows {
		if len(r) < 6 {
			continue
		}
		ts, err := strconv.ParseInt(r[0], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, CandleRow{
			Ts:     ts,
			Open:   parseFloat(r[1]),
			High:   parseFloat(r[2]),
			Low:    parseFloat(r[3]),
			Close:  parseFloat(r[4]),
			Volume: parseFloat(r[5]),
		})
	}
	return out, nil
}
