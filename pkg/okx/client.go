package okx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Config holds OKX credentials and routing.
type Config struct {
	APIKey     string
	SecretKey  string
	Passphrase string
	BaseURL    string // defaults to the production endpoint
	InstID     string // e.g. ETH-USDT-SWAP
	Simulated  bool   // demo-trading header
}

const defaultBaseURL = "https://www.okx.com"

// Client is an OKX v5 REST client for the account and trade endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	posMode    string
	now        func() time.Time
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// 20 requests burst, 10/s sustained, well inside OKX account limits
		limiter: rate.NewLimiter(10, 20),
		posMode: "long_short_mode",
		now:     time.Now,
	}
}

// apiResponse is the OKX v5 envelope. Code "0" means success.
type apiResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// sign produces the OK-ACCESS-SIGN value: base64 HMAC-SHA256 over
// timestamp+method+requestPath+body.
func (c *Client) sign(ts, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(ts + method + path + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// timestamp is ISO-8601 UTC with millisecond precision, as OKX requires.
func (c *Client) timestamp() string {
	return c.now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func (c *Client) do(ctx context.Context, method, path, body string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}

	ts := c.timestamp()
	req.Header.Set("OK-ACCESS-KEY", c.cfg.APIKey)
	req.Header.Set("OK-ACCESS-SIGN", c.sign(ts, method, path, body))
	req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.cfg.Passphrase)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Simulated {
		req.Header.Set("x-simulated-trading", "1")
	}

	res, err := c.httpClient.Do(req)
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
		return nil, fmt.Errorf("okx: decode %s: %w", path, err)
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx: %s returned code %s: %s", path, resp.Code, resp.Msg)
	}
	return resp.Data, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, path, "")
}

func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, path, string(b))
}

// Balance returns the available USDT balance of the unified account,
// falling back from availBal to availEq to the account's total equity.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	data, err := c.get(ctx, "/api/v5/account/balance", url.Values{"ccy": {"USDT"}})
	if err != nil {
		return 0, err
	}
	var accounts []struct {
		TotalEq string `json:"totalEq"`
		Details []struct {
			Ccy      string `json:"ccy"`
			AvailBal string `json:"availBal"`
			AvailEq  string `json:"availEq"`
		} `json:"details"`
	}
	if err := json.Unmarshal(data, &accounts); err != nil || len(accounts) == 0 {
		return 0, fmt.Errorf("okx: unexpected balance payload")
	}
	for _, d := range accounts[0].Details {
		if d.Ccy != "USDT" {
			continue
		}
		if v := parseFloat(d.AvailBal); v > 0 {
			return v, nil
		}
		// availEq includes unrealized cross-margin PnL
		if v := parseFloat(d.AvailEq); v > 0 {
			return v, nil
		}
	}
	if v := parseFloat(accounts[0].TotalEq); v > 0 {
		log.Printf("ℹ️  using totalEq=%.4f USDT (unified account)", v)
		return v, nil
	}
	return 0, nil
}

// Position describes the open position on the configured instrument.
type Position struct {
	Side  string  // "long" or "short"
	Size  float64 // contracts, absolute
	AvgPx float64
}

// Position returns the open position, or nil when flat.
func (c *Client) Position(ctx context.Context) (*Position, error) {
	data, err := c.get(ctx, "/api/v5/account/positions",
		url.Values{"instType": {"SWAP"}, "instId": {c.cfg.InstID}})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Pos     string `json:"pos"`
		PosSide string `json:"posSide"`
		AvgPx   string `json:"avgPx"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	for _, p := range rows {
		sz := parseFloat(p.Pos)
		if sz == 0 {
			continue
		}
		side := p.PosSide
		if side == "net" || side == "" {
			side = "long"
			if sz < 0 {
				side = "short"
			}
		}
		if sz < 0 {
			sz = -sz
		}
		return &Position{Side: side, Size: sz, AvgPx: parseFloat(p.AvgPx)}, nil
	}
	return nil, nil
}

// MarkPrice returns the instrument's mark price, falling back to the last
// traded price from the ticker.
func (c *Client) MarkPrice(ctx context.Context) (float64, error) {
	data, err := c.get(ctx, "/api/v5/public/mark-price",
		url.Values{"instType": {"SWAP"}, "instId": {c.cfg.InstID}})
	if err == nil {
		var rows []struct {
			MarkPx string `json:"markPx"`
		}
		if json.Unmarshal(data, &rows) == nil && len(rows) > 0 {
			if v := parseFloat(rows[0].MarkPx); v > 0 {
				return v, nil
			}
		}
	}
	data, err = c.get(ctx, "/api/v5/market/ticker", url.Values{"instId": {c.cfg.InstID}})
	if err != nil {
		return 0, err
	}
	var rows []struct {
		Last string `json:"last"`
	}
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return 0, fmt.Errorf("okx: unexpected ticker payload")
	}
	return parseFloat(rows[0].Last), nil
}

// ContractValue returns the instrument's contract value in base currency
// (0.01 ETH per contract for ETH-USDT-SWAP).
func (c *Client) ContractValue(ctx context.Context) (float64, error) {
	data, err := c.get(ctx, "/api/v5/public/instruments",
		url.Values{"instType": {"SWAP"}, "instId": {c.cfg.InstID}})
	if err != nil {
		return 0, err
	}
	var rows []struct {
		CtVal string `json:"ctVal"`
	}
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return 0, fmt.Errorf("okx: unexpected instruments payload")
	}
	return parseFloat(rows[0].CtVal), nil
}

// PositionMode returns the account's current position mode.
func (c *Client) PositionMode(ctx context.Context) (string, error) {
	data, err := c.get(ctx, "/api/v5/account/config", nil)
	if err != nil {
		return "", err
	}
	var rows []struct {
		PosMode string `json:"posMode"`
	}
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return "", fmt.Errorf("okx: unexpected config payload")
	}
	return rows[0].PosMode, nil
}

// Setup prepares the account: hedge position mode when the account allows
// it, current mode otherwise, and 1x cross leverage. Returns the available
// balance.
func (c *Client) Setup(ctx context.Context) (float64, error) {
	current, err := c.PositionMode(ctx)
	if err != nil {
		current = "net_mode"
	}
	log.Printf("ℹ️  position mode: %s", current)

	if _, err := c.post(ctx, "/api/v5/account/set-position-mode",
		map[string]string{"posMode": "long_short_mode"}); err == nil {
		c.posMode = "long_short_mode"
		log.Printf("✅ hedge mode (long_short_mode) enabled")
	} else {
		// account may not support it or holds an open position
		c.posMode = current
		log.Printf("⚠️  keeping position mode %s: %v", current, err)
	}

	if _, err := c.post(ctx, "/api/v5/account/set-leverage",
		map[string]string{"instId": c.cfg.InstID, "lever": "1", "mgnMode": "cross"}); err != nil {
		log.Printf("⚠️  set-leverage: %v", err)
	} else {
		log.Printf("✅ leverage 1x configured")
	}

	bal, err := c.Balance(ctx)
	if err != nil {
		return 0, err
	}
	log.Printf("✅ OKX connected | balance: %.4f USDT", bal)
	return bal, nil
}

// posSide maps a direction onto the account's position mode.
func (c *Client) posSide(long bool) string {
	if c.posMode == "net_mode" {
		return "net"
	}
	if long {
		return "long"
	}
	return "short"
}

// contracts converts a base-currency quantity into whole contracts, at
// least one.
func (c *Client) contracts(ctx context.Context, qty float64) int {
	ctVal, err := c.ContractValue(ctx)
	if err != nil || ctVal <= 0 {
		ctVal = 0.01
	}
	n := int(qty / ctVal)
	if n < 1 {
		n = 1
	}
	return n
}

func (c *Client) order(ctx context.Context, side, posSide string, contracts int) (string, error) {
	body := map[string]string{
		"instId":  c.cfg.InstID,
		"tdMode":  "cross",
		"side":    side,
		"posSide": posSide,
		"ordType": "market",
		"sz":      strconv.Itoa(contracts),
	}
	data, err := c.post(ctx, "/api/v5/trade/order", body)
	if err != nil {
		log.Printf("❌ ORDER %s/%s sz=%d failed: %v", side, posSide, contracts, err)
		return "", err
	}
	var rows []struct {
		OrdID string `json:"ordId"`
		SCode string `json:"sCode"`
	}
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return "", fmt.Errorf("okx: unexpected order payload")
	}
	log.Printf("✅ ORDER %s/%s sz=%d sCode=%s", side, posSide, contracts, rows[0].SCode)
	return rows[0].OrdID, nil
}

// OpenLong places a market buy for qty in base currency.
func (c *Client) OpenLong(ctx context.Context, qty float64) (string, error) {
	return c.order(ctx, "buy", c.posSide(true), c.contracts(ctx, qty))
}

// OpenShort places a market sell for qty in base currency.
func (c *Client) OpenShort(ctx context.Context, qty float64) (string, error) {
	return c.order(ctx, "sell", c.posSide(false), c.contracts(ctx, qty))
}

// CloseLong closes a long of qty in base currency.
func (c *Client) CloseLong(ctx context.Context, qty float64) (string, error) {
	return c.order(ctx, "sell", c.posSide(true), c.contracts(ctx, qty))
}

// CloseShort closes a short of qty in base currency.
func (c *Client) CloseShort(ctx context.Context, qty float64) (string, error) {
	return c.order(ctx, "buy", c.posSide(false), c.contracts(ctx, qty))
}

// FillPrice looks up the average fill price of an order.
func (c *Client) FillPrice(ctx context.Context, ordID string) (float64, error) {
	data, err := c.get(ctx, "/api/v5/trade/order",
		url.Values{"instId": {c.cfg.InstID}, "ordId": {ordID}})
	if err != nil {
		return 0, err
	}
	var rows []struct {
		AvgPx string `json:"avgPx"`
	}
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return 0, fmt.Errorf("okx: unexpected order lookup payload")
	}
	px := parseFloat(rows[0].AvgPx)
	if px <= 0 {
		return 0, fmt.Errorf("okx: order %s has no fill price yet", ordID)
	}
	return px, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
