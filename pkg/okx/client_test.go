package okx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignVectors(t *testing.T) {
	c := New(Config{SecretKey: "test-secret"})
	ts := "2024-01-02T03:04:05.678Z"

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   string
	}{
		{
			name:   "signed get with query",
			method: "GET",
			path:   "/api/v5/account/balance?ccy=USDT",
			want:   "4utTqdC0Eig7uEX4OfilmbQxVwNk5qSUOZ2g0DNB3BM=",
		},
		{
			name:   "signed post with body",
			method: "POST",
			path:   "/api/v5/trade/order",
			body:   `{"a":"1"}`,
			want:   "z7Fsdk2DkrnewTUl3PYX7lhRwElorLy/VIiilYnJpCs=",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.sign(ts, tt.method, tt.path, tt.body); got != tt.want {
				t.Errorf("sign = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTimestampFormat(t *testing.T) {
	c := New(Config{})
	c.now = func() time.Time {
		return time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC)
	}
	if got := c.timestamp(); got != "2024-01-02T03:04:05.678Z" {
		t.Errorf("timestamp = %q", got)
	}
}

func TestRequestCarriesAuthHeaders(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", SecretKey: "s", Passphrase: "p", BaseURL: srv.URL, InstID: "ETH-USDT-SWAP"})
	if _, err := c.Position(context.Background()); err != nil {
		t.Fatalf("Position: %v", err)
	}
	for _, h := range []string{"Ok-Access-Key", "Ok-Access-Sign", "Ok-Access-Timestamp", "Ok-Access-Passphrase"} {
		if gotHeaders.Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestBalanceFallbackChain(t *testing.T) {
	tests := []struct {
		name string
		body string
		want float64
	}{
		{
			name: "availBal direct",
			body: `{"code":"0","data":[{"totalEq":"900","details":[{"ccy":"USDT","availBal":"120.5","availEq":"300"}]}]}`,
			want: 120.5,
		},
		{
			name: "availEq when availBal zero",
			body: `{"code":"0","data":[{"totalEq":"900","details":[{"ccy":"USDT","availBal":"0","availEq":"300.25"}]}]}`,
			want: 300.25,
		},
		{
			name: "totalEq when no usable detail",
			body: `{"code":"0","data":[{"totalEq":"900.75","details":[{"ccy":"USDT","availBal":"0","availEq":"0"}]}]}`,
			want: 900.75,
		},
		{
			name: "ignores other currencies",
			body: `{"code":"0","data":[{"totalEq":"55","details":[{"ccy":"BTC","availBal":"1","availEq":"1"}]}]}`,
			want: 55,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			c := New(Config{BaseURL: srv.URL})
			got, err := c.Balance(context.Background())
			if err != nil {
				t.Fatalf("Balance: %v", err)
			}
			if got != tt.want {
				t.Errorf("Balance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPositionFlatAndOpen(t *testing.T) {
	body := `{"code":"0","data":[{"pos":"0","posSide":"long","avgPx":"100"},{"pos":"-3","posSide":"net","avgPx":"2500.5"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, InstID: "ETH-USDT-SWAP"})
	p, err := c.Position(context.Background())
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if p == nil || p.Side != "short" || p.Size != 3 || p.AvgPx != 2500.5 {
		t.Fatalf("Position = %+v, want short 3 @ 2500.5", p)
	}

	body = `{"code":"0","data":[]}`
	p, err = c.Position(context.Background())
	if err != nil {
		t.Fatalf("Position flat: %v", err)
	}
	if p != nil {
		t.Errorf("Position = %+v, want nil when flat", p)
	}
}

func TestMarkPriceFallsBackToTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v5/public/mark-price":
			w.Write([]byte(`{"code":"51001","msg":"instrument not found","data":[]}`))
		case "/api/v5/market/ticker":
			w.Write([]byte(`{"code":"0","data":[{"last":"2480.15"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, InstID: "ETH-USDT-SWAP"})
	px, err := c.MarkPrice(context.Background())
	if err != nil {
		t.Fatalf("MarkPrice: %v", err)
	}
	if px != 2480.15 {
		t.Errorf("MarkPrice = %v, want 2480.15", px)
	}
}

func TestOrderPlacementAndFillLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v5/public/instruments":
			w.Write([]byte(`{"code":"0","data":[{"ctVal":"0.01"}]}`))
		case r.URL.Path == "/api/v5/trade/order" && r.Method == http.MethodPost:
			w.Write([]byte(`{"code":"0","data":[{"ordId":"12345","sCode":"0"}]}`))
		case r.URL.Path == "/api/v5/trade/order" && r.Method == http.MethodGet:
			w.Write([]byte(`{"code":"0","data":[{"avgPx":"2501.3"}]}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, InstID: "ETH-USDT-SWAP"})
	ordID, err := c.OpenLong(context.Background(), 0.05)
	if err != nil {
		t.Fatalf("OpenLong: %v", err)
	}
	if ordID != "12345" {
		t.Errorf("ordID = %s, want 12345", ordID)
	}
	px, err := c.FillPrice(context.Background(), ordID)
	if err != nil {
		t.Fatalf("FillPrice: %v", err)
	}
	if px != 2501.3 {
		t.Errorf("FillPrice = %v, want 2501.3", px)
	}
}

func TestOrderErrorSurfacesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v5/public/instruments" {
			w.Write([]byte(`{"code":"0","data":[{"ctVal":"0.01"}]}`))
			return
		}
		w.Write([]byte(`{"code":"51008","msg":"insufficient balance","data":[]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, InstID: "ETH-USDT-SWAP"})
	if _, err := c.OpenShort(context.Background(), 0.05); err == nil {
		t.Fatal("expected an error for rejected order")
	}
}
