package keepalive

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"
)

// Pinger keeps a free-tier deployment awake by hitting the service's own
// endpoints from several staggered loops. Hosts like Render idle a service
// after minutes without traffic.
type Pinger struct {
	baseURL   string
	endpoints []string
	intervals []time.Duration
	client    *http.Client
}

func New(baseURL string) *Pinger {
	return &Pinger{
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoints: []string{"/ping", "/health", "/"},
		intervals: []time.Duration{13 * time.Second, 23 * time.Second, 30 * time.Second},
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Start launches one ping loop per interval. The loops stop when ctx is
// cancelled. A pinger with no base URL does nothing.
func (p *Pinger) Start(ctx context.Context) {
	if p.baseURL == "" {
		return
	}
	for _, interval := range p.intervals {
		go p.loop(ctx, interval)
		log.Printf("ℹ️  keepalive loop started | every %s", interval)
	}
}

func (p *Pinger) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pingAll(ctx)
		}
	}
}

func (p *Pinger) pingAll(ctx context.Context) {
	for _, endpoint := range p.endpoints {
		url := p.baseURL + endpoint
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		res, err := p.client.Do(req)
		if err != nil {
			log.Printf("⚠️  keepalive ping %s failed: %v", url, err)
			continue
		}
		res.Body.Close()
	}
}
