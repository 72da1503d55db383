package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// PriceFeed supplies the BCH/USD rate used to denominate on-chain intents.
type PriceFeed interface {
	BCHPriceUSD(ctx context.Context) (float64, error)
}

// StaticPriceFeed returns a fixed configured rate.
type StaticPriceFeed struct {
	Price float64
}

func (f StaticPriceFeed) BCHPriceUSD(context.Context) (float64, error) {
	if f.Price <= 0 {
		return 0, fmt.Errorf("bch price is not configured")
	}
	return f.Price, nil
}

// HTTPPriceFeed fetches the rate from a JSON endpoint of the form
// {"bitcoin-cash": {"usd": 312.45}} and caches it briefly so the reconciliation
// path does not hammer the upstream ticker.
type HTTPPriceFeed struct {
	URL      string
	Client   *http.Client
	Fallback float64
	CacheTTL time.Duration

	mu        sync.Mutex
	cached    float64
	fetchedAt time.Time
}

func (f *HTTPPriceFeed) BCHPriceUSD(ctx context.Context) (float64, error) {
	f.mu.Lock()
	ttl := f.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if f.cached > 0 && time.Since(f.fetchedAt) < ttl {
		price := f.cached
		f.mu.Unlock()
		return price, nil
	}
	f.mu.Unlock()

	price, err := f.fetch(ctx)
	if err != nil {
		if f.Fallback > 0 {
			return f.Fallback, nil
		}
		return 0, err
	}

	f.mu.Lock()
	f.cached = price
	f.fetchedAt = time.Now()
	f.mu.Unlock()
	return price, nil
}

func (f *HTTPPriceFeed) fetch(ctx context.Context) (float64, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("build price request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch bch price: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bch price endpoint returned %d", resp.StatusCode)
	}

	var payload map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode bch price: %w", err)
	}
	entry, ok := payload["bitcoin-cash"]
	if !ok || entry.USD <= 0 {
		return 0, fmt.Errorf("bch price missing from response")
	}
	return entry.USD, nil
}
