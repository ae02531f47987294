// Package market fetches token market data from DexScreener.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"smartmoney-monitor/internal/classifier"
	"smartmoney-monitor/internal/domain"
)

// DefaultBaseURL is the public DexScreener API root.
const DefaultBaseURL = "https://api.dexscreener.com"

// solPriceTTL bounds how often the SOL price is re-fetched. Token
// snapshots are never cached; the price is shared noise.
const solPriceTTL = 60 * time.Second

// ErrUnknownToken is returned when DexScreener has no pairs for a mint.
var ErrUnknownToken = errors.New("market: unknown token")

// DexScreener looks up token snapshots by mint. Snapshots come from the
// highest-liquidity Solana pair.
type DexScreener struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger

	priceMu        sync.Mutex
	cachedPrice    float64
	priceFetchedAt time.Time
}

// Option configures DexScreener.
type Option func(*DexScreener)

// WithBaseURL overrides the API root. Test hook.
func WithBaseURL(url string) Option {
	return func(d *DexScreener) { d.baseURL = url }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *DexScreener) { d.client = client }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *DexScreener) { d.logger = logger }
}

// New creates a DexScreener client.
func New(opts ...Option) *DexScreener {
	d := &DexScreener{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  log.New(log.Writer(), "[market] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// flexFloat tolerates DexScreener returning numbers as strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type pairsResponse struct {
	Pairs []pair `json:"pairs"`
}

type pair struct {
	ChainID   string    `json:"chainId"`
	DexID     string    `json:"dexId"`
	PairAddr  string    `json:"pairAddress"`
	PriceUSD  flexFloat `json:"priceUsd"`
	MarketCap flexFloat `json:"marketCap"`
	FDV       flexFloat `json:"fdv"`
	BaseToken struct {
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
	} `json:"baseToken"`
	Liquidity struct {
		USD flexFloat `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 flexFloat `json:"h24"`
	} `json:"volume"`
	Txns struct {
		H24 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
}

// TokenSnapshot fetches current market data for a mint. Never cached:
// the engine depends on decision-time freshness.
func (d *DexScreener) TokenSnapshot(ctx context.Context, mint string) (*domain.TokenSnapshot, error) {
	best, err := d.bestPair(ctx, mint)
	if err != nil {
		return nil, err
	}

	mcap := float64(best.MarketCap)
	if mcap == 0 {
		mcap = float64(best.FDV)
	}
	return &domain.TokenSnapshot{
		Symbol:    best.BaseToken.Symbol,
		Name:      best.BaseToken.Name,
		MarketCap: mcap,
		PriceUSD:  float64(best.PriceUSD),
		Liquidity: float64(best.Liquidity.USD),
		Volume24h: float64(best.Volume.H24),
		Buys24h:   best.Txns.H24.Buys,
		Sells24h:  best.Txns.H24.Sells,
		PairAddr:  best.PairAddr,
		DexID:     best.DexID,
	}, nil
}

// SolPrice returns the current SOL price in USD, from the wSOL pair
// set. Cached for a minute; a failed refresh falls back to the last
// known price when one exists.
func (d *DexScreener) SolPrice(ctx context.Context) (float64, error) {
	d.priceMu.Lock()
	defer d.priceMu.Unlock()

	if d.cachedPrice > 0 && time.Since(d.priceFetchedAt) < solPriceTTL {
		return d.cachedPrice, nil
	}

	best, err := d.bestPair(ctx, classifier.WSOLMint)
	if err != nil {
		if d.cachedPrice > 0 {
			d.logger.Printf("sol price refresh failed, using stale value: %v", err)
			return d.cachedPrice, nil
		}
		return 0, err
	}
	price := float64(best.PriceUSD)
	if price <= 0 {
		if d.cachedPrice > 0 {
			return d.cachedPrice, nil
		}
		return 0, fmt.Errorf("market: no usable sol price")
	}

	d.cachedPrice = price
	d.priceFetchedAt = time.Now()
	return price, nil
}

// bestPair fetches the pair list for a mint and returns the Solana pair
// with the deepest liquidity. Non-Solana pairs are considered only when
// no Solana pair exists.
func (d *DexScreener) bestPair(ctx context.Context, mint string) (*pair, error) {
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dexscreener status %d", resp.StatusCode)
	}

	var parsed pairsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal pairs: %w", err)
	}
	if len(parsed.Pairs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, mint)
	}

	candidates := make([]*pair, 0, len(parsed.Pairs))
	for i := range parsed.Pairs {
		if parsed.Pairs[i].ChainID == "solana" {
			candidates = append(candidates, &parsed.Pairs[i])
		}
	}
	if len(candidates) == 0 {
		for i := range parsed.Pairs {
			candidates = append(candidates, &parsed.Pairs[i])
		}
	}

	best := candidates[0]
	for _, p := range candidates[1:] {
		if p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	return best, nil
}
