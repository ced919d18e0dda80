// Package polymarket is the REST client for the Polymarket Gamma API,
// which provides market discovery and metadata.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/quantfold/sibyl/internal/domain"
)

// GammaConfig configures the Gamma API client.
type GammaConfig struct {
	BaseURL   string // Gamma API root, e.g. "https://gamma-api.polymarket.com"
	PageSize  int
	MaxPages  int
	RateLimit float64 // requests per second
	Timeout   time.Duration
}

// GammaClient fetches contract snapshots from the Gamma API. Requests are
// paced with a token-bucket limiter so a full universe scan stays under the
// API's rate limits.
type GammaClient struct {
	cfg        GammaConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGammaClient creates a Gamma API client.
func NewGammaClient(cfg GammaConfig) *GammaClient {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &GammaClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
}

// ListContracts returns up to limit active contracts starting at offset.
func (g *GammaClient) ListContracts(ctx context.Context, limit, offset int) ([]domain.Contract, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("order", "volume")
	params.Set("ascending", "false")

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list contracts: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	now := time.Now().UTC()
	contracts := make([]domain.Contract, 0, len(apiMarkets))
	for i := range apiMarkets {
		contracts = append(contracts, apiMarkets[i].ToContract(now))
	}
	return contracts, nil
}

// FetchUniverse pages through the markets endpoint up to the configured
// page cap and returns the combined snapshot. A short page ends the scan
// early.
func (g *GammaClient) FetchUniverse(ctx context.Context) ([]domain.Contract, error) {
	var universe []domain.Contract
	for page := 0; page < g.cfg.MaxPages; page++ {
		contracts, err := g.ListContracts(ctx, g.cfg.PageSize, page*g.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		universe = append(universe, contracts...)
		if len(contracts) < g.cfg.PageSize {
			break
		}
	}
	return universe, nil
}

// GetContract re-fetches a single contract by ID.
func (g *GammaClient) GetContract(ctx context.Context, id string) (domain.Contract, error) {
	body, err := g.doGet(ctx, "/markets/"+url.PathEscape(id))
	if err != nil {
		return domain.Contract{}, fmt.Errorf("polymarket/gamma: get contract %s: %w", id, err)
	}

	var apiMarket APIMarket
	if err := json.Unmarshal(body, &apiMarket); err != nil {
		return domain.Contract{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}
	return apiMarket.ToContract(time.Now().UTC()), nil
}

// doGet sends a rate-limited, unauthenticated GET request.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, body)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, body)
	}
}

var _ domain.MarketSource = (*GammaClient)(nil)
