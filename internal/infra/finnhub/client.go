package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"exchange_pro/internal/domain"
	"exchange_pro/internal/infra"
)

// DefaultRestURL is the public Finnhub REST endpoint
const DefaultRestURL = "https://finnhub.io/api/v1"

// Outcome classifies a provider call
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeUnauthorized
	OutcomeRateLimited
	OutcomeMalformed
	OutcomeTransportError
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of a provider call. Payload is set only for OutcomeOK.
type Result struct {
	Outcome Outcome
	Payload []byte
	Status  int
	Cached  bool
	Err     error
}

// Client performs cache-checked GET requests against the Finnhub REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *Cache
	metrics    *infra.Metrics

	mu     sync.RWMutex
	apiKey string
}

// NewClient creates a client. An empty baseURL uses DefaultRestURL; a nil metrics uses the global one.
func NewClient(baseURL, apiKey string, cache *Cache, timeout time.Duration, metrics *infra.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultRestURL
	}
	if cache == nil {
		cache = NewCache(DefaultCacheWindow, nil)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		metrics:    metrics,
		apiKey:     apiKey,
	}
}

// SetAPIKey replaces the credential used for subsequent requests
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

// HasAPIKey reports whether a credential is configured
func (c *Client) HasAPIKey() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != ""
}

// requestURL builds the full request URL. Query parameters are encoded sorted by key,
// so the same logical request always yields the same cache key.
func (c *Client) requestURL(endpoint string, params url.Values) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	c.mu.RLock()
	q.Set("token", c.apiKey)
	c.mu.RUnlock()
	return c.baseURL + endpoint + "?" + q.Encode()
}

// Get fetches endpoint, serving from the cache when a fresh entry exists.
// Only 2xx responses with a valid JSON body are cached.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) Result {
	if !c.HasAPIKey() {
		return Result{Outcome: OutcomeSkipped}
	}

	key := c.requestURL(endpoint, params)
	if payload, ok := c.cache.Get(key); ok {
		c.metrics.IncrementCacheHits()
		return Result{Outcome: OutcomeOK, Payload: payload, Status: http.StatusOK, Cached: true}
	}
	c.metrics.IncrementCacheMisses()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return Result{Outcome: OutcomeTransportError, Err: domain.NewFatalNetworkError(endpoint, err)}
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.IncrementFetchErrors()
		return Result{Outcome: OutcomeTransportError, Err: domain.NewNetworkError(endpoint, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.metrics.IncrementFetchErrors()
		return Result{Outcome: OutcomeUnauthorized, Status: resp.StatusCode, Err: domain.ErrUnauthorized}
	case resp.StatusCode == http.StatusTooManyRequests:
		c.metrics.IncrementFetchErrors()
		return Result{Outcome: OutcomeRateLimited, Status: resp.StatusCode, Err: domain.ErrRateLimited}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.metrics.IncrementFetchErrors()
		return Result{
			Outcome: OutcomeMalformed,
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("%w: status %d", domain.ErrMalformedResponse, resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.IncrementFetchErrors()
		return Result{Outcome: OutcomeTransportError, Status: resp.StatusCode, Err: domain.NewNetworkError(endpoint, err)}
	}
	if !json.Valid(body) {
		c.metrics.IncrementFetchErrors()
		return Result{
			Outcome: OutcomeMalformed,
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("%w: invalid json", domain.ErrMalformedResponse),
		}
	}

	c.cache.Put(key, body)
	slog.Debug("Finnhub fetch", slog.String("endpoint", endpoint), slog.Int("bytes", len(body)))
	return Result{Outcome: OutcomeOK, Payload: body, Status: resp.StatusCode}
}
