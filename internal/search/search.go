package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vaelis-ai/vaelis-api/internal/config"
	"github.com/vaelis-ai/vaelis-api/internal/generation"
	"github.com/vaelis-ai/vaelis-api/internal/platform/logger"
	"github.com/vaelis-ai/vaelis-api/internal/platform/metrics"
	"github.com/vaelis-ai/vaelis-api/internal/redact"
)

const (
	// RequestTimeout bounds a single search call.
	RequestTimeout = 15 * time.Second

	requestSize  = 5
	maxInspected = 10
	maxItems     = 5
)

var (
	// ErrNotConfigured is returned when no search API key is set.
	ErrNotConfigured = errors.New("search service not configured")

	// ErrUpstream wraps non-2xx responses and undecodable bodies.
	ErrUpstream = errors.New("search upstream error")
)

// Item is one normalized search hit.
type Item struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Snippet   string `json:"snippet"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Results is the normalized answer to a query.
type Results struct {
	Items []Item `json:"items"`
}

// Sources converts the results into prompt sources.
func (r *Results) Sources() []generation.SourceItem {
	if r == nil {
		return nil
	}
	sources := make([]generation.SourceItem, 0, len(r.Items))
	for _, it := range r.Items {
		sources = append(sources, generation.SourceItem{Title: it.Title, URL: it.URL, Snippet: it.Snippet})
	}
	return sources
}

// Searcher is implemented by Client.
type Searcher interface {
	Search(ctx context.Context, query string) (*Results, error)
}

// Client calls the search API.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	endpoint   string
	apiKey     string
	cache      *resultCache
}

var _ Searcher = (*Client)(nil)

// NewClient creates a Client. An empty cfg.APIKey yields a client whose
// Search always returns ErrNotConfigured.
func NewClient(log *slog.Logger, cfg config.SearchConfig) (*Client, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.APIKey != "" && cfg.APIURL == "" {
		return nil, errors.New("search api url cannot be empty")
	}

	return &Client{
		logger:     log,
		httpClient: &http.Client{Timeout: RequestTimeout},
		endpoint:   cfg.APIURL,
		apiKey:     cfg.APIKey,
		cache:      newResultCache(cfg.CacheTTL(), cfg.CacheMaxEntries),
	}, nil
}

// Configured reports whether the client has a credential.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Search returns up to five deduplicated results for query.
func (c *Client) Search(ctx context.Context, query string) (*Results, error) {
	if !c.Configured() {
		metrics.SearchRequests.WithLabelValues("not_configured").Inc()
		return nil, ErrNotConfigured
	}

	log := logger.FromContextOrDefault(ctx, c.logger)

	if cached, ok := c.cache.get(query); ok {
		metrics.SearchRequests.WithLabelValues("cache_hit").Inc()
		log.DebugContext(ctx, "search cache hit", "items", len(cached.Items))
		return cached, nil
	}

	results, err := c.fetch(ctx, query)
	if err != nil {
		metrics.SearchRequests.WithLabelValues("error").Inc()
		log.WarnContext(ctx, "search request failed", "error", redact.ErrorWithSecrets(err, c.apiKey))
		return nil, err
	}

	c.cache.put(query, results)
	metrics.SearchRequests.WithLabelValues("success").Inc()
	log.DebugContext(ctx, "search request succeeded", "items", len(results.Items))
	return results, nil
}

type rawItem struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Snippet   string `json:"snippet"`
	Timestamp string `json:"timestamp"`
}

type rawResponse struct {
	Items []rawItem `json:"items"`
}

func (c *Client) fetch(ctx context.Context, query string) (*Results, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("size", fmt.Sprint(requestSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var raw rawResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrUpstream, err)
	}

	return normalize(raw.Items), nil
}

// normalize keeps items with a URL, drops repeats of the same host and path,
// and returns at most maxItems taken from the first maxInspected entries.
func normalize(items []rawItem) *Results {
	if len(items) > maxInspected {
		items = items[:maxInspected]
	}

	out := &Results{Items: make([]Item, 0, maxItems)}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.URL == "" {
			continue
		}
		key := it.URL
		if parsed, err := url.Parse(it.URL); err == nil {
			key = parsed.Host + parsed.Path
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		out.Items = append(out.Items, Item(it))
		if len(out.Items) >= maxItems {
			break
		}
	}
	return out
}
