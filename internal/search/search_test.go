package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaelis-ai/vaelis-api/internal/config"
	"github.com/vaelis-ai/vaelis-api/internal/generation"
	"github.com/vaelis-ai/vaelis-api/internal/platform/logger"
)

func newSearchServer(t *testing.T, calls *atomic.Int32, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer search-key", r.Header.Get("Authorization"))
		assert.Equal(t, "golang generics", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("size"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, url, key string, ttlSeconds int) *Client {
	t.Helper()
	log, _ := logger.GetTestLogger(t)
	client, err := NewClient(log, config.SearchConfig{APIURL: url, APIKey: key, CacheTTLSeconds: ttlSeconds})
	require.NoError(t, err)
	return client
}

func TestSearch_NotConfigured(t *testing.T) {
	client := newTestClient(t, "", "", 300)

	results, err := client.Search(context.Background(), "anything")

	assert.Nil(t, results)
	assert.True(t, errors.Is(err, ErrNotConfigured))
	assert.False(t, client.Configured())
}

func TestSearch_NormalizesAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := newSearchServer(t, &calls, http.StatusOK, map[string]any{
		"items": []map[string]any{
			{"title": "Generics", "url": "https://go.dev/doc/tutorial/generics", "snippet": "Tutorial"},
			{"title": "No URL", "snippet": "skipped"},
			{"title": "Generics again", "url": "https://go.dev/doc/tutorial/generics?ref=x", "snippet": "dup"},
			{"title": "Blog", "url": "https://go.dev/blog/intro-generics", "snippet": "Intro", "timestamp": "2022-03-22"},
		},
	})
	client := newTestClient(t, srv.URL, "search-key", 300)

	results, err := client.Search(context.Background(), "golang generics")
	require.NoError(t, err)
	require.Len(t, results.Items, 2)
	assert.Equal(t, "Generics", results.Items[0].Title)
	assert.Equal(t, "2022-03-22", results.Items[1].Timestamp)

	assert.Equal(t, []generation.SourceItem{
		{Title: "Generics", URL: "https://go.dev/doc/tutorial/generics", Snippet: "Tutorial"},
		{Title: "Blog", URL: "https://go.dev/blog/intro-generics", Snippet: "Intro"},
	}, results.Sources())

	_, err = client.Search(context.Background(), "golang generics")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second lookup is served from cache")
}

func TestSearch_CacheDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := newSearchServer(t, &calls, http.StatusOK, map[string]any{"items": []any{}})
	client := newTestClient(t, srv.URL, "search-key", 0)

	_, err := client.Search(context.Background(), "golang generics")
	require.NoError(t, err)
	_, err = client.Search(context.Background(), "golang generics")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestSearch_UpstreamError(t *testing.T) {
	var calls atomic.Int32
	srv := newSearchServer(t, &calls, http.StatusUnauthorized, map[string]any{"error": "bad key"})
	client := newTestClient(t, srv.URL, "search-key", 300)

	results, err := client.Search(context.Background(), "golang generics")

	assert.Nil(t, results)
	assert.True(t, errors.Is(err, ErrUpstream))

	_, _ = client.Search(context.Background(), "golang generics")
	assert.Equal(t, int32(2), calls.Load(), "failures are not cached")
}

func TestNormalize_Limits(t *testing.T) {
	items := make([]rawItem, 0, 12)
	for _, path := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		items = append(items, rawItem{Title: path, URL: "https://example.com/" + path})
	}

	out := normalize(items)

	require.Len(t, out.Items, 5)
	assert.Equal(t, "a", out.Items[0].Title)
	assert.Equal(t, "e", out.Items[4].Title)
}

func TestNormalize_OnlyInspectsFirstTen(t *testing.T) {
	items := make([]rawItem, 0, 11)
	for i := 0; i < 10; i++ {
		items = append(items, rawItem{Title: "dup", URL: "https://example.com/same"})
	}
	items = append(items, rawItem{Title: "late", URL: "https://example.com/late"})

	out := normalize(items)

	require.Len(t, out.Items, 1)
	assert.Equal(t, "dup", out.Items[0].Title)
}

func TestResultCache_ExpiredQueriesAreRemoved(t *testing.T) {
	cache := newResultCache(20*time.Millisecond, 100000)

	for i := 0; i < 1000; i++ {
		cache.put(fmt.Sprintf("query %d", i), &Results{Items: []Item{{Title: "x"}}})
	}
	_, ok := cache.get("query 0")
	require.True(t, ok)

	require.Eventually(t, func() bool { return cache.len() == 0 }, 2*time.Second, 10*time.Millisecond,
		"expired queries must be dropped without being read again")
	_, ok = cache.get("query 0")
	assert.False(t, ok)
}

func TestResultCache_CapacityBound(t *testing.T) {
	cache := newResultCache(time.Hour, 3)

	for i := 0; i < 5; i++ {
		cache.put(fmt.Sprintf("q%d", i), &Results{})
	}

	assert.Equal(t, 3, cache.len())
	_, ok := cache.get("q0")
	assert.False(t, ok, "oldest query is evicted")
	_, ok = cache.get("q4")
	assert.True(t, ok)
}

func TestResultCache_Disabled(t *testing.T) {
	cache := newResultCache(0, 10)

	cache.put("q", &Results{})
	_, ok := cache.get("q")

	assert.False(t, ok)
	assert.Equal(t, 0, cache.len())
}

func TestResultCache_DefaultCapacity(t *testing.T) {
	cache := newResultCache(time.Hour, 0)

	for i := 0; i < DefaultCacheMaxEntries+10; i++ {
		cache.put(fmt.Sprintf("q%d", i), &Results{})
	}

	assert.Equal(t, DefaultCacheMaxEntries, cache.len())
}
