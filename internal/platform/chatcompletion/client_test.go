package chatcompletion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaelis-ai/vaelis-api/internal/config"
	"github.com/vaelis-ai/vaelis-api/internal/generation"
	"github.com/vaelis-ai/vaelis-api/internal/platform/logger"
)

const testAPIKey = "sk-test-secret-0123456789"

// sleepRecorder captures backoff delays without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type upstream struct {
	server *httptest.Server
	calls  atomic.Int32
}

func newUpstream(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, call int32)) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := u.calls.Add(1)
		handler(w, r, call)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func newTestClient(t *testing.T, baseURL, apiKey string, opts ...Option) *Client {
	t.Helper()
	log, _ := logger.GetTestLogger(t)
	client, err := NewClient(log, config.LLMConfig{
		APIURL:      baseURL,
		APIKey:      apiKey,
		Model:       "test-model",
		MaxRetries:  2,
		Temperature: 0.7,
	}, opts...)
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestNewClient_Validation(t *testing.T) {
	log, _ := logger.GetTestLogger(t)

	_, err := NewClient(nil, config.LLMConfig{APIURL: "http://x", Model: "m"})
	assert.Error(t, err)

	_, err = NewClient(log, config.LLMConfig{Model: "m"})
	assert.Error(t, err)

	_, err = NewClient(log, config.LLMConfig{APIURL: "http://x"})
	assert.Error(t, err)

	client, err := NewClient(log, config.LLMConfig{APIURL: "http://x/", Model: "m", MaxRetries: -1})
	require.NoError(t, err)
	assert.Equal(t, "http://x/chat/completions", client.endpoint)
	assert.Equal(t, generation.DefaultMaxRetries, client.maxRetries)
}

func TestGenerate_NoAPIKey(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, up.server.URL, "")

	result := client.Generate(context.Background(), generation.Request{Prompt: "hi"})

	require.NotNil(t, result)
	assert.Equal(t, generation.StatusError, result.Status)
	assert.Equal(t, generation.KindServiceUnavailable, result.Kind)
	assert.Equal(t, int32(0), up.calls.Load(), "no network call may be made without a key")
}

func TestGenerate_Success(t *testing.T) {
	var gotBody chatRequest
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"id":    "cmpl-1",
			"model": "upstream-model",
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": "hello"}},
			},
		})
	})
	sleeper := &sleepRecorder{}
	client := newTestClient(t, up.server.URL, testAPIKey, WithSleep(sleeper.sleep))

	sources := []generation.SourceItem{{Title: "Go", URL: "https://go.dev", Snippet: "Go is fun"}}
	result := client.Generate(context.Background(), generation.Request{
		Prompt:  "what is go?",
		Mode:    generation.ModeStudy,
		Sources: sources,
	})

	require.True(t, result.OK(), "details: %s", result.Details)
	assert.Equal(t, "hello", result.Output)
	assert.Equal(t, generation.AssistantName, result.Assistant)
	assert.Equal(t, sources, result.Sources)

	raw, ok := result.Raw.(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, raw, "model")
	assert.Equal(t, "cmpl-1", raw["id"])

	assert.Equal(t, "test-model", gotBody.Model)
	assert.InDelta(t, 0.7, gotBody.Temperature, 1e-9)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "You are a helpful assistant. Mode: study"}, gotBody.Messages[0])
	assert.Equal(t, "user", gotBody.Messages[1].Role)
	assert.Equal(t, generation.EnrichPrompt("what is go?", sources), gotBody.Messages[1].Content)

	assert.Equal(t, int32(1), up.calls.Load())
	assert.Empty(t, sleeper.recorded())
}

func TestGenerate_FallbackOutput(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		writeJSON(t, w, http.StatusOK, map[string]any{"answer": "x", "model": "upstream-model", "provider": "p"})
	})
	client := newTestClient(t, up.server.URL, testAPIKey)

	result := client.Generate(context.Background(), generation.Request{Prompt: "hi"})

	require.True(t, result.OK())
	assert.JSONEq(t, `{"answer":"x"}`, result.Output)
	assert.NotContains(t, result.Output, "upstream-model")
	assert.Equal(t, map[string]any{"answer": "x"}, result.Raw)
}

func TestGenerate_RetriesServerErrors(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		writeJSON(t, w, http.StatusInternalServerError, map[string]any{"error": "boom"})
	})
	sleeper := &sleepRecorder{}
	log, logBuf := logger.GetTestLogger(t)
	client, err := NewClient(log, config.LLMConfig{
		APIURL: up.server.URL, APIKey: testAPIKey, Model: "m", MaxRetries: 2,
	}, WithSleep(sleeper.sleep))
	require.NoError(t, err)

	result := client.Generate(context.Background(), generation.Request{Prompt: "hi"})

	assert.Equal(t, generation.StatusError, result.Status)
	assert.Equal(t, generation.KindServiceError, result.Kind)
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.Equal(t, generation.SafeMessage(generation.KindServiceError), result.Output)
	assert.Equal(t, int32(3), up.calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.recorded())

	entries, err := logBuf.GetLogEntries()
	require.NoError(t, err)
	retries := 0
	for _, entry := range entries {
		if entry["msg"] == "chat completion failed, retrying after delay" {
			retries++
			assert.Contains(t, entry, "attempt")
			assert.Contains(t, entry, "delay")
		}
	}
	assert.Equal(t, 2, retries)
}

func TestGenerate_RateLimitedThenSucceeds(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		if call == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "second time"}}},
		})
	})
	sleeper := &sleepRecorder{}
	client := newTestClient(t, up.server.URL, testAPIKey, WithSleep(sleeper.sleep))

	result := client.Generate(context.Background(), generation.Request{Prompt: "hi"})

	require.True(t, result.OK())
	assert.Equal(t, "second time", result.Output)
	assert.Equal(t, int32(2), up.calls.Load())
	assert.Equal(t, []time.Duration{time.Second}, sleeper.recorded())
}

func TestGenerate_ClientErrorIsTerminal(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		w.WriteHeader(http.StatusNotFound)
	})
	sleeper := &sleepRecorder{}
	client := newTestClient(t, up.server.URL, testAPIKey, WithSleep(sleeper.sleep))

	result := client.Generate(context.Background(), generation.Request{Prompt: "hi"})

	assert.Equal(t, generation.KindClientError, result.Kind)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
	assert.Equal(t, int32(1), up.calls.Load())
	assert.Empty(t, sleeper.recorded())
}

func TestGenerate_UndecodableBodyIsUnknown(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not json"))
	})
	sleeper := &sleepRecorder{}
	client := newTestClient(t, up.server.URL, testAPIKey, WithSleep(sleeper.sleep))

	result := client.Generate(context.Background(), generation.Request{Prompt: "hi"})

	assert.Equal(t, generation.KindUnknown, result.Kind)
	assert.Equal(t, int32(1), up.calls.Load())
	assert.Empty(t, sleeper.recorded())
}

func TestGenerate_RequestOverridesRetries(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		w.WriteHeader(http.StatusBadGateway)
	})
	sleeper := &sleepRecorder{}
	client := newTestClient(t, up.server.URL, testAPIKey, WithSleep(sleeper.sleep))

	result := client.Generate(context.Background(), generation.Request{
		Prompt:     "hi",
		MaxRetries: generation.Retries(0),
	})

	assert.Equal(t, generation.KindServiceError, result.Kind)
	assert.Equal(t, int32(1), up.calls.Load())
	assert.Empty(t, sleeper.recorded())
}

func TestGenerate_RequestRetriesAreClamped(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	sleeper := &sleepRecorder{}
	client := newTestClient(t, up.server.URL, testAPIKey, WithSleep(sleeper.sleep))

	result := client.Generate(context.Background(), generation.Request{
		Prompt:     "hi",
		MaxRetries: generation.Retries(1000),
	})

	assert.Equal(t, generation.KindServiceError, result.Kind)
	assert.Equal(t, int32(generation.MaxRetriesLimit+1), up.calls.Load())

	delays := sleeper.recorded()
	require.Len(t, delays, generation.MaxRetriesLimit)
	for i, d := range delays {
		assert.Positive(t, d, "delay %d", i)
		assert.LessOrEqual(t, d, MaxBackoff, "delay %d", i)
	}
	assert.Equal(t, MaxBackoff, delays[len(delays)-1])
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, BaseBackoff, backoffDelay(0))
	assert.Equal(t, BaseBackoff, backoffDelay(1))
	assert.Equal(t, 2*BaseBackoff, backoffDelay(2))
	assert.Equal(t, 4*BaseBackoff, backoffDelay(3))
	assert.Equal(t, MaxBackoff, backoffDelay(generation.MaxRetriesLimit))
	assert.Equal(t, MaxBackoff, backoffDelay(64))
	assert.Equal(t, MaxBackoff, backoffDelay(1<<30))
}

func TestGenerate_DetailsNeverContainAPIKey(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid credential " + testAPIKey))
	})
	client := newTestClient(t, up.server.URL, testAPIKey)

	result := client.Generate(context.Background(), generation.Request{Prompt: "hi"})

	assert.Equal(t, generation.KindClientError, result.Kind)
	assert.NotEmpty(t, result.Details)
	assert.NotContains(t, result.Details, testAPIKey)
	assert.NotContains(t, result.Output, testAPIKey)
}

func TestGenerate_CancelledDuringBackoff(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newTestClient(t, up.server.URL, testAPIKey, WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}))

	result := client.Generate(ctx, generation.Request{Prompt: "hi"})

	assert.Equal(t, generation.KindServiceError, result.Kind)
	assert.Equal(t, "request cancelled", result.Details)
	assert.Equal(t, int32(1), up.calls.Load())
}

func TestGenerate_CancelledInFlight(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	client := newTestClient(t, up.server.URL, testAPIKey)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	result := client.Generate(ctx, generation.Request{Prompt: "hi"})

	assert.Less(t, time.Since(start), 4*time.Second, "cancellation must abort the in-flight request")
	assert.Equal(t, generation.KindServiceError, result.Kind)
	assert.Equal(t, "request cancelled", result.Details)
	assert.Empty(t, result.Assistant)
}

func TestGenerate_AttemptTimeoutIsRetried(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	sleeper := &sleepRecorder{}
	log, _ := logger.GetTestLogger(t)
	client, err := NewClient(log, config.LLMConfig{
		APIURL: up.server.URL, APIKey: testAPIKey, Model: "m", MaxRetries: 1,
	}, WithSleep(sleeper.sleep), WithAttemptTimeout(50*time.Millisecond))
	require.NoError(t, err)

	result := client.Generate(context.Background(), generation.Request{Prompt: "hi"})

	assert.Equal(t, generation.KindServiceError, result.Kind)
	assert.Equal(t, "upstream request timed out", result.Details)
	assert.Equal(t, int32(2), up.calls.Load())
	assert.Equal(t, []time.Duration{time.Second}, sleeper.recorded())
}
