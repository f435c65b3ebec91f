package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/things", r.URL.Path)
		assert.Equal(t, "dcr", r.URL.Query().Get("assets"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value": 1.5}`))
	}))
	defer server.Close()

	var seen atomic.Int32
	c := New("test", server.URL+"/v4/", WithRateLimit(100, 1), WithObserver(func(string, time.Duration, error) {
		seen.Add(1)
	}))
	var out struct {
		Value any `json:"value"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "/things", url.Values{"assets": {"dcr"}}, &out))
	assert.Equal(t, json.Number("1.5"), out.Value)
	assert.Equal(t, int32(1), seen.Load())
}

func TestClient_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := New("test", server.URL, WithRateLimit(100, 1))
	err := c.GetJSON(context.Background(), "/", nil, &struct{}{})
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusTooManyRequests, ue.Status)
	assert.Equal(t, "test", ue.Source)
}

func TestClient_BadBodyIsSchemaError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	err := New("test", server.URL, WithRateLimit(100, 1)).GetJSON(context.Background(), "/", nil, &struct{}{})
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := New("test", server.URL, WithRateLimit(100, 1), WithBreaker(2, time.Hour))
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		require.Error(t, c.GetJSON(ctx, "/", nil, &struct{}{}))
	}
	err := c.GetJSON(ctx, "/", nil, &struct{}{})
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New("test", server.URL).GetJSON(ctx, "/", nil, &struct{}{})
	assert.True(t, errors.Is(err, context.Canceled))
}
