package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-risk/internal/observability"
)

func testClient(cfg Config, cache Cache) *Client {
	return NewClient(cfg, cache, observability.DiscardLogger(), observability.NewMetricsForTesting())
}

func noBackoff(retries int) Config {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.Retries = retries
	cfg.Backoff = 0
	cfg.MaxBackoff = 0
	return cfg
}

func TestClient_Get_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "plat-risk/0.1", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	body, err := testClient(noBackoff(0), nil).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"features":[]}`, string(body))
}

func TestClient_Get_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := testClient(noBackoff(2), nil).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_Get_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(noBackoff(1), nil).Get(context.Background(), srv.URL)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_Get_NoRetryOnNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	_, err := testClient(noBackoff(3), nil).Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_Get_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := noBackoff(0)
	cfg.Timeout = 50 * time.Millisecond
	_, err := testClient(cfg, nil).Get(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestClient_Get_Cached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("doc"))
	}))
	defer srv.Close()

	c := testClient(noBackoff(0), NewMemoryCache(10))
	for range 3 {
		body, err := c.Get(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "doc", string(body))
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("id,include\nA,y\n"))
	}))
	defer srv.Close()

	rc, err := testClient(noBackoff(0), nil).Stream(context.Background(), srv.URL)
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "id,include\nA,y\n", string(body))
}

func TestClient_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient(noBackoff(3), nil).Get(ctx, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(errors.New("connection reset")))
	assert.True(t, retryable(&StatusError{StatusCode: 500}))
	assert.True(t, retryable(&StatusError{StatusCode: 429}))
	assert.False(t, retryable(&StatusError{StatusCode: 403}))
	assert.False(t, retryable(context.Canceled))
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond, time.Second))
	assert.Equal(t, time.Second, nextBackoff(800*time.Millisecond, time.Second))
}
