package bgg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgg-proxy/config"
)

// newTestClient builds a Client against the given upstream URL with the
// real sleep replaced by a counter, so retry tests run without delays.
func newTestClient(t *testing.T, baseURL string, maxRetries int) (*Client, *atomic.Int32) {
	t.Helper()
	c := NewClient(&config.Config{
		Token:      "test-token",
		BaseURL:    baseURL,
		MaxRetries: maxRetries,
		RetryDelay: 5 * time.Second,
		Timeout:    2 * time.Second,
	})
	var sleeps atomic.Int32
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps.Add(1)
		return nil
	}
	return c, &sleeps
}

// countingServer wraps handleFn and counts upstream calls.
func countingServer(t *testing.T, calls *atomic.Int32, handleFn http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handleFn(w, r)
	}))
}

func fetchErr(t *testing.T, err error) *Error {
	t.Helper()
	var be *Error
	require.ErrorAs(t, err, &be)
	return be
}

func TestFetchCollection_Success(t *testing.T) {
	var calls atomic.Int32
	var gotAuth, gotQuery string
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<items totalitems="0"></items>`))
	})
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL, 5)
	body, err := c.FetchCollection(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, `<items totalitems="0"></items>`, body)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(0), sleeps.Load())
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Contains(t, gotQuery, "username=alice")
	assert.Contains(t, gotQuery, "own=1")
	assert.Contains(t, gotQuery, "subtype=boardgame")
	assert.Contains(t, gotQuery, "excludesubtype=boardgameexpansion")
}

func TestFetchCollection_QueuedExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL, 5)
	_, err := c.FetchCollection(context.Background(), "alice")

	be := fetchErr(t, err)
	assert.Equal(t, http.StatusAccepted, be.Code)
	assert.Equal(t, int32(5), calls.Load(), "expected exactly maxRetries attempts")
	assert.Equal(t, int32(4), sleeps.Load(), "expected maxRetries-1 inter-attempt delays")
}

func TestFetchCollection_BusyThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		if calls.Load() == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`<items/>`))
	})
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL, 5)
	body, err := c.FetchCollection(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, `<items/>`, body)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), sleeps.Load(), "expected exactly one retry delay")
}

func TestFetchCollection_BusyExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL, 3)
	_, err := c.FetchCollection(context.Background(), "alice")

	be := fetchErr(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, be.Code)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(2), sleeps.Load())
}

func TestFetchCollection_UnexpectedStatusIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such user"))
	})
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL, 5)
	_, err := c.FetchCollection(context.Background(), "alice")

	be := fetchErr(t, err)
	assert.Equal(t, http.StatusBadGateway, be.Code)
	assert.Contains(t, be.Detail, "404")
	assert.Contains(t, be.Detail, "no such user")
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
	assert.Equal(t, int32(0), sleeps.Load())
}

func TestFetchCollection_TransportErrorExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused from here on

	c, sleeps := newTestClient(t, url, 3)
	_, err := c.FetchCollection(context.Background(), "alice")

	be := fetchErr(t, err)
	assert.Equal(t, http.StatusBadGateway, be.Code)
	assert.Equal(t, int32(2), sleeps.Load())
}

func TestFetchCollection_TimeoutExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	})
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL, 2)
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.FetchCollection(context.Background(), "alice")

	be := fetchErr(t, err)
	assert.Equal(t, http.StatusGatewayTimeout, be.Code)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), sleeps.Load())
}

func TestFetchCollection_SleepAbortsOnCancel(t *testing.T) {
	var calls atomic.Int32
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 5)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	_, err := c.FetchCollection(context.Background(), "alice")

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load(), "no further attempts after a cancelled sleep")
}
