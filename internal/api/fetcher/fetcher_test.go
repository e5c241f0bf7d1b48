package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), 1000)
}

func fastRequest(u string) Request {
	return Request{URL: u, MaxRetries: 3, InitialTimeout: 2 * time.Second}
}

func TestFetchSuccessNoRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "tokyo", r.URL.Query().Get("q"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := testClient(t)
	req := fastRequest(srv.URL)
	req.Params = url.Values{"q": []string{"tokyo"}}

	resp, err := c.Fetch(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(t)
	resp, err := c.Fetch(context.Background(), fastRequest(srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load(), "4xx other than 429 must not retry")
}

func TestFetchRetriesOn429ThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(t)
	resp, err := c.Fetch(context.Background(), fastRequest(srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchExhaustedReturnsLastResponse(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(t)
	resp, err := c.Fetch(context.Background(), fastRequest(srv.URL))
	require.NoError(t, err, "an error-status response is still a response")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchNoResponseEver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := testClient(t)
	resp, err := c.Fetch(context.Background(), fastRequest(srv.URL))
	require.Error(t, err)
	assert.Nil(t, resp)
}

func TestFetchJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"金閣寺"}`))
	}))
	defer srv.Close()

	c := testClient(t)
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.FetchJSON(context.Background(), fastRequest(srv.URL), &out))
	assert.Equal(t, "金閣寺", out.Name)
}

func TestFetchJSONSlowChunkedBody(t *testing.T) {
	// A Rakuten-sized payload that arrives in two chunks with a pause
	// in between, so the transport cannot have buffered it all by the
	// time Fetch returns.
	body := `{"name":"金閣寺","padding":"` + strings.Repeat("a", 64*1024) + `"}`
	half := len(body) / 2

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body[:half]))
		w.(http.Flusher).Flush()
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(body[half:]))
	}))
	defer srv.Close()

	c := testClient(t)
	req := fastRequest(srv.URL)
	req.MaxRetries = 1

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.FetchJSON(context.Background(), req, &out))
	assert.Equal(t, "金閣寺", out.Name)
}

func TestFetchJSONErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(t)
	var out map[string]any
	err := c.FetchJSON(context.Background(), fastRequest(srv.URL), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
