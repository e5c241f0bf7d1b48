// Package fetcher wraps all outbound provider calls with bounded
// retry, growing per-attempt timeouts and client-side rate limiting.
// One Client (and its connection pool) is shared by every service for
// the lifetime of the process.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/FACorreiaa/go-trip-planner/app/tracer"
)

const (
	defaultMaxRetries     = 3
	defaultInitialTimeout = 10 * time.Second

	// Per-attempt timeout grows additively, inter-attempt delay
	// multiplicatively.
	timeoutStep  = 5 * time.Second
	delaySeed    = time.Second
	delayFactor  = 1.5
	maxBodyDrain = 4096
)

// Client is the shared outbound HTTP client.
type Client struct {
	hc     *http.Client
	rl     *rate.Limiter
	logger *slog.Logger
}

// New builds the process-wide fetch client. rps bounds the outbound
// request rate across all providers; zero or negative falls back to a
// conservative default.
func New(logger *slog.Logger, rps int) *Client {
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		// Timeouts are applied per attempt via context, not here.
		hc:     &http.Client{},
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
		logger: logger,
	}
}

// Request describes one logical outbound GET.
type Request struct {
	URL            string
	Params         url.Values
	Headers        map[string]string
	MaxRetries     int
	InitialTimeout time.Duration
}

// retryable reports whether a response status warrants another
// attempt: 429 and server errors only. Other 4xx (and all 2xx/3xx)
// return immediately.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Fetch performs the GET with retry. It returns the last received
// response after retries are exhausted, even when that response
// carries an error status; (nil, err) means no response was ever
// obtained. Callers treat both cases as "service unavailable" and
// degrade.
func (c *Client) Fetch(ctx context.Context, req Request) (*http.Response, error) {
	if req.MaxRetries <= 0 {
		req.MaxRetries = defaultMaxRetries
	}
	if req.InitialTimeout <= 0 {
		req.InitialTimeout = defaultInitialTimeout
	}

	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	target := req.URL
	if len(req.Params) > 0 {
		target = req.URL + "?" + req.Params.Encode()
	}

	var lastResp *http.Response
	var lastErr error
	delay := delaySeed

	for attempt := 0; attempt < req.MaxRetries; attempt++ {
		tracer.RecordOutboundRequest(ctx)
		attemptCtx, cancel := context.WithTimeout(ctx, req.InitialTimeout+time.Duration(attempt)*timeoutStep)
		resp, err := c.do(attemptCtx, target, req.Headers)

		if err != nil {
			cancel()
			if ctx.Err() != nil {
				return lastResp, ctx.Err()
			}
			lastErr = err
		} else {
			// The attempt context must outlive the body: canceling it
			// while the caller is still reading severs the stream
			// mid-payload. Closing the body releases it instead.
			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			if !retryable(resp.StatusCode) {
				return resp, nil
			}
			// Keep only the most recent error response.
			if lastResp != nil {
				drain(lastResp)
			}
			lastResp = resp
			lastErr = fmt.Errorf("remote status %d", resp.StatusCode)
		}

		if attempt < req.MaxRetries-1 {
			tracer.RecordOutboundRetry(ctx)
			c.logger.WarnContext(ctx, "Retrying outbound request",
				slog.String("url", req.URL),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.Any("error", lastErr),
			)
			if !sleepCtx(ctx, delay) {
				return lastResp, ctx.Err()
			}
			delay = time.Duration(float64(delay) * delayFactor)
		}
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, target string, headers map[string]string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	return c.hc.Do(httpReq)
}

// FetchJSON runs Fetch and decodes a 200 body into dst. Any non-OK
// outcome is surfaced as an error; callers decide how to degrade.
func (c *Client) FetchJSON(ctx context.Context, req Request, dst any) error {
	resp, err := c.Fetch(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyDrain))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// cancelOnClose ties a per-attempt context to its response body so
// the timeout is released exactly when the caller finishes reading.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))
	resp.Body.Close()
}

// sleepCtx waits for d or returns false if ctx is done first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
