// Package exchange implements the ports.Exchange port against a generic
// REST exchange API, with rate limiting and retry/backoff grounded on the
// same pattern the teacher's polymarket.Client uses for its CLOB/Gamma
// clients.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

const (
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client is an HTTP ports.Exchange implementation with request pacing and
// retry/backoff. The wire schema of any individual exchange is out of
// scope (spec.md §1); Client only fixes the retry/pacing shell and the
// shape of the generic request/response envelope its adapters fill in.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewClient creates a Client targeting baseURL, rate limited to
// requestsPerSec sustained with a small burst allowance.
func NewClient(baseURL, apiKey string, requestsPerSec float64, log *slog.Logger) *Client {
	if requestsPerSec <= 0 {
		requestsPerSec = 5
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), int(requestsPerSec)+1),
		log:     log,
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	}, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.doWithRetry(ctx, func() (*http.Request, error) {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("exchange.Client.post: marshal: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out)
}

// doWithRetry paces requests through the rate limiter and retries
// transient failures with exponential backoff and jitter, matching the
// teacher's polymarket.Client.doWithRetry. 4xx responses are permanent
// and returned immediately as domain errors; 429/5xx and network errors
// are retried up to maxRetries before surfacing a TransientIOError.
func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error), out any) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("exchange.Client.doWithRetry: rate limiter: %w", err)
		}

		req, err := build()
		if err != nil {
			return err
		}
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt == maxRetries {
				break
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if c.log != nil {
				c.log.Warn("rate limited by exchange", "attempt", attempt+1)
			}
			lastErr = fmt.Errorf("rate limited (429)")
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error %d", resp.StatusCode)
			if attempt == maxRetries {
				break
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return &domain.ValidationError{Op: "exchange.Client", Reason: fmt.Sprintf("client error %d: %s", resp.StatusCode, string(body))}
		}

		defer resp.Body.Close()
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("exchange.Client.doWithRetry: decode: %w", err)
			}
		}
		return nil
	}

	return &domain.TransientIOError{Op: "exchange.Client.doWithRetry", Cause: lastErr}
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

var _ ports.Exchange = (*Client)(nil)
