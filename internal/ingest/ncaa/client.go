// Package ncaa fetches stats.ncaa.org pages and turns them into normalized
// tables.
package ncaa

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fortuna/collegebaseball/internal/monitoring"
)

// DefaultUserAgent is the header the site accepts from scripted clients.
const DefaultUserAgent = "Mozilla/5.0"

// ErrBlocked means the site answered 403.
var ErrBlocked = errors.New("ncaa: request blocked (403)")

// StatusError is any other non-2xx answer.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ncaa: %s returned %d", e.URL, e.StatusCode)
}

// Fetcher returns the body of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// ClientConfig tunes the HTTP client.
type ClientConfig struct {
	Source            string // metrics label, e.g. "ncaa"
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	MaxJitter         time.Duration
	Timeout           time.Duration
	RetryMax          int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
}

// DefaultClientConfig is polite enough for a long backfill.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Source:            "ncaa",
		UserAgent:         DefaultUserAgent,
		RequestsPerSecond: 0.5,
		Burst:             1,
		MaxJitter:         2 * time.Second,
		Timeout:           30 * time.Second,
		RetryMax:          3,
		RetryWaitMin:      time.Second,
		RetryWaitMax:      30 * time.Second,
	}
}

// Client fetches pages over HTTP with retries, a rate limit and a random
// pause before each request.
type Client struct {
	resty     *resty.Client
	limiter   *rate.Limiter
	maxJitter time.Duration
	source    string
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// NewClient builds a client. Server errors and connection failures are
// retried by the transport; a 403 is not.
func NewClient(cfg ClientConfig, logger *zap.Logger, metrics *monitoring.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Source == "" {
		cfg.Source = "ncaa"
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		resty:     restyClient,
		limiter:   rate.NewLimiter(limit, burst),
		maxJitter: cfg.MaxJitter,
		source:    cfg.Source,
		logger:    logger,
		metrics:   metrics,
	}
}

// Fetch GETs pageURL.
func (c *Client) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	timer := monitoring.NewTimer(c.metrics, c.source)

	if err := c.wait(ctx); err != nil {
		timer.Stop(monitoring.OutcomeError)
		return nil, err
	}

	resp, err := c.resty.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		timer.Stop(monitoring.OutcomeError)
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}

	switch {
	case resp.StatusCode() == http.StatusForbidden:
		timer.Stop(monitoring.OutcomeBlocked)
		c.logger.Warn("request blocked", zap.String("url", pageURL))
		return nil, fmt.Errorf("fetching %s: %w", pageURL, ErrBlocked)
	case !resp.IsSuccess():
		timer.Stop(monitoring.OutcomeError)
		return nil, &StatusError{URL: pageURL, StatusCode: resp.StatusCode()}
	}

	timer.Stop(monitoring.OutcomeOK)
	c.logger.Debug("fetched page",
		zap.String("url", pageURL),
		zap.Int("bytes", len(resp.Body())),
		zap.Duration("elapsed", resp.Time()))
	return resp.Body(), nil
}

// wait applies the rate limit and then sleeps a random fraction of
// maxJitter.
func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if c.maxJitter <= 0 {
		return nil
	}
	pause := time.Duration(rand.Int63n(int64(c.maxJitter)))
	t := time.NewTimer(pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
