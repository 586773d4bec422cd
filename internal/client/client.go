// Package client is the entry point to the telemetry API. It turns device and
// energy queries into fetches, splitting long time ranges into the windows the
// API accepts and stitching the results back together in order.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/wattwatch/internal/api"
	"github.com/tejusbharadwaj/wattwatch/internal/config"
	"github.com/tejusbharadwaj/wattwatch/internal/logging"
	"github.com/tejusbharadwaj/wattwatch/internal/ratelimit"
)

var (
	ErrMissingAPIKey = errors.New("API key is required")
	ErrDecode        = errors.New("failed to decode telemetry API response")
)

// Client is safe for concurrent use.
type Client struct {
	endpoint    string
	timezone    string
	concurrency int
	fetcher     *api.Fetcher
	logger      logrus.FieldLogger

	mu     sync.RWMutex
	limits ratelimit.RateLimits
}

type options struct {
	logger  logrus.FieldLogger
	fetcher []api.Option
}

// Option customizes a Client.
type Option func(*options)

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics instruments every request made by the client.
func WithMetrics(m *api.Metrics) Option {
	return func(o *options) { o.fetcher = append(o.fetcher, api.WithMetrics(m)) }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.fetcher = append(o.fetcher, api.WithHTTPClient(hc)) }
}

// WithSleeper replaces the wait used between retries.
func WithSleeper(fn func(context.Context, time.Duration) error) Option {
	return func(o *options) { o.fetcher = append(o.fetcher, api.WithSleeper(fn)) }
}

// New builds a client from the api section of the configuration.
func New(cfg config.APIConfig, opts ...Option) (*Client, error) {
	if cfg.Key == "" {
		return nil, ErrMissingAPIKey
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid API endpoint %q: %w", cfg.Endpoint, err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	c := &Client{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		timezone:    cfg.Timezone,
		concurrency: cfg.Concurrency,
		logger:      logging.OrDiscard(o.logger),
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}

	fetcherOpts := []api.Option{
		api.WithLogger(c.logger),
		api.WithHeaders(cfg.Headers),
		api.WithRateLimit(cfg.RateLimit, cfg.RateLimitBurst),
		api.WithObserver(c.observe),
	}
	fetcherOpts = append(fetcherOpts, o.fetcher...)

	timeout := api.Timeout{Connect: cfg.ConnectTimeout, Read: cfg.ReadTimeout}
	c.fetcher = api.NewFetcher(cfg.Key, timeout, cfg.Retry, fetcherOpts...)
	return c, nil
}

// RateLimits returns the snapshot from the most recent response. With
// concurrent requests the last one to arrive wins.
func (c *Client) RateLimits() ratelimit.RateLimits {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limits
}

func (c *Client) observe(limits ratelimit.RateLimits) {
	c.mu.Lock()
	c.limits = limits
	c.mu.Unlock()
}

func (c *Client) url(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.endpoint + "/" + strings.Join(escaped, "/")
}

// getJSON fetches url and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, target string, params url.Values, out any) (ratelimit.RateLimits, error) {
	resp, err := c.fetcher.Fetch(ctx, target, params)
	if err != nil {
		return ratelimit.RateLimits{}, err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return resp.RateLimits, fmt.Errorf("%w from %s: %v", ErrDecode, target, err)
	}
	return resp.RateLimits, nil
}
