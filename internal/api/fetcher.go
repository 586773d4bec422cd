// Package api performs single logical reads and writes against the telemetry
// API, retrying timeouts with a linear backoff and waiting out short-window
// throttles announced through the rate-limit headers.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tejusbharadwaj/wattwatch/internal/logging"
	"github.com/tejusbharadwaj/wattwatch/internal/ratelimit"
)

// throttleEpsilon is added to the per-second reset counter before retrying.
const throttleEpsilon = 200 * time.Millisecond

// Timeout bounds one attempt: Connect limits dialing, Connect+Read limits the
// whole exchange.
type Timeout struct {
	Connect time.Duration
	Read    time.Duration
}

// ScalarTimeout uses d for both phases.
func ScalarTimeout(d time.Duration) Timeout {
	return Timeout{Connect: d, Read: d}
}

// Total is the deadline applied to a single attempt.
func (t Timeout) Total() time.Duration {
	return t.Connect + t.Read
}

func (t Timeout) isZero() bool {
	return t.Connect <= 0 && t.Read <= 0
}

// Request describes one logical API call. Build it with Fetcher.NewRequest so
// the timeout and retry budget carry the fetcher defaults.
type Request struct {
	Method  string
	URL     string
	Params  url.Values
	Body    []byte
	Timeout Timeout
	// Retry is the number of timeout retries allowed; 0 disables them.
	// Throttle waits never count against it.
	Retry int
}

// Response is a successful reply together with the rate limits it declared.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	RateLimits ratelimit.RateLimits
}

// Fetcher issues API requests on behalf of the client.
type Fetcher struct {
	http     *http.Client
	apiKey   string
	headers  map[string]string
	timeout  Timeout
	retry    int
	limiter  *rate.Limiter
	metrics  *Metrics
	logger   logrus.FieldLogger
	observer func(ratelimit.RateLimits)
	sleep    func(context.Context, time.Duration) error
	newID    func() string
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default transport-tuned client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.http = c }
}

// WithLogger sets the logger used for retry and throttle events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithRateLimit paces outgoing attempts to rps requests per second. A
// non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(f *Fetcher) {
		if rps <= 0 {
			f.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHeaders adds static headers to every request.
func WithHeaders(h map[string]string) Option {
	return func(f *Fetcher) {
		for k, v := range h {
			f.headers[k] = v
		}
	}
}

// WithObserver registers fn to receive the snapshot parsed from every
// response, including failed ones.
func WithObserver(fn func(ratelimit.RateLimits)) Option {
	return func(f *Fetcher) { f.observer = fn }
}

// WithSleeper replaces the context-aware sleep used for backoff and throttle
// waits.
func WithSleeper(fn func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

// NewFetcher creates a fetcher authenticating with apiKey.
func NewFetcher(apiKey string, timeout Timeout, retry int, opts ...Option) *Fetcher {
	f := &Fetcher{
		apiKey:  apiKey,
		headers: map[string]string{},
		timeout: timeout,
		retry:   retry,
		sleep:   sleepContext,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.http == nil {
		f.http = newHTTPClient(timeout)
	}
	f.logger = logging.OrDiscard(f.logger)
	return f
}

func newHTTPClient(timeout Timeout) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout.Connect > 0 {
		transport.DialContext = (&net.Dialer{
			Timeout:   timeout.Connect,
			KeepAlive: 30 * time.Second,
		}).DialContext
		transport.TLSHandshakeTimeout = timeout.Connect
	}
	if timeout.Read > 0 {
		transport.ResponseHeaderTimeout = timeout.Read
	}
	return &http.Client{Transport: transport}
}

// NewRequest returns a request carrying the fetcher's timeout and retry budget.
func (f *Fetcher) NewRequest(method, rawURL string, params url.Values) Request {
	return Request{
		Method:  method,
		URL:     rawURL,
		Params:  params,
		Timeout: f.timeout,
		Retry:   f.retry,
	}
}

// Fetch performs a GET with the fetcher defaults.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	return f.Do(ctx, f.NewRequest(http.MethodGet, rawURL, params))
}

// Do runs req until it succeeds or fails for good.
//
// A 429 that leaves daily budget is retried after the per-second reset
// without touching req.Retry. Timeouts back off for 1s, 2s, ... and give up
// with ErrTimeoutExceeded once req.Retry retries have been spent. Any other
// failure is returned as a *ServerError or *StatusError.
func (f *Fetcher) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Timeout.isZero() {
		req.Timeout = f.timeout
	}

	target, err := buildURL(req.URL, req.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}

	requestID := f.newID()
	log := f.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     req.Method,
		"url":        target,
	})

	retryCount := 0
	for attempt := 1; ; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := f.attempt(ctx, req, target, requestID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !isTimeout(err) {
				return nil, fmt.Errorf("%w: %v", ErrRequest, err)
			}
			if retryCount >= req.Retry {
				log.WithField("retries", retryCount).Error("Request timed out, retry budget exhausted")
				return nil, fmt.Errorf("%w after %d retries: %v", ErrTimeoutExceeded, retryCount, err)
			}

			// linear backoff policy
			wait := time.Duration(1+retryCount) * time.Second
			log.WithFields(logrus.Fields{"attempt": attempt, "wait": wait}).Warn("Request timed out, backing off")
			f.metrics.timedOut()
			if err := f.sleep(ctx, wait); err != nil {
				return nil, err
			}
			retryCount++
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if attempt > 1 {
				log.WithField("attempts", attempt).Debug("Request succeeded after retry")
			}
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests && resp.RateLimits.DailyBudgetRemaining():
			wait := resp.RateLimits.ThrottleDelay(throttleEpsilon)
			log.WithFields(logrus.Fields{
				"attempt":           attempt,
				"wait":              wait,
				"remaining_per_day": *resp.RateLimits.RemainingPerDay,
			}).Info("Throttled by per-second limit, waiting for reset")
			f.metrics.throttled()
			if err := f.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue

		default:
			err := errorFromResponse(resp)
			log.WithFields(logrus.Fields{"status": resp.StatusCode, "error": err}).Debug("Request failed")
			return nil, err
		}
	}
}

// attempt performs one network exchange. Rate limits are published as soon as
// the headers arrive.
func (f *Fetcher) attempt(ctx context.Context, req Request, target, requestID string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, req.Timeout.Total())
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}
	for k, v := range f.headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+f.apiKey)
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	httpResp, err := f.http.Do(httpReq)
	if err != nil {
		status := "error"
		if isTimeout(err) {
			status = "timeout"
		}
		f.metrics.observeAttempt(req.Method, status, time.Since(start))
		return nil, err
	}
	defer httpResp.Body.Close()

	limits := ratelimit.Parse(httpResp.Header)
	f.metrics.observeLimits(limits)
	if f.observer != nil {
		f.observer(limits)
	}

	data, err := io.ReadAll(httpResp.Body)
	f.metrics.observeAttempt(req.Method, strconv.Itoa(httpResp.StatusCode), time.Since(start))
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Body:       data,
		RateLimits: limits,
	}, nil
}

func buildURL(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
