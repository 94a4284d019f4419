package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/acc-coin/acc-sdk-go/pkg/envelope"
	"github.com/acc-coin/acc-sdk-go/pkg/relayerr"
)

const (
	// RequestIDHeader carries a fresh UUID on every request for relay-side correlation.
	RequestIDHeader = "X-Request-Id"

	maxResponseBytes = 4 << 20
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
	MaxJitter       time.Duration
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialBackoff:  100 * time.Millisecond,
	MaxBackoff:      2 * time.Second,
	BackoffMultiple: 2.0,
	MaxJitter:       50 * time.Millisecond,
}

// Config configures the relay HTTP client.
type Config struct {
	// BaseTimeout bounds a single HTTP attempt.
	BaseTimeout time.Duration
	// Retry applies to GET requests only.
	Retry RetryConfig
	// RateLimit is the sustained requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int
	UserAgent string
}

// DefaultConfig returns the settings used when the caller supplies none.
func DefaultConfig() *Config {
	return &Config{
		BaseTimeout: 15 * time.Second,
		Retry:       DefaultRetryConfig,
		RateLimit:   0,
		RateBurst:   1,
		UserAgent:   "acc-sdk-go",
	}
}

// HTTPClient performs relay requests and returns the decoded response envelope.
// The envelope code is not interpreted; callers map it with Envelope.Err.
type HTTPClient interface {
	Get(ctx context.Context, url string) (*envelope.Envelope, error)
	Post(ctx context.Context, url string, body interface{}) (*envelope.Envelope, error)
}

// Client handles network communication with the relay
type Client struct {
	logger    *zap.Logger
	config    *Config
	doer      heimdall.Doer
	retrier   heimdall.Retriable
	attempts  int
	limiter   *rate.Limiter
	userAgent string
}

// NewClient creates a new transport client. Reads are retried with exponential
// backoff on transport errors and 5xx responses; signed writes are sent once.
func NewClient(cfg *Config, logger *zap.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	attempts := cfg.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := heimdall.NewExponentialBackoff(
		cfg.Retry.InitialBackoff,
		cfg.Retry.MaxBackoff,
		cfg.Retry.BackoffMultiple,
		cfg.Retry.MaxJitter,
	)
	// one try per heimdall call; Get owns the retry loop so backoff waits end with ctx
	doer := httpclient.NewClient(
		httpclient.WithHTTPTimeout(cfg.BaseTimeout),
		httpclient.WithRetryCount(0),
	)

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		logger:    logger,
		config:    cfg,
		doer:      doer,
		retrier:   heimdall.NewRetrier(backoff),
		attempts:  attempts,
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: cfg.UserAgent,
	}
}

// Get fetches url, retrying transport errors and 5xx responses per the retry
// config. Waiting between attempts stops as soon as ctx is done.
func (c *Client) Get(ctx context.Context, url string) (*envelope.Envelope, error) {
	var (
		res *response
		err error
	)
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			if werr := c.wait(ctx, attempt-1); werr != nil {
				return nil, relayerr.RelayUnavailable(fmt.Sprintf("%s %s aborted", http.MethodGet, url), werr)
			}
		}
		var transient bool
		res, transient, err = c.do(ctx, http.MethodGet, url, nil)
		if !transient || ctx.Err() != nil || attempt+1 == c.attempts {
			break
		}
		c.logger.Sugar().Debugw("Retrying relay request",
			"url", url,
			"attempt", attempt+1,
			"max_attempts", c.attempts,
		)
	}
	if err != nil {
		return nil, err
	}
	return res.envelope()
}

// Post sends body as JSON to url exactly once.
func (c *Client) Post(ctx context.Context, url string, body interface{}) (*envelope.Envelope, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, relayerr.InvalidArgument("failed to marshal request body: %v", err)
	}
	res, _, err := c.do(ctx, http.MethodPost, url, data)
	if err != nil {
		return nil, err
	}
	return res.envelope()
}

// response is one completed HTTP exchange.
type response struct {
	method string
	url    string
	status int
	body   []byte
}

func (r *response) envelope() (*envelope.Envelope, error) {
	env, err := envelope.Decode(r.body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s returned status %d", r.method, r.url, r.status)
	}
	return env, nil
}

// wait sleeps for the backoff interval of retry, returning early with the
// context error when ctx is done.
func (c *Client) wait(ctx context.Context, retry int) error {
	timer := time.NewTimer(c.retrier.NextInterval(retry))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// do performs a single exchange. transient reports a failure worth retrying:
// a transport error or a 5xx status.
func (c *Client) do(ctx context.Context, method, url string, body []byte) (res *response, transient bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, relayerr.RelayUnavailable("request not sent", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, false, relayerr.InvalidArgument("invalid request url %q: %v", url, err)
	}
	requestID := uuid.New().String()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	sugar := c.logger.Sugar()
	start := time.Now()
	resp, err := c.doer.Do(req)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, relayerr.RelayUnavailable(fmt.Sprintf("%s %s aborted", method, url), ctxErr)
		}
		sugar.Warnw("Relay request failed",
			"method", method,
			"url", url,
			"request_id", requestID,
			"error", err,
		)
		return nil, true, relayerr.RelayUnavailable("request failed", errors.Wrapf(err, "%s %s", method, url))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, true, relayerr.RelayUnavailable("failed to read response body", errors.Wrapf(err, "%s %s", method, url))
	}

	sugar.Debugw("Relay request completed",
		"method", method,
		"url", url,
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	res = &response{method: method, url: url, status: resp.StatusCode, body: raw}
	return res, resp.StatusCode >= http.StatusInternalServerError, nil
}

var _ HTTPClient = (*Client)(nil)
