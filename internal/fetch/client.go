package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// maxBodyBytes caps response reads; upstream acts are text, 4 MB is ample.
const maxBodyBytes = 4 << 20

// Options tunes the client. Zero values fall back to the documented
// defaults (4 retries, 0.5 s initial backoff, factor 2, 0.3 s jitter,
// 30 s per-request timeout).
type Options struct {
	MaxConcurrency int64
	MinInterval    time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	BackoffFactor  float64
	Jitter         time.Duration
	Timeout        time.Duration
	Breaker        BreakerConfig
}

func (o *Options) fill() {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 3
	}
	if o.MinInterval < 0 {
		o.MinInterval = 0
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 4
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	if o.BackoffFactor <= 0 {
		o.BackoffFactor = 2.0
	}
	if o.Jitter < 0 {
		o.Jitter = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Breaker == (BreakerConfig{}) {
		o.Breaker = DefaultBreakerConfig()
	}
}

// Response is the successful outcome of a Fetch.
type Response struct {
	Body   string
	Status int
	Header http.Header
}

// Client is the throttled, retrying, circuit-broken HTTP client shared by
// every upstream-facing component.
type Client struct {
	http     *http.Client
	throttle *Throttle
	breakers *BreakerRegistry
	opts     Options
	log      *zap.Logger
	sleep    func(context.Context, time.Duration) error
}

// NewClient builds a client. A nil logger is replaced by a no-op.
func NewClient(opts Options, log *zap.Logger) *Client {
	opts.fill()
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:     &http.Client{Timeout: opts.Timeout},
		throttle: NewThrottle(opts.MaxConcurrency, opts.MinInterval),
		breakers: NewBreakerRegistry(opts.Breaker, nil),
		opts:     opts,
		log:      log,
		sleep:    sleepCtx,
	}
}

// Breakers exposes the registry (health reporting).
func (c *Client) Breakers() *BreakerRegistry { return c.breakers }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff computes the delay before retry attempt n (0-based).
func (c *Client) backoff(attempt int) time.Duration {
	d := float64(c.opts.InitialBackoff)
	for i := 0; i < attempt; i++ {
		d *= c.opts.BackoffFactor
	}
	if c.opts.Jitter > 0 {
		d += rand.Float64() * float64(c.opts.Jitter)
	}
	return time.Duration(d)
}

func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// Fetch issues a GET for url on behalf of the named upstream tag.
// It applies throttling, the tag's circuit breaker and the retry policy:
// 404 -> DocumentNotFoundError without retry, other 4xx fail immediately,
// 429/503 retry after max(Retry-After, backoff), remaining 5xx and
// transport errors retry with exponential backoff.
func (c *Client) Fetch(ctx context.Context, url, tag string) (Response, error) {
	if !c.breakers.Allow(tag) {
		c.log.Debug("circuit open, failing fast", zap.String("tag", tag), zap.String("url", url))
		return Response{}, &BreakerOpenError{Tag: tag}
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			if rl, ok := lastErr.(*RateLimitError); ok && rl.RetryAfter > delay {
				delay = rl.RetryAfter
			}
			c.log.Debug("retrying fetch",
				zap.String("tag", tag),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return Response{}, err
			}
		}

		resp, err := c.attempt(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			c.breakers.RecordFailure(tag)
			lastErr = &NetworkError{Err: err}
			continue
		}

		switch {
		case resp.Status == http.StatusNotFound:
			c.breakers.RecordSuccess(tag)
			return Response{}, &DocumentNotFoundError{URN: url}
		case resp.Status == http.StatusTooManyRequests || resp.Status == http.StatusServiceUnavailable:
			c.breakers.RecordFailure(tag)
			lastErr = &RateLimitError{Status: resp.Status, RetryAfter: retryAfter(resp.Header)}
			continue
		case resp.Status >= 400 && resp.Status < 500:
			c.breakers.RecordSuccess(tag)
			return Response{}, &NetworkError{Status: resp.Status, Err: fmt.Errorf("client error")}
		case resp.Status >= 500:
			c.breakers.RecordFailure(tag)
			lastErr = &NetworkError{Status: resp.Status, Err: fmt.Errorf("server error")}
			continue
		}

		c.breakers.RecordSuccess(tag)
		return resp, nil
	}

	c.log.Warn("retry budget exhausted",
		zap.String("tag", tag),
		zap.String("url", url),
		zap.Error(lastErr))
	return Response{}, lastErr
}

// attempt passes one request through the throttle. Acquiring per attempt
// keeps retries behind the global min-interval gate and frees the
// concurrency slot during backoff sleeps.
func (c *Client) attempt(ctx context.Context, url string) (Response, error) {
	if err := c.throttle.Acquire(ctx); err != nil {
		return Response{}, err
	}
	defer c.throttle.Release()
	return c.do(ctx, url)
}

func (c *Client) do(ctx context.Context, url string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "it-IT,it;q=0.9,en;q=0.5")

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, err
	}
	return Response{Body: string(body), Status: resp.StatusCode, Header: resp.Header}, nil
}
