package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/i474232898/weather-now/internal/weather"
)

const (
	// DefaultTimeout bounds a single upstream call.
	DefaultTimeout = 5 * time.Second

	maxBodyBytes = 1 << 20
	excerptBytes = 256
)

var (
	errCircuitOpen  = errors.New("circuit breaker open")
	errStatus       = errors.New("unexpected status code")
	errDecode       = errors.New("response body is not valid JSON")
	errBodyTooLarge = errors.New("response body too large")
	errNoHTTPClient = errors.New("http client not configured")
)

// Observer receives one observation per upstream call.
type Observer interface {
	ObserveUpstream(upstream, outcome string, d time.Duration)
}

// BreakerConfig controls the per-host circuit breaker.
type BreakerConfig struct {
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// OpenFor is how long the breaker stays open before probing again.
	OpenFor time.Duration
	// HalfOpenRequests is the number of probe requests allowed while half-open.
	HalfOpenRequests uint32
}

// DefaultBreakerConfig returns the breaker settings used in production.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:      5,
		OpenFor:          30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithObserver reports call durations and outcomes to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithBreaker replaces the default breaker settings.
func WithBreaker(cfg BreakerConfig) Option {
	return func(c *Client) { c.breaker = cfg }
}

// Client performs single-attempt JSON GETs against the geocoding and
// forecast APIs. It is safe for concurrent use.
type Client struct {
	http     *http.Client
	timeout  time.Duration
	breaker  BreakerConfig
	observer Observer

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New wraps httpClient, which is shared by every call.
func New(httpClient *http.Client, opts ...Option) *Client {
	c := &Client{
		http:     httpClient,
		timeout:  DefaultTimeout,
		breaker:  DefaultBreakerConfig(),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchJSON GETs rawURL once and decodes the body into a generic JSON tree.
// Transport failures, non-2xx statuses and undecodable bodies are reported
// as weather.KindUpstream; cancellation of ctx as weather.KindCanceled.
func (c *Client) FetchJSON(ctx context.Context, rawURL string) (any, error) {
	const op = "upstream.fetch"

	if c.http == nil {
		return nil, &weather.Error{Op: op, Kind: weather.KindUpstream, Err: errNoHTTPClient}
	}
	if err := ctx.Err(); err != nil {
		return nil, &weather.Error{Op: op, Kind: weather.KindCanceled, Err: err}
	}

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &weather.Error{Op: op, Kind: weather.KindUpstream, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	host := req.URL.Host
	start := time.Now()

	doc, err := c.do(ctx, host, req)
	if err != nil {
		kind := weather.KindUpstream
		switch {
		case ctx.Err() != nil:
			kind = weather.KindCanceled
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
			err = fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		c.observe(host, string(kind), time.Since(start))
		return nil, &weather.Error{Op: op, Kind: kind, Err: err}
	}

	c.observe(host, "ok", time.Since(start))
	return doc, nil
}

func (c *Client) do(ctx context.Context, host string, req *http.Request) (any, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// Ensure the request obeys context cancellation.
	req = req.WithContext(callCtx)
	otel.GetTextMapPropagator().Inject(callCtx, propagation.HeaderCarrier(req.Header))

	return c.breakerFor(host).Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
		if err != nil {
			return nil, err
		}
		if len(body) > maxBodyBytes {
			return nil, errBodyTooLarge
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %d body: %s", errStatus, resp.StatusCode, excerpt(body))
		}

		var doc any
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", errDecode, err)
		}
		return doc, nil
	})
}

func (c *Client) breakerFor(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[host]; ok {
		return cb
	}

	maxFailures := c.breaker.MaxFailures
	var cb *gobreaker.CircuitBreaker
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: c.breaker.HalfOpenRequests,
		Timeout:     c.breaker.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return maxFailures > 0 && counts.ConsecutiveFailures >= maxFailures
		},
		// A caller walking away is not the upstream's fault, but it is no
		// proof of recovery either: a canceled half-open probe keeps the
		// breaker open.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) {
				return cb.State() != gobreaker.StateHalfOpen
			}
			return false
		},
	})
	c.breakers[host] = cb
	return cb
}

func (c *Client) observe(host, outcome string, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstream(host, outcome, d)
	}
}

func excerpt(body []byte) string {
	if len(body) > excerptBytes {
		body = body[:excerptBytes]
	}
	return strings.TrimSpace(string(body))
}
