package upstream

import (
	"net"
	"net/http"
	"time"
)

// TransportConfig tunes the pooled transport shared by all lookups.
type TransportConfig struct {
	DialTimeout     time.Duration
	KeepAlive       time.Duration
	TLSHandshake    time.Duration
	ResponseHeader  time.Duration
	IdleConnTimeout time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int
}

// DefaultTransportConfig returns the pool and dial settings used in production.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout:         3 * time.Second,
		KeepAlive:           30 * time.Second,
		TLSHandshake:        3 * time.Second,
		ResponseHeader:      5 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 16,
	}
}

// NewHTTPClient builds the shared outbound client. Per-call deadlines come
// from the request context, so the client itself carries no Timeout.
func NewHTTPClient(cfg TransportConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}

	tr := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		ForceAttemptHTTP2: true,

		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		TLSHandshakeTimeout:   cfg.TLSHandshake,
		ResponseHeaderTimeout: cfg.ResponseHeader,
	}

	return &http.Client{Transport: tr}
}
