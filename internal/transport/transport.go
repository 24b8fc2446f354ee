// Package transport builds the HTTP clients handed to the remote analysis
// SDKs, with connection pooling and per-host request pacing.
package transport

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config configures the shared HTTP client.
type Config struct {
	// Timeout for a whole request. Uploads of large media need a generous value.
	Timeout time.Duration

	// RequestsPerMinute paces requests per host. 0 disables pacing.
	RequestsPerMinute float64
	// Burst is the token bucket size used with RequestsPerMinute. Default: 1
	Burst int

	// MaxIdleConns is the maximum number of idle connections across all hosts.
	MaxIdleConns int
	// MaxIdleConnsPerHost is the maximum idle connections per host.
	MaxIdleConnsPerHost int
	// IdleConnTimeout is how long an idle connection can remain open.
	IdleConnTimeout time.Duration
	// ForceAttemptHTTP2 forces HTTP/2 where the server allows it.
	ForceAttemptHTTP2 bool
}

// DefaultConfig returns sensible defaults for API traffic.
func DefaultConfig() Config {
	return Config{
		Timeout:             10 * time.Minute,
		RequestsPerMinute:   0,
		Burst:               1,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
}

// NewHTTPClient creates an *http.Client with pooled connections and, when
// RequestsPerMinute is set, a per-host token bucket in front of every request.
func NewHTTPClient(cfg Config) *http.Client {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ForceAttemptHTTP2:     cfg.ForceAttemptHTTP2,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	var rt http.RoundTripper = base
	if cfg.RequestsPerMinute > 0 {
		rt = &pacedTransport{
			base:    base,
			limiter: NewHostLimiter(cfg.RequestsPerMinute, cfg.Burst),
		}
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: rt,
	}
}

// HostLimiter hands out one token bucket per host.
type HostLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter creates a limiter allowing rpm requests per minute per host.
func NewHostLimiter(rpm float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		limit:    rate.Limit(rpm / 60.0),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	if h == nil {
		return nil
	}
	return h.limiter(host).Wait(ctx)
}

func (h *HostLimiter) limiter(host string) *rate.Limiter {
	host, _, _ = strings.Cut(host, ":")

	h.mu.Lock()
	defer h.mu.Unlock()

	if l, ok := h.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(h.limit, h.burst)
	h.limiters[host] = l
	return l
}

// Hosts returns the hosts that have been paced so far.
func (h *HostLimiter) Hosts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	hosts := make([]string, 0, len(h.limiters))
	for host := range h.limiters {
		hosts = append(hosts, host)
	}
	return hosts
}

type pacedTransport struct {
	base    http.RoundTripper
	limiter *HostLimiter
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context(), req.URL.Host); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
