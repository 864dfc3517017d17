package transport

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces requests to the same host.
type RateLimiter interface {
	Wait(ctx context.Context, host string) error
}

// HostLimiter enforces a minimum interval between requests to each host.
// With one worker this reproduces a fixed sleep between trials; with more
// workers the spacing still holds per host.
type HostLimiter struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter creates a limiter with the given spacing. An interval of
// zero or less disables spacing.
func NewHostLimiter(interval time.Duration) *HostLimiter {
	return &HostLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Interval returns the configured spacing.
func (h *HostLimiter) Interval() time.Duration { return h.interval }

// Wait blocks until a request to host may be sent or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	if h.interval <= 0 {
		return ctx.Err()
	}
	return h.limiterFor(host).Wait(ctx)
}

func (h *HostLimiter) limiterFor(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(h.interval), 1)
		h.limiters[host] = l
	}
	return l
}

// HostOf returns the host[:port] of rawURL, or rawURL itself when it cannot
// be parsed.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
