package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long an unused per-key limiter is kept
const DefaultIdleTTL = 30 * time.Minute

type override struct {
	limit rate.Limit
	burst int
}

// Limiter implements per-key token-bucket rate limiting.
// Keys are client IPs for inbound traffic and hosts for outbound traffic.
type Limiter struct {
	limiters     *gocache.Cache
	overrides    map[string]override
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	return newLimiter(rate.Limit(requestsPerSecond), burst, DefaultIdleTTL)
}

// NewWindowLimiter allows a burst of requests per window, refilling evenly
// across the window. A fresh key can spend the whole budget at once.
func NewWindowLimiter(requests int, window time.Duration) *Limiter {
	if requests <= 0 {
		requests = 1
	}
	idle := window
	if idle < DefaultIdleTTL {
		idle = DefaultIdleTTL
	}
	return newLimiter(rate.Every(window/time.Duration(requests)), requests, idle)
}

func newLimiter(limit rate.Limit, burst int, idleTTL time.Duration) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	return &Limiter{
		limiters:     gocache.New(idleTTL, idleTTL),
		overrides:    make(map[string]override),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait blocks until the key may proceed or ctx is done
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.getLimiter(key).Wait(ctx)
}

// Allow checks if a request is allowed without waiting
func (l *Limiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

// RetryAfter estimates how long the key must wait for its next token
func (l *Limiter) RetryAfter(key string) time.Duration {
	r := l.getLimiter(key).Reserve()
	defer r.Cancel()
	if !r.OK() {
		return 0
	}
	return r.Delay()
}

// WaitWithDelay waits for the key's token, then pauses for additionalDelay
func (l *Limiter) WaitWithDelay(ctx context.Context, key string, additionalDelay time.Duration) error {
	if err := l.Wait(ctx, key); err != nil {
		return err
	}

	if additionalDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(additionalDelay):
		}
	}

	return nil
}

// SetKeyRate overrides the rate for one key, e.g. a slow upstream host
func (l *Limiter) SetKeyRate(key string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	o := override{limit: rate.Limit(requestsPerSecond), burst: burst}
	l.overrides[key] = o
	l.limiters.SetDefault(key, rate.NewLimiter(o.limit, o.burst))
}

// Len returns the number of tracked keys
func (l *Limiter) Len() int {
	return l.limiters.ItemCount()
}

// getLimiter returns the limiter for a key, refreshing its idle expiry
func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cached, ok := l.limiters.Get(key); ok {
		limiter := cached.(*rate.Limiter)
		l.limiters.SetDefault(key, limiter)
		return limiter
	}

	limiter := rate.NewLimiter(l.defaultRate, l.defaultBurst)
	if o, ok := l.overrides[key]; ok {
		limiter = rate.NewLimiter(o.limit, o.burst)
	}
	l.limiters.SetDefault(key, limiter)

	return limiter
}

// HostKey extracts the lower-cased host (with port, if any) from a URL for per-host limiting
func HostKey(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "parse URL")
	}
	return strings.ToLower(parsed.Host), nil
}
