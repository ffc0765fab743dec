package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter enforces a minimum spacing between any two fetches to the
// same host, across all callers.
type HostLimiter struct {
	spacing time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewHostLimiter(spacing time.Duration) *HostLimiter {
	return &HostLimiter{spacing: spacing, limiters: make(map[string]*rate.Limiter)}
}

func (l *HostLimiter) get(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.spacing), 1)
		l.limiters[host] = lim
	}
	return lim
}

// Wait blocks until a fetch to host is allowed or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil || l.spacing <= 0 {
		return nil
	}
	return l.get(host).Wait(ctx)
}

type throttled struct {
	next    Fetcher
	limiter *HostLimiter
}

// Throttled wraps f so every fetch first waits on the host limiter.
func Throttled(f Fetcher, limiter *HostLimiter) Fetcher {
	return &throttled{next: f, limiter: limiter}
}

func (t *throttled) Fetch(ctx context.Context, baseURL string, page int) (*Page, error) {
	if err := t.limiter.Wait(ctx, hostOf(baseURL)); err != nil {
		return nil, &Error{URL: baseURL, Page: page, Message: "rate limit wait aborted", Err: err}
	}
	return t.next.Fetch(ctx, baseURL, page)
}
