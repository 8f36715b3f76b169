package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Capability names used to key outbound-call pacing.
const (
	CapabilityLLM   = "llm"
	CapabilityEmbed = "embedding"
)

// Limiter paces outbound calls per external capability, so a burst of
// refinement calls cannot starve embedding calls and vice versa.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter. A non-positive requests-per-second setting
// disables pacing for every capability.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	r := rate.Inf
	if requestsPerSecond > 0 {
		r = rate.Limit(requestsPerSecond)
	}
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until the capability's rate limit clears or the context ends.
func (l *Limiter) Wait(ctx context.Context, capability string) error {
	return l.getLimiter(capability).Wait(ctx)
}

// Allow reports whether a call is permitted right now, without waiting.
func (l *Limiter) Allow(capability string) bool {
	return l.getLimiter(capability).Allow()
}

func (l *Limiter) getLimiter(capability string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[capability]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[capability]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[capability] = limiter

	return limiter
}

// SetRate overrides the rate limit for one capability.
func (l *Limiter) SetRate(capability string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := rate.Inf
	if requestsPerSecond > 0 {
		r = rate.Limit(requestsPerSecond)
	}
	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[capability] = rate.NewLimiter(r, burst)
}

// WaitWithDelay waits for rate limit clearance and then an additional fixed
// delay, for providers that throttle on sustained request trains.
func (l *Limiter) WaitWithDelay(ctx context.Context, capability string, additionalDelay time.Duration) error {
	if err := l.Wait(ctx, capability); err != nil {
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
