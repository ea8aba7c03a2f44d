package limiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter gates outbound image requests by rate and by concurrency. Both
// gates are opt-in: a zero limit leaves that gate open.
type Limiter struct {
	semaphore   chan struct{}
	rateLimiter *rate.Limiter
}

// New builds a limiter. maxConcurrent <= 0 means no concurrency cap and
// ratePerSecond <= 0 means no rate cap.
func New(maxConcurrent int, ratePerSecond float64) *Limiter {
	limit := rate.Limit(ratePerSecond)
	burst := int(ratePerSecond)
	if ratePerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{rateLimiter: rate.NewLimiter(limit, burst)}
	if maxConcurrent > 0 {
		l.semaphore = make(chan struct{}, maxConcurrent)
	}
	return l
}

// Unbounded reports whether requests are never held back.
func (l *Limiter) Unbounded() bool {
	return l.semaphore == nil && l.rateLimiter.Limit() == rate.Inf
}

func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if err := l.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	if l.semaphore == nil {
		return func() {}, nil
	}

	select {
	case l.semaphore <- struct{}{}:
		return func() { <-l.semaphore }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
