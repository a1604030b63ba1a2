// Package throttle spaces outgoing fetches so monitored sites are not hammered.
package throttle

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"PageWatcher/internal/config"
	"PageWatcher/internal/ports"
)

// Pacer combines a token bucket with a randomized gap between consecutive
// fetches. One Pacer is shared by every check in the process.
type Pacer struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	minDelay time.Duration
	maxDelay time.Duration
	last     time.Time
	now      func() time.Time
	jitter   func(n int64) int64
}

var _ ports.Pacer = (*Pacer)(nil)

// New builds a pacer from the scheduler settings. A non-positive rate disables
// the token bucket.
func New(cfg config.SchedulerConfig) *Pacer {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	maxDelay := cfg.MaxDelay
	if maxDelay < cfg.MinDelay {
		maxDelay = cfg.MinDelay
	}
	return &Pacer{
		limiter:  rate.NewLimiter(limit, 1),
		minDelay: cfg.MinDelay,
		maxDelay: maxDelay,
		now:      time.Now,
		jitter:   rand.Int64N,
	}
}

// Wait blocks until the next fetch may start.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		if gap := p.nextGap() - p.now().Sub(p.last); gap > 0 {
			timer := time.NewTimer(gap)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	p.last = p.now()
	return nil
}

func (p *Pacer) nextGap() time.Duration {
	span := int64(p.maxDelay - p.minDelay)
	if span <= 0 {
		return p.minDelay
	}
	return p.minDelay + time.Duration(p.jitter(span+1))
}
