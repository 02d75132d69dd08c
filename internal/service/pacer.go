package service

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces consecutive sends: a random delay in [MinDelay, MaxDelay]
// and, when Limiter is set, a provider-wide token bucket.
type Pacer struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	Limiter  *rate.Limiter
	// Sleep is replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	rand *rand.Rand
}

// NewPacer builds a pacer; perMinute <= 0 disables the token bucket.
func NewPacer(minDelay, maxDelay time.Duration, perMinute int, r *rand.Rand) *Pacer {
	p := &Pacer{MinDelay: minDelay, MaxDelay: maxDelay, Sleep: sleepCtx, rand: r}
	if perMinute > 0 {
		p.Limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	return p
}

// Wait blocks until the next send may go out or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.Sleep(ctx, p.delay()); err != nil {
		return err
	}
	if p.Limiter != nil {
		return p.Limiter.Wait(ctx)
	}
	return nil
}

// Reserve takes a token for the first send of a batch without the jitter delay.
func (p *Pacer) Reserve(ctx context.Context) error {
	if p.Limiter != nil {
		return p.Limiter.Wait(ctx)
	}
	return ctx.Err()
}

func (p *Pacer) delay() time.Duration {
	if p.MaxDelay <= p.MinDelay {
		return p.MinDelay
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.MinDelay + time.Duration(p.rand.Int64N(int64(p.MaxDelay-p.MinDelay)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
