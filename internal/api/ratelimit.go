package api

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit is one sliding window: at most Transactions requests per
// Per.
type RateLimit struct {
	Transactions int
	Per          time.Duration
}

// DefaultRateLimits matches basic API access: short burst control plus
// a per-minute ceiling.
var DefaultRateLimits = []RateLimit{
	{Transactions: 10, Per: time.Second},
	{Transactions: 100, Per: time.Minute},
}

// Limiter enforces several rate limits at once; a request proceeds
// only when every window has room.
type Limiter struct {
	limiters []*rate.Limiter
}

// NewLimiter builds a limiter from the given windows. With no windows
// it never blocks.
func NewLimiter(limits ...RateLimit) *Limiter {
	l := &Limiter{}
	for _, lim := range limits {
		if lim.Transactions <= 0 || lim.Per <= 0 {
			continue
		}
		interval := lim.Per / time.Duration(lim.Transactions)
		l.limiters = append(l.limiters, rate.NewLimiter(rate.Every(interval), lim.Transactions))
	}
	return l
}

// Wait blocks until every window admits one more request.
func (l *Limiter) Wait(ctx context.Context) error {
	for _, lim := range l.limiters {
		if err := lim.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return nil
}
