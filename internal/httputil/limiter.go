// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces out upstream calls as a politeness policy. A nil Limiter
// never waits, so callers can pass one through unconditionally.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter returns a Limiter that allows one call per interval.
// A non-positive interval returns nil (no limiting).
func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		return nil
	}
	return &Limiter{rl: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call is allowed or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.rl.Wait(ctx)
}
