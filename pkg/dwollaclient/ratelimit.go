package dwollaclient

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces outbound API calls to stay under the provider's
// requests-per-minute budget.
type RateLimiter struct{ l *rate.Limiter }

func NewRateLimiter(rpm, burst int) *RateLimiter {
	return &RateLimiter{
		l: rate.NewLimiter(rate.Limit(rpm)/60, burst),
	}
}

// Wait blocks until the limiter admits the call. It returns an error
// when the context is cancelled first; the request must not fire then.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.l.Wait(ctx)
}
