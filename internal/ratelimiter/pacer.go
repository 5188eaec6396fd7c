package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// SendPacer throttles outbound mail submission with a token bucket.
// Burst equals the rate so no extra burst capacity accumulates beyond the
// configured per-second maximum; the submission endpoint is a shared relay
// and flooding it gets the sender address throttled or greylisted.
type SendPacer struct {
	limiter *rate.Limiter
}

// NewSendPacer creates a pacer allowing ratePerSec message sends per second.
func NewSendPacer(ratePerSec int) *SendPacer {
	return &SendPacer{limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)}
}

// Wait blocks until the pacer grants a token. Called by each dispatch worker
// immediately before opening the mail dialog. Returns a non-nil error only
// if ctx is cancelled while waiting.
func (p *SendPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
