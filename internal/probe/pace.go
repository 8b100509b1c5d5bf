package probe

import (
	"context"

	"golang.org/x/time/rate"
)

// WithRateLimit caps how often requests are sent using a token bucket.
//
//   - rps:   sustained requests per second; 0 or less disables the limit.
//   - burst: requests allowed back to back before pacing kicks in.
//
// Uncounted non-200 responses are retried without a delay; this bounds how
// fast that loop hits the target. Pacing waits on the run context, before
// the request starts, so it never eats into the per-request timeout and is
// never counted as a trial.
func WithRateLimit(rps float64, burst int) Option {
	return func(p *Prober) {
		if rps <= 0 {
			p.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// pace blocks until the limiter grants the next request or ctx is done.
func (p *Prober) pace(ctx context.Context) error {
	if p.limiter == nil || p.limiter.Allow() {
		return nil
	}
	p.log.Debug("request paced", "url", p.cfg.URL, "rps", float64(p.limiter.Limit()))
	return p.limiter.Wait(ctx)
}
