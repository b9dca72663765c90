package collyfetcher

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// pacer spaces outbound requests per host. This is courtesy pacing toward the
// target site, separate from the service-level admission window: a token
// bucket is the right shape here because short bursts are fine as long as the
// sustained rate stays low.
type pacer struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newPacer(rps float64, burst int) *pacer {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &pacer{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Wait blocks until the host's limiter grants a slot or ctx is done.
func (p *pacer) Wait(ctx context.Context, rawURL string) error {
	return p.limiterFor(rawURL).Wait(ctx)
}

func (p *pacer) limiterFor(rawURL string) *rate.Limiter {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	lim, ok := p.limiters[host]
	if !ok {
		lim = rate.NewLimiter(p.rps, p.burst)
		p.limiters[host] = lim
	}
	return lim
}
