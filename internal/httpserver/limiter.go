// internal/httpserver/limiter.go
//
// Per-player rate limiting for /game/check.
// Buckets are dropped hourly so idle players do not accumulate.

package httpserver

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// playerLimiters hands out one token bucket per player id.
type playerLimiters struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
}

func newPlayerLimiters(perSec float64, burst int) *playerLimiters {
	if perSec <= 0 {
		perSec = 5
	}
	if burst < 1 {
		burst = 1
	}
	return &playerLimiters{
		limit:       rate.Limit(perSec),
		burst:       burst,
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

// allow reports whether id may make another check right now.
func (p *playerLimiters) allow(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Drop idle buckets hourly so abandoned anonymous ids don't accumulate.
	if time.Since(p.lastCleanup) > time.Hour {
		p.limiters = make(map[string]*rate.Limiter)
		p.lastCleanup = time.Now()
	}

	l, ok := p.limiters[id]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[id] = l
	}
	return l.Allow()
}
