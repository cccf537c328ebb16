package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/PdfQA/internal/config"
	"golang.org/x/time/rate"
)

var limiterInstance = NewIPRateLimiter(rate.Limit(config.RATE_LIMIT_PER_SECOND), config.BURST_RATE_LIMIT_PER_SECOND)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type IPRateLimiter struct {
	ips       map[string]*visitor
	mu        sync.Mutex
	rateLimit rate.Limit
	burstRate int
	now       func() time.Time
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{ips: make(map[string]*visitor), rateLimit: r, burstRate: b, now: time.Now}
}

func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, exists := i.ips[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(i.rateLimit, i.burstRate)}
		i.ips[ip] = v
	}
	v.lastSeen = i.now()
	return v.limiter
}

// evict drops limiters not used for idle and returns how many were removed.
func (i *IPRateLimiter) evict(idle time.Duration) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	cutoff := i.now().Add(-idle)
	removed := 0
	for ip, v := range i.ips {
		if v.lastSeen.Before(cutoff) {
			delete(i.ips, ip)
			removed++
		}
	}
	return removed
}

// StartLimiterCleanup evicts idle per-IP limiters until ctx is done.
func StartLimiterCleanup(ctx context.Context, every time.Duration, idle time.Duration) {
	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := limiterInstance.evict(idle); n > 0 {
					logger.Debug("Evicted idle rate limiters", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

//TODO: when the users grow
// I must offload this key-value to redis
