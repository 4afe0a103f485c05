package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Per-IP rate limiting
// ──────────────────────────────────────────────────────────────────────────────

// The auth endpoints take a tight allowance (credential stuffing), bid
// placement a wider one (students refreshing an auction); SetupRouter picks
// the numbers. Each client IP gets an allowance that refills continuously at
// the configured rate and caps at a burst ceiling, so page loads that fire a
// handful of requests at once pass while sustained hammering does not.

const (
	minBurstAllowance = 10
	sweepEvery        = 5 * time.Minute
	idleEvictAfter    = 10 * time.Minute
)

// clientAllowance is the remaining budget for one IP. Credit is topped up
// lazily on each request from the elapsed time since the last one.
type clientAllowance struct {
	mu      sync.Mutex
	credit  float64
	touched time.Time
}

// ipLimiter maps client IPs to their allowances.
type ipLimiter struct {
	mu        sync.RWMutex
	clients   map[string]*clientAllowance
	perSecond float64
	ceiling   float64
}

func newIPLimiter(rps int) *ipLimiter {
	ceiling := float64(rps)
	if ceiling < minBurstAllowance {
		ceiling = minBurstAllowance
	}
	return &ipLimiter{
		clients:   make(map[string]*clientAllowance),
		perSecond: float64(rps),
		ceiling:   ceiling,
	}
}

// take spends one unit of the IP's allowance, reporting whether any was left.
// New clients start with a full allowance.
func (l *ipLimiter) take(ip string) bool {
	l.mu.RLock()
	ca, ok := l.clients[ip]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		if ca, ok = l.clients[ip]; !ok {
			ca = &clientAllowance{credit: l.ceiling, touched: time.Now()}
			l.clients[ip] = ca
		}
		l.mu.Unlock()
	}

	ca.mu.Lock()
	defer ca.mu.Unlock()

	now := time.Now()
	ca.credit += now.Sub(ca.touched).Seconds() * l.perSecond
	if ca.credit > l.ceiling {
		ca.credit = l.ceiling
	}
	ca.touched = now

	if ca.credit < 1 {
		return false
	}
	ca.credit--
	return true
}

// evictIdle drops allowances that have not been touched recently, keeping the
// map bounded under churning client IPs.
func (l *ipLimiter) evictIdle() {
	cutoff := time.Now().Add(-idleEvictAfter)
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, ca := range l.clients {
		ca.mu.Lock()
		idle := ca.touched.Before(cutoff)
		ca.mu.Unlock()
		if idle {
			delete(l.clients, ip)
		}
	}
}

// RateLimitMiddleware caps each client IP at rps requests per second, with
// bursts absorbed up to the allowance ceiling. Over-budget requests are
// rejected with 429.
func RateLimitMiddleware(rps int) gin.HandlerFunc {
	limiter := newIPLimiter(rps)

	go func() {
		ticker := time.NewTicker(sweepEvery)
		defer ticker.Stop()
		for range ticker.C {
			limiter.evictIdle()
		}
	}()

	return func(c *gin.Context) {
		if !limiter.take(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, please slow down",
			})
			return
		}
		c.Next()
	}
}
