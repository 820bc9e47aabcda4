package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter implements per-viewer rate limiting
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewLimiter creates a new rate limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Allow checks if a request is allowed without waiting
func (l *Limiter) Allow(viewerID string) bool {
	return l.getLimiter(viewerID).Allow()
}

// getLimiter returns the rate limiter for a viewer
func (l *Limiter) getLimiter(viewerID string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[viewerID]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[viewerID]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.rate, l.burst)
	l.limiters[viewerID] = limiter

	return limiter
}
