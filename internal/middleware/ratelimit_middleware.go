package middleware

import (
	"context"
	"sync"
	"time"
)

const (
	failedAttemptWindow = time.Minute
	maxFailedAttempts   = 5
)

// FailedAttemptLimiter limits failed login and token attempts per client IP.
// Limit: 5 attempts per minute.
type FailedAttemptLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptInfo
	now      func() time.Time
}

type attemptInfo struct {
	count   int
	firstAt time.Time
}

// NewFailedAttemptLimiter creates a limiter. Call Run to evict stale entries.
func NewFailedAttemptLimiter() *FailedAttemptLimiter {
	return &FailedAttemptLimiter{
		attempts: make(map[string]*attemptInfo),
		now:      time.Now,
	}
}

// Allow records a failed attempt from ip and reports whether it is still within the limit.
func (r *FailedAttemptLimiter) Allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	info, exists := r.attempts[ip]
	if !exists || now.Sub(info.firstAt) > failedAttemptWindow {
		r.attempts[ip] = &attemptInfo{count: 1, firstAt: now}
		return true
	}

	if info.count >= maxFailedAttempts {
		return false
	}
	info.count++
	return true
}

// Blocked reports whether ip has used up its attempts without recording a new one.
func (r *FailedAttemptLimiter) Blocked(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, exists := r.attempts[ip]
	if !exists || r.now().Sub(info.firstAt) > failedAttemptWindow {
		return false
	}
	return info.count >= maxFailedAttempts
}

// Run evicts expired entries every interval until ctx is cancelled.
func (r *FailedAttemptLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evict()
		}
	}
}

func (r *FailedAttemptLimiter) evict() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for ip, info := range r.attempts {
		if now.Sub(info.firstAt) > failedAttemptWindow {
			delete(r.attempts, ip)
		}
	}
}
