package httpmiddleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// TokenBucket is an in-memory per-key rate limiter.
type TokenBucket struct {
	capacity float64
	perSec   float64
	now      func() time.Time

	// OnLimited is called for every rejected request.
	OnLimited func()

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket creates a limiter allowing perMinute requests per key with
// bursts up to capacity. A non-positive capacity uses perMinute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: float64(capacity),
		perSec:   float64(perMinute) / 60,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// WithClock overrides the time source.
func (l *TokenBucket) WithClock(now func() time.Time) *TokenBucket {
	l.now = now
	return l
}

// KeyFunc picks the bucket for a request. An empty key falls back to the
// client IP.
type KeyFunc func(c *gin.Context) string

// GinMiddleware returns a gin handler enforcing the limit per client IP.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return l.GinMiddlewareKeyed(nil)
}

// GinMiddlewareKeyed returns a gin handler enforcing the limit per key.
// IP keys and custom keys live in separate namespaces.
func (l *TokenBucket) GinMiddlewareKeyed(keyFn KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ""
		if keyFn != nil {
			key = keyFn(c)
		}
		if key != "" {
			key = "key:" + key
		} else {
			key = "ip:" + c.ClientIP()
		}
		if !l.Allow(key) {
			if l.OnLimited != nil {
				l.OnLimited()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Allow takes one token from key's bucket if available.
func (l *TokenBucket) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.state[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.perSec
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Prune drops buckets that have been idle long enough to refill completely.
// Such a bucket is indistinguishable from a new one.
func (l *TokenBucket) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	full := l.refillTime()
	removed := 0
	for key, b := range l.state {
		if now.Sub(b.last) >= full {
			delete(l.state, key)
			removed++
		}
	}
	return removed
}

// Run prunes idle buckets every interval until ctx is done.
func (l *TokenBucket) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}

// Len reports how many buckets are tracked.
func (l *TokenBucket) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state)
}

func (l *TokenBucket) refillTime() time.Duration {
	if l.perSec <= 0 {
		return time.Hour
	}
	return time.Duration(l.capacity / l.perSec * float64(time.Second))
}
