package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/PaulBabatuyi/connectChat/internal/apperr"
	"github.com/PaulBabatuyi/connectChat/internal/metrics"
)

// Limiter decides whether an event for key is permitted right now.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// LimiterStore maintains per-key rate limiters and performs periodic cleanup.
type LimiterStore struct {
	mu              sync.Mutex
	limit           rate.Limit
	burst           int
	clients         map[string]*clientEntry
	cleanupInterval time.Duration
	idleTTL         time.Duration
	stopOnce        sync.Once
	stopCh          chan struct{}
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerMinute converts an events-per-minute budget to a rate.Limit.
func PerMinute(n int) rate.Limit {
	if n <= 0 {
		n = 60
	}
	return rate.Every(time.Minute / time.Duration(n))
}

// NewLimiterStore creates a new store for per-key rate limiters.
// limit controls the sustained event rate; burst is the burst capacity.
func NewLimiterStore(limit rate.Limit, burst int, cleanupInterval time.Duration) *LimiterStore {
	if burst <= 0 {
		burst = 1
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	s := &LimiterStore{
		limit:           limit,
		burst:           burst,
		clients:         map[string]*clientEntry{},
		cleanupInterval: cleanupInterval,
		idleTTL:         10 * time.Minute,
		stopCh:          make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *LimiterStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictIdle(time.Now().Add(-s.idleTTL))
		case <-s.stopCh:
			return
		}
	}
}

func (s *LimiterStore) evictIdle(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.clients {
		if v.lastSeen.Before(cutoff) {
			delete(s.clients, k)
		}
	}
}

// Stop stops internal goroutines. It is safe to call more than once.
func (s *LimiterStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// getLimiter returns or creates a limiter for key
func (s *LimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.clients[key]; ok {
		e.lastSeen = time.Now()
		return e.limiter
	}
	limiter := rate.NewLimiter(s.limit, s.burst)
	s.clients[key] = &clientEntry{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

// Allow checks whether an event for the given key is permitted.
func (s *LimiterStore) Allow(_ context.Context, key string) bool {
	return s.getLimiter(key).Allow()
}

// Len returns the number of tracked keys.
func (s *LimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// KeyFunc derives the rate limit key of a request.
type KeyFunc func(c *gin.Context) string

// ByIP keys requests by client IP.
func ByIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByUser keys requests by the authenticated user, falling back to client IP.
func ByUser(c *gin.Context) string {
	if id := c.GetString(UserIDKey); id != "" {
		return "user:" + id
	}
	return ByIP(c)
}

// RateLimit returns a middleware that rejects requests over the limit of l
// with a rate limited error. scope labels the limiter in logs and metrics.
func RateLimit(l Limiter, scope string, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := scope + ":" + key(c)
		if !l.Allow(c.Request.Context(), k) {
			metrics.RecordRateLimited(scope)
			LoggerFrom(c).Warn().
				Str("key", k).
				Str("path", c.Request.URL.Path).
				Msg("rate limit exceeded")
			_ = c.Error(apperr.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}
