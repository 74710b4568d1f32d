package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Gopi7989/agri-connect/internal/logger"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleTTL         = 30 * time.Minute
)

// clientLimiter stores the token bucket for one client.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware keeps one token bucket per client IP.
type RateLimiterMiddleware struct {
	clients    map[string]*clientLimiter
	mu         sync.Mutex
	refillRate rate.Limit
	bucketSize int

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewRateLimiterMiddleware starts the limiter and its cleanup goroutine. Call Stop to end it.
func NewRateLimiterMiddleware(refillPerSecond, bucketSize int) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients:    make(map[string]*clientLimiter),
		refillRate: rate.Limit(refillPerSecond),
		bucketSize: bucketSize,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go rm.cleanupClients(limiterCleanupInterval)
	return rm
}

// getClientLimiter retrieves or creates the bucket for a client.
func (rm *RateLimiterMiddleware) getClientLimiter(identifier string) *rate.Limiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	client, exists := rm.clients[identifier]
	if !exists {
		client = &clientLimiter{limiter: rate.NewLimiter(rm.refillRate, rm.bucketSize)}
		rm.clients[identifier] = client
	}
	client.lastSeen = time.Now()
	return client.limiter
}

func (rm *RateLimiterMiddleware) cleanupClients(interval time.Duration) {
	defer close(rm.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rm.stop:
			return
		case now := <-ticker.C:
			if removed := rm.evictIdle(now); removed > 0 {
				logger.Debug("Rate limiter cleanup", zap.Int("removed", removed))
			}
		}
	}
}

// evictIdle drops clients not seen for limiterIdleTTL.
func (rm *RateLimiterMiddleware) evictIdle(now time.Time) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	removed := 0
	for id, client := range rm.clients {
		if now.Sub(client.lastSeen) > limiterIdleTTL {
			delete(rm.clients, id)
			removed++
		}
	}
	return removed
}

// Stop ends the cleanup goroutine and waits for it. Safe to call more than once.
func (rm *RateLimiterMiddleware) Stop() {
	rm.stopOnce.Do(func() { close(rm.stop) })
	<-rm.done
}

// Limit creates the Gin middleware handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.ClientIP()
		if !rm.getClientLimiter(clientKey).Allow() {
			logger.Warn("Rate limit exceeded", zap.String("client", clientKey), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests, please try again later"})
			return
		}
		c.Next()
	}
}
