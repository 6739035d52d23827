package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"hometour/portal/internal/config"
)

type clientLimiter struct {
	softLimiter *rate.Limiter
	hardLimiter *rate.Limiter
	lastSeen    time.Time
}

var (
	clients = make(map[string]*clientLimiter)
	mu      sync.Mutex
)

// cleanupClients periodically removes stale entries from the clients map.
func cleanupClients() {
	for {
		time.Sleep(time.Minute)

		mu.Lock()
		for key, client := range clients {
			if time.Since(client.lastSeen) > 3*time.Minute {
				delete(clients, key)
			}
		}
		mu.Unlock()
	}
}

func init() {
	go cleanupClients()
}

func getClientLimiter(clientKey string, cfg *config.Config) *clientLimiter {
	mu.Lock()
	defer mu.Unlock()

	client, exists := clients[clientKey]
	if !exists {
		client = &clientLimiter{
			softLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimitSoftRefillRate), cfg.RateLimitSoftBucketSize),
			hardLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimitHardRefillRate), cfg.RateLimitHardBucketSize),
		}
		clients[clientKey] = client
	}
	client.lastSeen = time.Now()
	return client
}

// RateLimiterMiddleware applies per-client rate limits keyed by IP. Crossing
// the soft limit only flags the response; the hard limit rejects with 429.
func RateLimiterMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.ClientIP()
		client := getClientLimiter(clientKey, cfg)

		if !client.hardLimiter.Allow() {
			log.Printf("WARN: hard rate limit exceeded for %s", clientKey)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}

		if !client.softLimiter.Allow() {
			c.Writer.Header().Set("X-RateLimit-Warning", "true")
		}

		c.Next()
	}
}
