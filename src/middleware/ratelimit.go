package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"trading-venue/src/config"
)

type clientWindow struct {
	window int64
	count  int
}

// RateLimiter allows up to maxRequests per client in each fixed window.
type RateLimiter struct {
	maxRequests    int
	windowDuration time.Duration
	clients        map[string]*clientWindow
	now            func() time.Time
	mu             sync.Mutex
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		maxRequests:    cfg.MaxRequests,
		windowDuration: cfg.Window,
		clients:        make(map[string]*clientWindow),
		now:            time.Now,
	}
}

func (rl *RateLimiter) getClientID(c *fiber.Ctx) string {
	ip := c.Get("X-Forwarded-For")
	if ip == "" {
		ip = c.Get("X-Real-IP")
	}
	if ip == "" {
		ip = c.IP()
	}
	return ip
}

func (rl *RateLimiter) windowNumber(now time.Time) int64 {
	return now.UnixNano() / int64(rl.windowDuration)
}

func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	window := rl.windowNumber(rl.now())

	cw, exists := rl.clients[clientID]
	if !exists || cw.window != window {
		// edge case: a new window resets the client's count
		rl.clients[clientID] = &clientWindow{window: window, count: 1}
		rl.evictStale(window)
		return true
	}

	if cw.count >= rl.maxRequests {
		return false
	}

	cw.count++
	return true
}

// evictStale drops clients whose last request was before the previous window.
func (rl *RateLimiter) evictStale(current int64) {
	for id, cw := range rl.clients {
		if cw.window < current-1 {
			delete(rl.clients, id)
		}
	}
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID := rl.getClientID(c)

		if !rl.Allow(clientID) {
			log.Warn().
				Str("client_ip", clientID).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("max_requests", rl.maxRequests).
				Msg("Rate limit exceeded")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "Rate limit exceeded",
				"message": "Too many requests. Please try again later.",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.maxRequests))
		c.Set("X-RateLimit-Window", rl.windowDuration.String())

		return c.Next()
	}
}
