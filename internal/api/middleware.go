package api

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/roach88/idocore/internal/metrics"
)

// RateLimitConfig is a per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// limiterIdle is how long a client's bucket survives without requests.
const limiterIdle = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterMap struct {
	mu        sync.Mutex
	cfg       RateLimitConfig
	clients   map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterMap(cfg RateLimitConfig) *limiterMap {
	return &limiterMap{
		cfg:     cfg,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

// get returns the bucket for ip, evicting idle buckets at most once per
// limiterIdle.
func (m *limiterMap) get(ip string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) > limiterIdle {
		for k, c := range m.clients {
			if now.Sub(c.lastSeen) > limiterIdle {
				delete(m.clients, k)
			}
		}
		m.lastSweep = now
	}

	c, ok := m.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(m.cfg.RequestsPerSecond), m.cfg.Burst)}
		m.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

// RateLimiter rejects clients that exceed cfg with 429 and a Retry-After
// header.
func RateLimiter(cfg RateLimitConfig) gin.HandlerFunc {
	limiters := newLimiterMap(cfg)

	return func(c *gin.Context) {
		limiter := limiters.get(c.ClientIP())
		if !limiter.Allow() {
			r := limiter.Reserve()
			wait := r.Delay()
			r.Cancel()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorBody{
				Code:    "RATE_LIMITED",
				Message: "rate limit exceeded, retry later",
			})
			return
		}
		c.Next()
	}
}

// RequestLogger logs every request and counts it by route and status.
func RequestLogger(log logrus.FieldLogger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.RecordHTTP(route, status)

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"route":   route,
			"status":  status,
			"elapsed": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		if id := c.Writer.Header().Get(RequestIDHeader); id != "" {
			entry = entry.WithField("request_id", id)
		}
		if status >= http.StatusInternalServerError {
			entry.Warn("request served")
			return
		}
		entry.Debug("request served")
	}
}
