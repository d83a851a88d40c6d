package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"vidtube/pkg/cache"
	"vidtube/pkg/config"
	apperrors "vidtube/pkg/errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 100_000
	clientIdleTTL     = 10 * time.Minute
)

// clientLimiters hands out one token bucket per client IP. Buckets of clients
// idle for clientIdleTTL are evicted and start full again on return.
type clientLimiters struct {
	mu      sync.Mutex
	buckets *cache.Cache[string, *rate.Limiter]
	limit   rate.Limit
	burst   int
}

func newClientLimiters(limit rate.Limit, burst int) *clientLimiters {
	return &clientLimiters{
		buckets: cache.New[string, *rate.Limiter](maxTrackedClients, clientIdleTTL),
		limit:   limit,
		burst:   burst,
	}
}

func (l *clientLimiters) allow(ip string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets.Get(ip)
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
	}
	// re-adding refreshes the idle deadline
	l.buckets.Set(ip, bucket)
	l.mu.Unlock()
	return bucket.Allow()
}

// semaphore caps in-flight work; nil means unbounded.
type semaphore chan struct{}

func newSemaphore(n int) semaphore {
	if n <= 0 {
		return nil
	}
	return make(semaphore, n)
}

func (s semaphore) tryAcquire() bool {
	if s == nil {
		return true
	}
	select {
	case s <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s semaphore) release() {
	if s != nil {
		<-s
	}
}

// ClientIP returns the first X-Forwarded-For hop when it parses as an IP and
// the peer address otherwise.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewHTTPRateLimitMiddleware limits requests per client IP and, when
// max_concurrent is set, the number of requests in flight across all clients.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	httpCfg := cfg.RateLimiting.HTTP
	clients := newClientLimiters(rate.Limit(httpCfg.RequestsPerSecond), httpCfg.Burst)
	inFlight := newSemaphore(httpCfg.MaxConcurrent)

	return func(c *gin.Context) {
		if !inFlight.tryAcquire() {
			abortWithAppError(c, apperrors.Unavailable("too many concurrent requests"))
			return
		}
		defer inFlight.release()

		if !clients.allow(ClientIP(c.Request)) {
			c.Header("Retry-After", "1")
			abortWithAppError(c, apperrors.RateLimited())
			return
		}
		c.Next()
	}
}

// ConnectionLimiter admits activity WebSocket connections: a per-IP rate of
// new connections plus an optional cap on open ones.
type ConnectionLimiter struct {
	enabled bool
	clients *clientLimiters
	open    semaphore
}

func NewConnectionLimiter(cfg *config.Config) *ConnectionLimiter {
	ws := cfg.RateLimiting.WebSocket
	l := &ConnectionLimiter{enabled: cfg.RateLimiting.Enabled}
	if !l.enabled {
		return l
	}
	if ws.ConnectionsPerMinute > 0 {
		l.clients = newClientLimiters(rate.Every(time.Minute/time.Duration(ws.ConnectionsPerMinute)), ws.ConnectionsPerMinute)
	}
	l.open = newSemaphore(ws.MaxConcurrent)
	return l
}

// Acquire admits one connection from r. On success the returned release func
// must be called once the connection closes; calling it again is a no-op.
func (l *ConnectionLimiter) Acquire(r *http.Request) (func(), *apperrors.AppError) {
	if !l.enabled {
		return func() {}, nil
	}
	if l.clients != nil && !l.clients.allow(ClientIP(r)) {
		return nil, apperrors.RateLimited()
	}
	if !l.open.tryAcquire() {
		return nil, apperrors.Unavailable("too many concurrent connections")
	}
	var once sync.Once
	return func() { once.Do(l.open.release) }, nil
}
