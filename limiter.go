package storyline

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// WriteLimiter rate-limits mutating requests per client IP with a token
// bucket. It bounds request rate only; it is not a per-reader clap ceiling.
type WriteLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	stopOnce sync.Once
	stop     chan struct{}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewWriteLimiter allows perMinute requests per IP, all of which may arrive
// in a burst. Entries idle for longer than idle are dropped by Cleanup.
func NewWriteLimiter(perMinute int, idle time.Duration) *WriteLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &WriteLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   perMinute,
		idle:    idle,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// Allow reports whether ip may make another request now and consumes a
// token if so.
func (l *WriteLimiter) Allow(ip string) bool {
	now := l.now()
	l.mu.Lock()
	cl, ok := l.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = cl
	}
	cl.lastSeen = now
	l.mu.Unlock()
	return cl.limiter.AllowN(now, 1)
}

// Cleanup drops clients not seen within the idle window.
func (l *WriteLimiter) Cleanup() {
	cutoff := l.now().Add(-l.idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, cl := range l.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}

// size returns the number of tracked clients.
func (l *WriteLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// StartCleanup runs Cleanup every idle interval until Stop is called.
func (l *WriteLimiter) StartCleanup() {
	go func() {
		ticker := time.NewTicker(l.idle)
		defer ticker.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}

// Stop ends the cleanup loop.
func (l *WriteLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header.
func (l *WriteLimiter) Middleware(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !l.Allow(ip) {
				log.Warn("write rate limit exceeded", zap.String("ip", ip), zap.String("path", c.Path()))
				retry := int(1 / float64(l.limit))
				c.Response().Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}
