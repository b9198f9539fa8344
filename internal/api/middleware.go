package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	logging "holders-api/internal/infra/log"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// requestLogger writes one request and one response line per call to the file log.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID == "" {
			requestID = logging.GenerateRequestID()
		}
		start := time.Now()
		logging.LogRequest(requestID, r.Method, r.URL.Path, zap.String("remote", r.RemoteAddr))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logging.LogResponse(requestID, status, time.Since(start).Milliseconds(),
			zap.String("endpoint", r.Method+" "+r.URL.Path),
			zap.Int("bytes", ww.BytesWritten()))
	})
}

// ipRateLimiter gives every client IP its own token bucket refilling max
// tokens per window. Idle buckets are dropped after two windows.
type ipRateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	window  time.Duration
	clients map[string]*clientLimiter
	now     func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(window time.Duration, maxRequests int) *ipRateLimiter {
	if window <= 0 {
		window = 15 * time.Minute
	}
	if maxRequests <= 0 {
		maxRequests = 100
	}
	return &ipRateLimiter{
		limit:   rate.Every(window / time.Duration(maxRequests)),
		burst:   maxRequests,
		window:  window,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now

	if len(l.clients) > 1024 {
		for k, v := range l.clients {
			if now.Sub(v.lastSeen) > 2*l.window {
				delete(l.clients, k)
			}
		}
	}
	return c.limiter.AllowN(now, 1)
}

func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			logging.LogWarn("Rate limit exceeded", zap.String("ip", clientIP(r)), zap.String("path", r.URL.Path))
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
