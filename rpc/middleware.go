package rpc

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"pettrace/observability"
)

type contextKey string

const (
	requestIDHeader                = "X-Request-ID"
	ctxKeyRequestID     contextKey = "pettrace.requestID"
	limiterIdleDuration            = 10 * time.Minute
)

// requestID tags every request with an id, reusing a well-formed inbound one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the id assigned by the request-id middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

func cors(origins []string) func(http.Handler) http.Handler {
	allowed := "*"
	if len(origins) > 0 {
		allowed = strings.Join(origins, " ")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowed == "*":
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && containsOrigin(origins, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func containsOrigin(origins []string, origin string) bool {
	for _, candidate := range origins {
		if strings.EqualFold(strings.TrimSpace(candidate), origin) {
			return true
		}
	}
	return false
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// sourceLimiter is a token bucket per client address.
type sourceLimiter struct {
	perSecond rate.Limit
	burst     int
	now       func() time.Time

	mu       sync.Mutex
	visitors map[string]*limiterEntry
}

// newSourceLimiter allows perMinute transactions per source. Zero disables
// limiting.
func newSourceLimiter(perMinute float64, burst int) *sourceLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &sourceLimiter{
		perSecond: rate.Limit(perMinute / 60.0),
		burst:     burst,
		now:       time.Now,
		visitors:  make(map[string]*limiterEntry),
	}
}

func (l *sourceLimiter) allow(source string) bool {
	if l == nil || l.perSecond <= 0 {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.visitors {
		if now.Sub(entry.lastSeen) > limiterIdleDuration {
			delete(l.visitors, key)
		}
	}
	entry, ok := l.visitors[source]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.visitors[source] = entry
	}
	entry.lastSeen = now
	if !entry.limiter.AllowN(now, 1) {
		observability.ModuleMetrics().RecordThrottle(metricsModule, "tx_rate")
		return false
	}
	return true
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
