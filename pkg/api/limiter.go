package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/utils"
)

// limiterPool keeps one limiter per token. Each limiter refills at
// max/window and allows bursts up to max, so a cold token admits at most
// max requests inside one window.
type limiterPool struct {
	mu     sync.Mutex
	m      map[string]*rate.Limiter
	max    int
	window time.Duration
}

func newLimiterPool(max int, window time.Duration) *limiterPool {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &limiterPool{m: make(map[string]*rate.Limiter), max: max, window: window}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(p.window/time.Duration(p.max)), p.max)
	p.m[key] = l
	return l
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// limitMiddleware rejects over-limit requests before the handler runs,
// keyed by the literal token path segment. Requests outside the token
// routes fall back to the remote address as the key.
func (g *Gateway) limitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := mux.Vars(r)["token"]
		if key == "" {
			key = r.RemoteAddr
		}
		if !g.limiters.Allow(key) {
			rateLimitedTotal.Inc()
			logger.Warn("rate_limited", "path", r.URL.Path)
			utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
