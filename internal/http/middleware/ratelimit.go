package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/planejafacil/api/internal/http/respond"
)

const sweepInterval = time.Minute

// RateLimiter guarda um token bucket por chave (IP ou uid). Buckets sem uso
// há mais de maxAge são descartados na varredura periódica.
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	maxAge    time.Duration
	now       func() time.Time
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(reqPerSec),
		burst:   burst,
		maxAge:  10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow consome um token da chave. Quando negado, devolve a espera sugerida.
func (r *RateLimiter) Allow(key string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[key] = b
	}
	b.seen = now

	if now.Sub(r.lastSweep) >= sweepInterval {
		for k, other := range r.buckets {
			if now.Sub(other.seen) > r.maxAge {
				delete(r.buckets, k)
			}
		}
		r.lastSweep = now
	}

	if b.limiter.AllowN(now, 1) {
		return true, 0
	}
	if r.limit <= 0 {
		return false, time.Second
	}
	return false, time.Duration(float64(time.Second) / float64(r.limit))
}

func (r *RateLimiter) middleware(keyFunc func(*http.Request) (string, bool)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			key, ok := keyFunc(req)
			if !ok || key == "" {
				next.ServeHTTP(w, req)
				return
			}
			if allowed, wait := r.Allow(key); !allowed {
				secs := int(math.Ceil(wait.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				respond.JSON(w, http.StatusTooManyRequests, map[string]string{"detail": "Limite de requisições excedido"})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// IPRateLimit usa o IP remoto como chave. O router aplica chi RealIP antes,
// então RemoteAddr já reflete X-Real-IP / X-Forwarded-For.
func IPRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return limiter.middleware(func(r *http.Request) (string, bool) {
		return remoteHost(r), true
	})
}

// UserRateLimit usa o uid autenticado como chave.
func UserRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return limiter.middleware(func(r *http.Request) (string, bool) {
		id, ok := GetIdentity(r.Context())
		if !ok || id.UID == "" {
			return "", false
		}
		return "uid:" + id.UID, true
	})
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
