package mockserver

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 10 * time.Minute
)

type clientLimiter struct {
	*rate.Limiter
	seen time.Time
}

// limiterPool hands out one token bucket per client address. A client may
// burst up to a full minute of requests.
type limiterPool struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

func newLimiterPool(requestsPerMinute int) *limiterPool {
	return &limiterPool{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:   requestsPerMinute,
		now:     time.Now,
	}
}

// allow takes a token for client and, when none is left, reports how long
// until the next one.
func (p *limiterPool) allow(client string) (bool, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	c, ok := p.clients[client]
	if !ok {
		c = &clientLimiter{Limiter: rate.NewLimiter(p.limit, p.burst)}
		p.clients[client] = c
	}

	c.seen = now

	r := c.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)

		return false, delay
	}

	return true, 0
}

// sweep forgets clients idle for longer than limiterIdleTTL.
func (p *limiterPool) sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-limiterIdleTTL)

	for client, c := range p.clients {
		if c.seen.Before(cutoff) {
			delete(p.clients, client)
		}
	}
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.clients)
}

// rateLimitMiddleware rejects clients exceeding requestsPerMinute with 429.
// Idle clients are swept until the server stops.
func (s *server) rateLimitMiddleware(requestsPerMinute int) func(http.Handler) http.Handler {
	pool := newLimiterPool(requestsPerMinute)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				pool.sweep()
			case <-s.done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := pool.allow(extractIP(r))
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractIP returns the client address, preferring the first
// X-Forwarded-For entry.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
