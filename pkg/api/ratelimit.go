package api

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
	clientSweepInterval = 5 * time.Minute
	clientIdleTTL       = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters hands out one token bucket per client address. Buckets
// idle for longer than clientIdleTTL are dropped by a background sweep.
type clientLimiters struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time

	done chan struct{}
	once sync.Once
}

func newClientLimiters(requestsPerMinute int) *clientLimiters {
	requestsPerMinute = max(1, requestsPerMinute)

	cl := &clientLimiters{
		clients: make(map[string]*clientLimiter, 64),
		limit:   rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		// A whole minute's budget may be spent at once.
		burst: requestsPerMinute,
		now:   time.Now,
		done:  make(chan struct{}),
	}

	go cl.sweepLoop()

	return cl
}

// reserve takes a token for addr. It returns zero when the request may
// proceed and otherwise how long the client has to wait.
func (cl *clientLimiters) reserve(addr string) time.Duration {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()

	c, ok := cl.clients[addr]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.clients[addr] = c
	}

	c.lastSeen = now

	if c.limiter.AllowN(now, 1) {
		return 0
	}

	r := c.limiter.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)

	return wait
}

// sweep drops clients idle since before now-clientIdleTTL and returns how
// many remain.
func (cl *clientLimiters) sweep() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cutoff := cl.now().Add(-clientIdleTTL)

	for addr, c := range cl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(cl.clients, addr)
		}
	}

	return len(cl.clients)
}

func (cl *clientLimiters) sweepLoop() {
	ticker := time.NewTicker(clientSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cl.sweep()
		case <-cl.done:
			return
		}
	}
}

func (cl *clientLimiters) stop() {
	cl.once.Do(func() { close(cl.done) })
}

// rateLimitMiddleware limits each client to requestsPerMinute requests on
// the routes it wraps. Rejected requests get a Retry-After in seconds.
func (s *server) rateLimitMiddleware(requestsPerMinute int) func(http.Handler) http.Handler {
	limiters := newClientLimiters(requestsPerMinute)
	s.limiters = append(s.limiters, limiters)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if wait := limiters.reserve(clientAddr(r)); wait > 0 {
				secs := int(math.Ceil(wait.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(1, secs)))
				writeJSON(w, http.StatusTooManyRequests,
					errorResponse{"rate limit exceeded"})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr identifies the caller. Proxy headers win over RemoteAddr; for
// X-Forwarded-For the left-most hop is the client.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
