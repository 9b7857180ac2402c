package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vidfriends/uploader/internal/config"
	"github.com/vidfriends/uploader/internal/logging"
)

// RateLimiter decides whether the caller identified by key may proceed. When it
// may not, the returned duration says how long until a token frees up.
type RateLimiter interface {
	Allow(key string) (bool, time.Duration)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per key and forgets keys idle longer
// than its idle window.
type ClientLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewClientLimiter allows cfg.Requests events per cfg.Window per key on top of
// cfg.Burst. Zero values fall back to one request per second with a burst of one.
func NewClientLimiter(cfg config.RateLimitConfig) *ClientLimiter {
	requests, window, burst := cfg.Requests, cfg.Window, cfg.Burst
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if burst <= 0 {
		burst = 1
	}

	idle := 2 * window
	if idle < 5*time.Minute {
		idle = 5 * time.Minute
	}

	return &ClientLimiter{
		buckets: make(map[string]*bucket),
		every:   rate.Every(window / time.Duration(requests)),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

// Allow spends one token from key's bucket if one is available right now.
func (l *ClientLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idle {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.idle {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, 0
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Len reports how many keys currently hold a bucket.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit answers 429 once the caller's IP runs out of tokens for scope.
// Scopes keep separate budgets so auth traffic cannot starve uploads. A nil
// limiter disables the check.
func RateLimit(limiter RateLimiter, scope string, proxies TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + proxies.ClientIP(r)
			ok, wait := limiter.Allow(key)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			logging.FromContext(r.Context()).Warn("rate limit exceeded", "key", key, "retry_after", wait)
			seconds := int(math.Ceil(wait.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}` + "\n"))
		})
	}
}

// TrustedProxies lists the networks whose X-Forwarded-For entries are believed.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies parses CIDR prefixes such as "10.0.0.0/8".
func ParseTrustedProxies(cidrs []string) (TrustedProxies, error) {
	proxies := make(TrustedProxies, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", cidr, err)
		}
		proxies = append(proxies, prefix.Masked())
	}
	return proxies, nil
}

func (t TrustedProxies) trusts(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range t {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the connection's peer address. When the peer is a trusted
// proxy, X-Forwarded-For is walked from the nearest hop outwards and the first
// untrusted address wins; entries left of it are client supplied and ignored.
func (t TrustedProxies) ClientIP(r *http.Request) string {
	peer := remoteHost(r)
	addr, err := netip.ParseAddr(peer)
	if err != nil || !t.trusts(addr) {
		return peer
	}

	var hops []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(header, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}

	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(hops[i])
		if err != nil {
			break
		}
		client = hop.Unmap().String()
		if !t.trusts(hop) {
			break
		}
	}
	return client
}

func remoteHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if addr == "" {
		return "unknown"
	}
	return addr
}
