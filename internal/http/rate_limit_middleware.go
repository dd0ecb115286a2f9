package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

// ratePolicy is the request budget shared by every route registered with it.
// Counters are scoped to bucket, so a caller exhausting writes can still read.
type ratePolicy struct {
	bucket string
	limit  int
	window time.Duration
	key    func(*http.Request) string
}

var (
	policyRegister = ratePolicy{bucket: "register", limit: 5, window: time.Minute, key: byAddress}
	policyLogin    = ratePolicy{bucket: "login", limit: 12, window: time.Minute, key: byAddress}
	policyRead     = ratePolicy{bucket: "read", limit: 120, window: time.Minute, key: byUser}
	policyWrite    = ratePolicy{bucket: "write", limit: 60, window: time.Minute, key: byUser}
)

// subject identifies the caller a request is charged to. Anonymous callers on
// user-keyed policies fall back to their address.
func (p ratePolicy) subject(req *http.Request) string {
	if p.key != nil {
		if s := p.key(req); s != "" {
			return s
		}
	}
	return byAddress(req)
}

// limited charges each request against policy before calling next.
func (r *Router) limited(policy ratePolicy, next http.HandlerFunc) http.HandlerFunc {
	if policy.limit <= 0 {
		return next
	}
	return func(w http.ResponseWriter, req *http.Request) {
		if r.limiter == nil {
			next(w, req)
			return
		}
		subject := policy.subject(req)
		decision := r.limiter.Allow(policy.bucket+"|"+subject, policy.limit, policy.window)
		r.applyRateHeaders(w, policy.limit, decision)
		if !decision.allowed {
			r.recordRateLimitHit(policy.bucket, subjectKind(subject))
			writeMessage(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}
		next(w, req)
	}
}

func byUser(req *http.Request) string {
	if p, ok := principalFromContext(req.Context()); ok && p.UserID != "" {
		return "user:" + p.UserID
	}
	return ""
}

// byAddress keys on the socket peer. X-Forwarded-For is ignored here because
// callers control it.
func byAddress(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}

// subjectKind keeps metric cardinality bounded: "user", "ip" or "unknown".
func subjectKind(subject string) string {
	kind, _, found := strings.Cut(subject, ":")
	if !found || kind == "" {
		return "unknown"
	}
	return kind
}

const localSweepEvery = 5 * time.Minute

// localLimiter keeps counters in process memory. Expired windows are dropped
// lazily on the first call after each sweep interval.
type localLimiter struct {
	mu        sync.Mutex
	now       func() time.Time
	windows   map[string]*fixedWindow
	nextSweep time.Time
}

type fixedWindow struct {
	hits    int
	resetAt time.Time
}

// NewMemoryRateLimiter returns a process-local limiter. Counts are not shared
// between replicas; use NewRedisRateLimiter for that.
func NewMemoryRateLimiter() RateLimiter {
	return newLocalLimiter(time.Now)
}

func newLocalLimiter(now func() time.Time) *localLimiter {
	return &localLimiter{
		now:       now,
		windows:   make(map[string]*fixedWindow),
		nextSweep: now().Add(localSweepEvery),
	}
}

func (l *localLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.After(l.nextSweep) {
		l.sweep(now)
	}

	fw := l.windows[key]
	if fw == nil || !now.Before(fw.resetAt) {
		fw = &fixedWindow{resetAt: now.Add(window)}
		l.windows[key] = fw
	}
	if fw.hits >= limit {
		return rateDecision{count: fw.hits, windowEnd: fw.resetAt}
	}
	fw.hits++
	return rateDecision{allowed: true, count: fw.hits, windowEnd: fw.resetAt}
}

func (l *localLimiter) sweep(now time.Time) {
	for key, fw := range l.windows {
		if !now.Before(fw.resetAt) {
			delete(l.windows, key)
		}
	}
	l.nextSweep = now.Add(localSweepEvery)
}

func (l *localLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *localLimiter) Close() {
	l.mu.Lock()
	l.windows = make(map[string]*fixedWindow)
	l.mu.Unlock()
}
