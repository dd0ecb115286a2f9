package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func TestLocalLimiterWindow(t *testing.T) {
	clock := &stepClock{t: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)}
	rl := newLocalLimiter(clock.now)
	defer rl.Close()

	for i := 1; i <= 3; i++ {
		d := rl.Allow("k", 3, time.Minute)
		assert.True(t, d.allowed)
		assert.Equal(t, i, d.count)
	}
	denied := rl.Allow("k", 3, time.Minute)
	assert.False(t, denied.allowed)
	assert.Equal(t, clock.t.Add(time.Minute), denied.windowEnd)
	assert.True(t, rl.Allow("other", 3, time.Minute).allowed)

	clock.t = clock.t.Add(time.Minute)
	d := rl.Allow("k", 3, time.Minute)
	assert.True(t, d.allowed)
	assert.Equal(t, 1, d.count)
}

func TestLocalLimiterSweepsExpiredWindows(t *testing.T) {
	clock := &stepClock{t: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)}
	rl := newLocalLimiter(clock.now)
	rl.Allow("a", 1, time.Second)
	rl.Allow("b", 1, time.Second)
	assert.Equal(t, 2, rl.size())

	clock.t = clock.t.Add(localSweepEvery + time.Second)
	rl.Allow("c", 1, time.Second)
	assert.Equal(t, 1, rl.size())
}

func TestPoliciesCountSeparately(t *testing.T) {
	router := newTestRouter(t, nil)
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }
	tight := ratePolicy{bucket: "tight", limit: 2, window: time.Minute, key: byAddress}
	loose := ratePolicy{bucket: "loose", limit: 5, window: time.Minute, key: byAddress}
	tightH := router.limited(tight, ok)
	looseH := router.limited(loose, ok)

	call := func(h http.HandlerFunc, addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call(tightH, "10.0.0.1:1").Code)
	last := call(tightH, "10.0.0.1:2")
	assert.Equal(t, http.StatusNoContent, last.Code)
	assert.Equal(t, "2", last.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, call(tightH, "10.0.0.1:3").Code)

	assert.Equal(t, http.StatusNoContent, call(looseH, "10.0.0.1:4").Code, "other buckets keep their own budget")
	assert.Equal(t, http.StatusNoContent, call(tightH, "10.0.0.2:1").Code, "other callers keep their own budget")

	unlimited := router.limited(ratePolicy{bucket: "open"}, ok)
	rec := call(unlimited, "10.0.0.1:5")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimitSubjects(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	assert.Equal(t, "ip:10.0.0.7", byAddress(req))
	assert.Equal(t, "", byUser(req))
	assert.Equal(t, "ip:10.0.0.7", policyWrite.subject(req), "anonymous callers are charged by address")
	assert.Equal(t, "ip", subjectKind("ip:10.0.0.7"))
	assert.Equal(t, "user", subjectKind("user:u-1"))
	assert.Equal(t, "unknown", subjectKind(""))
}

func TestBearerToken(t *testing.T) {
	tok, err := bearerToken("Bearer abc")
	assert.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = bearerToken("")
	assert.ErrorIs(t, err, errMissingAuthHeader)
	_, err = bearerToken("Basic abc")
	assert.ErrorIs(t, err, errBadAuthHeader)
}
