package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/pkg/logger_i"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestWrap_InjectsTrace(t *testing.T) {
	var seen string
	h := Wrap(func(w http.ResponseWriter, r *http.Request) {
		seen = logger_i.TraceId(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1000"
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Trace-Id"))
}

func TestWrap_KeepsCallerTrace(t *testing.T) {
	var seen string
	h := Wrap(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(config.TRACE_ID_KEY).(string)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1000"
	req.Header.Set("X-Trace-Id", "trace-123")
	h(httptest.NewRecorder(), req)

	assert.Equal(t, "trace-123", seen)
}

func TestWrap_RateLimited(t *testing.T) {
	calls := 0
	h := Wrap(func(w http.ResponseWriter, r *http.Request) { calls++ })

	codes := map[int]int{}
	for i := 0; i < config.BURST_RATE_LIMIT_PER_SECOND+3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.3:1000"
		rec := httptest.NewRecorder()
		h(rec, req)
		codes[rec.Code]++
	}

	assert.GreaterOrEqual(t, codes[http.StatusTooManyRequests], 1)
	assert.Equal(t, calls, codes[http.StatusOK])
}

func TestIPRateLimiter_PerIP(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1)

	assert.True(t, l.GetLimiter("a").Allow())
	assert.False(t, l.GetLimiter("a").Allow())
	assert.True(t, l.GetLimiter("b").Allow())
	assert.Same(t, l.GetLimiter("a"), l.GetLimiter("a"))
}

func TestIPRateLimiter_Evict(t *testing.T) {
	now := time.Now()
	l := NewIPRateLimiter(rate.Limit(1), 1)
	l.now = func() time.Time { return now }

	l.GetLimiter("old")
	now = now.Add(10 * time.Minute)
	l.GetLimiter("fresh")

	assert.Equal(t, 1, l.evict(time.Minute))
	assert.Len(t, l.ips, 1)
	assert.Contains(t, l.ips, "fresh")
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
