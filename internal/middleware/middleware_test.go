package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/chirper/internal/auth"
	"github.com/sakif/chirper/internal/metrics"
)

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

// =========================================================================
// REQUEST ID
// =========================================================================

func TestRequestID_Generates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRequestID_HonoursValidInbound(t *testing.T) {
	inbound := uuid.NewString()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, inbound)
	rec := httptest.NewRecorder()

	RequestID(noContent).ServeHTTP(rec, r)

	assert.Equal(t, inbound, rec.Header().Get(RequestIDHeader))
}

func TestRequestID_ReplacesGarbageInbound(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "<script>")
	rec := httptest.NewRecorder()

	RequestID(noContent).ServeHTTP(rec, r)

	assert.NotEqual(t, "<script>", rec.Header().Get(RequestIDHeader))
}

// =========================================================================
// LOGGER
// =========================================================================

func TestLogger_LevelsByStatus(t *testing.T) {
	tests := []struct {
		code  int
		level logrus.Level
	}{
		{http.StatusOK, logrus.InfoLevel},
		{http.StatusNotFound, logrus.WarnLevel},
		{http.StatusServiceUnavailable, logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			logger, hook := test.NewNullLogger()
			r := chi.NewRouter()
			r.Use(RequestID, Logger(logger))
			r.Get("/api/users/{nickname}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte("hello"))
			})

			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/users/alice", nil))

			require.Len(t, hook.Entries, 1)
			entry := hook.LastEntry()
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, tt.code, entry.Data["status"])
			assert.Equal(t, "/api/users/alice", entry.Data["path"])
			assert.Equal(t, "/api/users/{nickname}", entry.Data["route"])
			assert.Equal(t, int64(5), entry.Data["bytes"])
			assert.NotEmpty(t, entry.Data["requestID"])
		})
	}
}

// =========================================================================
// RATE LIMITER
// =========================================================================

func rateLimitedTotal(t *testing.T) float64 {
	t.Helper()
	families, err := metrics.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "chirper_http_rate_limited_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestRateLimiter_PerUser(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rl := NewRateLimiter(60, 2, logger)
	h := rl.Handler(noContent)
	before := rateLimitedTotal(t)

	send := func(userID string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/statuses", nil)
		r = r.WithContext(auth.WithUserID(r.Context(), userID))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, send("alice"))
	assert.Equal(t, http.StatusNoContent, send("alice"))
	assert.Equal(t, http.StatusTooManyRequests, send("alice"), "burst of 2 exhausted")
	assert.Equal(t, http.StatusNoContent, send("bob"), "buckets are per user")
	assert.Equal(t, before+1, rateLimitedTotal(t))
}

func TestRateLimiter_AnonymousByIP(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := NewRateLimiter(1, 1, logger).Handler(noContent)

	send := func(remote string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1234").Code)
	limited := send("10.0.0.1:5678")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code, "same IP, different port")
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:1234").Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := NewRateLimiter(0, 0, logger).Handler(noContent)

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rl := NewRateLimiter(60, 1, logger)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.getLimiter("old")
	now = now.Add(11 * time.Minute)
	rl.getLimiter("fresh")

	assert.Equal(t, 1, rl.Cleanup())
	assert.Len(t, rl.limiters, 1)
	assert.Contains(t, rl.limiters, "fresh")
}
