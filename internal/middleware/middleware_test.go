package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/common/ratelimit"
)

func TestLoggingCapturesStatus(t *testing.T) {
	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/shop", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(logging.RequestIDKey).(string)
	}))

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", rr.Header().Get(RequestIDHeader))
	})

	t.Run("replaces invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "bad id\nwith newline")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.NotEqual(t, "bad id\nwith newline", seen)
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
	})
}

func TestRecovery(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/shop", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Internal Server Error", body.Error)
	assert.NotContains(t, rr.Body.String(), "boom")
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantCode   string
	}{
		{
			name:       "validation",
			err:        errors.ValidationError("signature verification failed").WithCode("signature_invalid"),
			wantStatus: http.StatusBadRequest,
			wantError:  "signature verification failed",
			wantCode:   "signature_invalid",
		},
		{
			name:       "not found",
			err:        errors.NotFoundError("subscription"),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "internal hides message",
			err:        errors.InternalError("db exploded at 10.0.0.1", nil),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tt.err)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body ErrorBody
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body.Error)
			}
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

type stubLimiter struct {
	decision ratelimit.Decision
	err      error
	keys     []string
}

func (s *stubLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	s.keys = append(s.keys, key)
	return s.decision, s.err
}

func TestRateLimit(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	keyFn := func(r *http.Request) string { return r.URL.Path }

	t.Run("allowed", func(t *testing.T) {
		limiter := &stubLimiter{decision: ratelimit.Decision{Allowed: true, Limit: 10, Remaining: 9}}
		rr := httptest.NewRecorder()
		RateLimit(limiter, keyFn)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/shop", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "10", rr.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", rr.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, []string{"/webhooks/shop"}, limiter.keys)
	})

	t.Run("rejected", func(t *testing.T) {
		limiter := &stubLimiter{decision: ratelimit.Decision{Limit: 10, RetryAfter: 1500 * time.Millisecond}}
		rr := httptest.NewRecorder()
		RateLimit(limiter, keyFn)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/shop", nil))

		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "2", rr.Header().Get("Retry-After"))
	})

	t.Run("limiter error fails open", func(t *testing.T) {
		limiter := &stubLimiter{decision: ratelimit.Decision{Allowed: true}, err: errors.ConnectionError("redis down", nil)}
		rr := httptest.NewRecorder()
		RateLimit(limiter, keyFn)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/shop", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("nil limiter", func(t *testing.T) {
		rr := httptest.NewRecorder()
		RateLimit(nil, keyFn)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/shop", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("local limiter end to end", func(t *testing.T) {
		limiter, err := ratelimit.NewLocalLimiter(ratelimit.Config{Enabled: true, RequestsPerSecond: 1, BurstSize: 1})
		require.NoError(t, err)
		h := RateLimit(limiter, keyFn)(next)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/shop", nil))
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/shop", nil))
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	})
}
