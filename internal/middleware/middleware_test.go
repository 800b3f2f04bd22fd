package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vegcli/internal/infrastructure"
)

// TestRequestID tests request ID generation and propagation
func TestRequestID(t *testing.T) {
	tests := []struct {
		name       string
		incomingID string
	}{
		{name: "generates new id"},
		{name: "honors incoming header", incomingID: "client-supplied-id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxID, traceID string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxID = GetRequestID(r.Context())
				traceID = infrastructure.GetTraceID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/results", nil)
			if tt.incomingID != "" {
				req.Header.Set("X-Request-ID", tt.incomingID)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			headerID := rec.Header().Get("X-Request-ID")
			assert.NotEmpty(t, headerID)
			assert.Equal(t, headerID, ctxID)
			assert.Equal(t, headerID, traceID)

			if tt.incomingID != "" {
				assert.Equal(t, tt.incomingID, headerID)
			} else {
				_, err := uuid.Parse(headerID)
				assert.NoError(t, err, "generated ID should be a UUID")
			}
		})
	}
}

// TestGetRequestIDFallback tests the trace ID fallback
func TestGetRequestIDFallback(t *testing.T) {
	ctx := infrastructure.WithTraceID(context.Background(), "trace-only")
	assert.Equal(t, "trace-only", GetRequestID(ctx))

	assert.Equal(t, "", GetRequestID(context.Background()))
}

// TestStructuredLogger tests request start/completion logging
func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := RequestID(StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/operations", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	out := buf.String()
	assert.Contains(t, out, "request started")
	assert.Contains(t, out, "request completed")
	assert.Contains(t, out, "status=201")
	assert.Contains(t, out, "trace_id=")
	assert.Contains(t, out, "path=/api/operations")
}

// TestRecoverer tests panic recovery with a problem response
func TestRecoverer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	handler := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/results", nil)
	rec := httptest.NewRecorder()

	assert.NotPanics(t, func() {
		handler.ServeHTTP(rec, req)
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "/errors/internal-server-error")
}

// TestRateLimiter tests the 429 path once the bucket empties
func TestRateLimiter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	rl := NewRateLimiter(1, 1, logger)

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// First request consumes the burst
	req := httptest.NewRequest(http.MethodGet, "/api/results", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Second request within the same second is rejected
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "/errors/rate-limit-exceeded")
}

// TestTimeout tests that a slow handler produces a 504 problem response
func TestTimeout(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	handler := Timeout(20*time.Millisecond, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Block until the middleware cancels the context, then give up
		// without writing so the 504 response owns the writer.
		<-r.Context().Done()
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/results", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "/errors/gateway-timeout")
}

// TestTimeoutFastHandler tests that quick handlers pass through untouched
func TestTimeoutFastHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	handler := Timeout(time.Second, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("fast"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fast", rec.Body.String())
}

// TestProblemFromStatus tests status to problem mapping
func TestProblemFromStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantType  string
		wantTitle string
	}{
		{http.StatusBadRequest, "/errors/bad-request", "Bad Request"},
		{http.StatusNotFound, "/errors/not-found", "Not Found"},
		{http.StatusConflict, "/errors/conflict", "Conflict"},
		{http.StatusTooManyRequests, "/errors/rate-limit-exceeded", "Too Many Requests"},
		{http.StatusGatewayTimeout, "/errors/gateway-timeout", "Gateway Timeout"},
		{http.StatusTeapot, "/errors/unknown", "I'm a teapot"},
	}

	for _, tt := range tests {
		problem := ProblemFromStatus(tt.status, "detail", "trace-1")
		assert.Equal(t, tt.wantType, problem.Type)
		assert.Equal(t, tt.wantTitle, problem.Title)
		assert.Equal(t, tt.status, problem.Status)
		assert.Equal(t, "trace-1", problem.Trace)
	}
}
