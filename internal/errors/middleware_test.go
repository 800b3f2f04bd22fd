package errors

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestMiddleware() *ErrorMiddleware {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	handler := NewErrorHandler(logger, false)
	return NewErrorMiddleware(handler, logger)
}

func TestErrorMiddleware_PassesThrough(t *testing.T) {
	m := newTestMiddleware()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)

	m.Handler(next).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestErrorMiddleware_RecoversPanic(t *testing.T) {
	m := newTestMiddleware()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/operations", nil)

	m.Handler(next).ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestErrorMiddleware_PreservesRequestBody(t *testing.T) {
	m := newTestMiddleware()

	var seenBody string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		seenBody = string(data)
		w.WriteHeader(http.StatusBadRequest)
	})

	body := `{"window":6}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/operations", strings.NewReader(body))
	r.ContentLength = int64(len(body))

	m.Handler(next).ServeHTTP(w, r)

	assert.Equal(t, body, seenBody, "middleware must not consume the request body")
}

func TestSanitizeRequestBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "redacts token",
			body: `{"token":"secret-value","window":6}`,
			want: "[REDACTED]",
		},
		{
			name: "non-json passes through",
			body: "plain text",
			want: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeRequestBody(tt.body)
			assert.Contains(t, got, tt.want)
			if strings.HasPrefix(tt.body, "{") {
				assert.NotContains(t, got, "secret-value")
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	handler := NewErrorHandler(logger, false)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("exploded")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/test", nil)

	RecoveryMiddleware(handler)(next).ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
