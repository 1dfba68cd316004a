package middleware_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hiroshi75/photoword/internal/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logEntry struct {
	Msg       string `json:"msg"`
	Level     string `json:"level"`
	URL       string `json:"url"`
	Agent     string `json:"agent"`
	Status    int    `json:"status"`
	Bytes     int    `json:"bytes"`
	IP        string `json:"ip"`
	Method    string `json:"method"`
	RequestID string `json:"request_id"`
}

func TestLogWith(t *testing.T) {
	b := bytes.Buffer{}
	l := slog.New(slog.NewJSONHandler(&b, &slog.HandlerOptions{}))
	m := middleware.LogWith(l)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		fmt.Fprint(w, "tea")
	})

	req := httptest.NewRequest("GET", "/timeline?q=mesa", nil)
	req.RemoteAddr = "1.2.3.4"
	req.Header.Set("User-Agent", "test-runner")
	req.Header.Set(middleware.RequestIDHeader, "req-1")

	rec := httptest.NewRecorder()
	middleware.RequestID()(m(next)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)

	var e logEntry
	err := json.Unmarshal(b.Bytes(), &e)
	require.NoError(t, err)

	assert.Equal(t, "request handled", e.Msg)
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "/timeline?q=mesa", e.URL)
	assert.Equal(t, "test-runner", e.Agent)
	assert.Equal(t, 418, e.Status)
	assert.Equal(t, 3, e.Bytes)
	assert.Equal(t, "1.2.3.4", e.IP)
	assert.Equal(t, "GET", e.Method)
	assert.Equal(t, "req-1", e.RequestID)
}

func TestLogWith_ImplicitStatus(t *testing.T) {
	b := bytes.Buffer{}
	l := slog.New(slog.NewJSONHandler(&b, &slog.HandlerOptions{}))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	middleware.LogWith(l)(next).ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	var e logEntry
	require.NoError(t, json.Unmarshal(b.Bytes(), &e))
	assert.Equal(t, http.StatusOK, e.Status)
}
