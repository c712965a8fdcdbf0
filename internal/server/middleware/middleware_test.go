package middleware_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/a-essam23/go-relay/internal/server/middleware"
	"github.com/a-essam23/go-relay/pkg/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMetadataCapturesClientIP(t *testing.T) {
	var gotIP string
	handler := middleware.Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			meta, ok := middleware.ReqMetadataFrom(r.Context())
			if !ok {
				t.Fatal("metadata missing from request context")
			}
			gotIP = meta.IP
		}),
		middleware.RequestMetadataMiddleware(),
	)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotIP != "10.1.2.3" {
		t.Errorf("ip = %q, want 10.1.2.3", gotIP)
	}
}

func TestRequestLoggerRecordsMethodPathAndIP(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := middleware.Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		middleware.RequestMetadataMiddleware(),
		middleware.NewRequestLogger(logger),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"GET", "/api/status", "10.1.2.3"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestConnectionLimiterRejectMode(t *testing.T) {
	limit := config.ConnectionLimitConfig{MaxPerIP: 1, Mode: "reject"}
	handler := middleware.Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
		middleware.RequestMetadataMiddleware(),
		middleware.NewConnectionLimiter(newTestLogger(), func(string) int { return 1 }, func(string) {}, limit),
	)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestConnectionLimiterCycleMode(t *testing.T) {
	var cycled string
	limit := config.ConnectionLimitConfig{MaxPerIP: 1, Mode: "cycle"}
	handler := middleware.Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
		middleware.RequestMetadataMiddleware(),
		middleware.NewConnectionLimiter(newTestLogger(), func(string) int { return 1 }, func(ip string) { cycled = ip }, limit),
	)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if cycled != "10.1.2.3" {
		t.Errorf("cycled ip = %q, want 10.1.2.3", cycled)
	}
}

func TestConnectionLimiterDisabledPassesThrough(t *testing.T) {
	limit := config.ConnectionLimitConfig{MaxPerIP: 0, Mode: "reject"}
	handler := middleware.Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
		middleware.RequestMetadataMiddleware(),
		middleware.NewConnectionLimiter(newTestLogger(), func(string) int { return 99 }, func(string) {}, limit),
	)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
