package proxy

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestHealthProbes(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		ready  bool
		status int
	}{
		{"liveness when ready", "/health/liveness", true, http.StatusOK},
		{"liveness when not ready", "/health/liveness", false, http.StatusOK},
		{"readiness when ready", "/health/readiness", true, http.StatusOK},
		{"readiness when not ready", "/health/readiness", false, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(Credentials{}, readyChecker(tt.ready), WithTransport(&stubUpstream{}))
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			rec := httptest.NewRecorder()
			p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
				t.Errorf("Cache-Control = %q, want no-cache", got)
			}
		})
	}
}

func TestProxySetsRequestID(t *testing.T) {
	p := newTestProxy(t, "test-key", &stubUpstream{status: http.StatusOK, body: helloResponse})

	req := httptest.NewRequest(http.MethodPost, PromptPath, strings.NewReader(`{"prompt":"hi"}`))
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}

	rec = httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PromptPath, nil))
	if got := rec.Header().Get("X-Request-ID"); got == "" {
		t.Error("X-Request-ID not generated")
	}
}

func TestProxyAccessLogCarriesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	// The access logger is captured from slog.Default when the proxy is built
	var buf bytes.Buffer
	prevLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prevLogger) })

	p := newTestProxy(t, "test-key", &stubUpstream{status: http.StatusOK, body: helloResponse})

	req := httptest.NewRequest(http.MethodPost, PromptPath, strings.NewReader(`{"prompt":"hi"}`))
	req.Header.Set("Traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	p.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "trace_id=4bf92f3577b34da6a3ce929d0e0e4736") {
		t.Errorf("access log missing trace_id: %s", buf.String())
	}
}

func TestProxyUnknownPath(t *testing.T) {
	p := newTestProxy(t, "test-key", &stubUpstream{})

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/other", strings.NewReader(`{"prompt":"hi"}`)))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if got, want := strings.TrimSpace(rec.Body.String()), `{"error":"Internal Server Error"}`; got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func TestApplyMiddlewaresOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := applyMiddlewares(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := strings.Join(order, ","); got != "outer,inner,handler" {
		t.Errorf("order = %s", got)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	if _, err := New(Credentials{}, nil); err == nil {
		t.Error("expected error for nil readiness checker")
	}
	if _, err := New(Credentials{}, readyChecker(true), WithMaxRequestBytes(0)); err == nil {
		t.Error("expected error for zero request size limit")
	}
}

func TestStartAndShutdown(t *testing.T) {
	p := newTestProxy(t, "test-key", &stubUpstream{status: http.StatusOK, body: helloResponse})

	ctx := context.Background()
	errCh, err := p.Start(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := p.Start(ctx, "127.0.0.1:0"); err == nil {
		t.Error("second Start should fail")
	}

	resp, err := http.Post("http://"+p.Addr()+PromptPath, "application/json", strings.NewReader(`{"prompt":"hi"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := strings.TrimSpace(string(body)); got != `{"response":"hello"}` {
		t.Errorf("body = %s", got)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			t.Errorf("runtime error after shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("error channel not closed after shutdown")
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	p := newTestProxy(t, "test-key", &stubUpstream{})
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown before Start: %v", err)
	}
	if p.Addr() != "" {
		t.Errorf("Addr before Start = %q, want empty", p.Addr())
	}
}
