package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestKeyTransportDoesNotMutateRequest(t *testing.T) {
	stub := &stubTransport{status: http.StatusOK, body: `{}`}
	transport := NewKeyTransport("secret-key", stub)

	req, err := http.NewRequest(http.MethodPost, "https://example.test/v1beta/models/m:generateContent?alt=json", nil)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	_ = resp.Body.Close()

	if got := req.URL.RawQuery; got != "alt=json" {
		t.Errorf("original request query changed to %q", got)
	}

	sent := stub.lastReq.URL.Query()
	if sent.Get("key") != "secret-key" {
		t.Errorf("sent key = %q, want secret-key", sent.Get("key"))
	}
	if sent.Get("alt") != "json" {
		t.Errorf("existing query parameters were dropped: %v", sent)
	}
}

func TestKeyTransportReplacesCallerKey(t *testing.T) {
	stub := &stubTransport{status: http.StatusOK, body: `{}`}
	transport := NewKeyTransport("server-key", stub)

	req, err := http.NewRequest(http.MethodPost, "https://example.test/x?key=client-key", nil)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	_ = resp.Body.Close()

	if got := stub.lastReq.URL.Query()["key"]; len(got) != 1 || got[0] != "server-key" {
		t.Errorf("sent key values = %v, want [server-key]", got)
	}
}

// echoURLTransport fails every request with an error that embeds the outgoing URL.
type echoURLTransport struct {
	cause error
}

func (t echoURLTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return nil, fmt.Errorf("dial %s: %w", req.URL, t.cause)
}

func TestKeyTransportRedactsKeyFromErrors(t *testing.T) {
	const key = "secret/key+1"
	transport := NewKeyTransport(key, echoURLTransport{cause: context.DeadlineExceeded})

	req, err := http.NewRequest(http.MethodPost, "https://example.test/x", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = transport.RoundTrip(req)
	if err == nil {
		t.Fatal("expected error")
	}
	if msg := err.Error(); strings.Contains(msg, key) || strings.Contains(msg, url.QueryEscape(key)) {
		t.Errorf("error leaks key: %s", msg)
	}
	if !strings.Contains(err.Error(), "REDACTED") {
		t.Errorf("error not redacted: %s", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("cause lost: %v", err)
	}
}

func TestGenerateContentDoesNotLeakKey(t *testing.T) {
	const key = "secret-key"
	client := NewClient(WithBaseURL("https://example.test"))

	_, err := client.GenerateContent(context.Background(), "hi",
		NewKeyTransport(key, echoURLTransport{cause: errors.New("connection refused")}))

	var gerr *Error
	if !errors.As(err, &gerr) || gerr.Kind != KindNetwork {
		t.Fatalf("error = %v, want KindNetwork", err)
	}
	if strings.Contains(err.Error(), key) {
		t.Errorf("error leaks key: %s", err)
	}
}
