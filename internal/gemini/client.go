package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public Generative Language API host.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultModel is the model prompts are sent to unless configured otherwise.
	DefaultModel = "gemini-pro"
	// DefaultTimeout bounds a single generateContent call including the response body.
	DefaultTimeout = 30 * time.Second

	// maxResponseBytes caps how much of an upstream body is read.
	maxResponseBytes = 8 << 20
)

// Client issues generateContent calls. It is stateless and safe for concurrent use.
type Client struct {
	baseURL string
	model   string
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host, e.g. for a regional endpoint or a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithTimeout overrides DefaultTimeout. Zero disables the client-side timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a Client with defaults overridden by opts.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the generateContent URL without credentials.
func (c *Client) Endpoint() string {
	return c.baseURL + "/v1beta/models/" + url.PathEscape(c.model) + ":generateContent"
}

// GenerateContent sends prompt as a single-turn request and returns the first candidate's text.
// Exactly one HTTP request is made; there are no retries. The transport must authorize the
// request, usually via NewKeyTransport. All failures are returned as *Error.
func (c *Client) GenerateContent(ctx context.Context, prompt string, transport http.RoundTripper) (string, error) {
	if transport == nil {
		return "", &Error{Kind: KindNetwork, Err: errors.New("transport cannot be nil")}
	}

	body, err := json.Marshal(newTextRequest(prompt))
	if err != nil {
		return "", &Error{Kind: KindParse, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindNetwork, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: transportErrorKind(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &Error{Kind: transportErrorKind(err), StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if !json.Valid(raw) {
			return "", &Error{Kind: KindParse, StatusCode: resp.StatusCode, Err: errors.New("upstream error body is not valid JSON")}
		}
		return "", &Error{Kind: KindUpstreamStatus, StatusCode: resp.StatusCode, Body: json.RawMessage(raw)}
	}

	var decoded GenerateContentResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &Error{Kind: KindParse, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	text, ok := decoded.FirstText()
	if !ok {
		return "", &Error{Kind: KindMalformed, StatusCode: resp.StatusCode, Body: json.RawMessage(raw)}
	}

	return text, nil
}

// transportErrorKind separates timeouts from other transport failures.
func transportErrorKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}
