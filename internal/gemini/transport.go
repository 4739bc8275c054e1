package gemini

import (
	"net/http"
	"net/url"
	"strings"
)

// keyTransport attaches the API key as the "key" query parameter.
// It mirrors oauth2.Transport: the caller's request is never mutated.
type keyTransport struct {
	key  string
	base http.RoundTripper
}

// NewKeyTransport returns a RoundTripper that authorizes requests with apiKey.
// A nil base uses http.DefaultTransport. Errors from base are returned with the key redacted.
func NewKeyTransport(apiKey string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &keyTransport{key: apiKey, base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *keyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrip must not modify the request, see http.RoundTripper docs
	authorized := req.Clone(req.Context())
	query := authorized.URL.Query()
	query.Set("key", t.key)
	authorized.URL.RawQuery = query.Encode()

	resp, err := t.base.RoundTrip(authorized)
	if err != nil && t.key != "" {
		return nil, &redactedError{err: err, secret: t.key}
	}
	return resp, err
}

// redactedError hides a secret from the message of a wrapped error. The chain stays
// intact so errors.Is and errors.As still see the cause.
type redactedError struct {
	err    error
	secret string
}

func (e *redactedError) Error() string {
	msg := e.err.Error()
	msg = strings.ReplaceAll(msg, url.QueryEscape(e.secret), "REDACTED")
	return strings.ReplaceAll(msg, e.secret, "REDACTED")
}

func (e *redactedError) Unwrap() error {
	return e.err
}
