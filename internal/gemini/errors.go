package gemini

import (
	"encoding/json"
	"fmt"
)

// Kind classifies why a generateContent call did not produce text.
type Kind int

const (
	// KindNetwork means the request could not be sent or the response could not be read.
	KindNetwork Kind = iota + 1
	// KindTimeout means the request exceeded the client timeout or its context deadline.
	KindTimeout
	// KindParse means the upstream body was not valid JSON.
	KindParse
	// KindUpstreamStatus means the upstream answered with a non-2xx status and a JSON body.
	KindUpstreamStatus
	// KindMalformed means a 2xx JSON body lacked candidates[0].content.parts[0].text.
	KindMalformed
)

// String returns a stable lowercase name suitable for log attributes.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindParse:
		return "parse"
	case KindUpstreamStatus:
		return "upstream_status"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the single error type returned by Client.GenerateContent.
type Error struct {
	Kind Kind

	// StatusCode is the upstream HTTP status. Zero when no response was received.
	StatusCode int

	// Body is the raw upstream JSON body for KindUpstreamStatus and KindMalformed.
	Body json.RawMessage

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("gemini %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("gemini %s: %v", e.Kind, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("gemini %s (status %d)", e.Kind, e.StatusCode)
	default:
		return "gemini " + e.Kind.String()
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}
