// Package gemini calls the Gemini generateContent REST endpoint for single-turn text prompts.
//
// The API key is never part of a Client. It is attached per call by the transport returned
// from NewKeyTransport, which adds the "key" query parameter to a clone of the outbound
// request. Errors produced by net/http embed the caller's request URL, and errors from
// the underlying transport have the key replaced by REDACTED before they are returned.
//
//	client := gemini.NewClient()
//	text, err := client.GenerateContent(ctx, "hello", gemini.NewKeyTransport(apiKey, nil))
//
// Every failure is reported as *Error with a Kind, so callers can branch on the outcome
// without inspecting transport internals:
//
//	var gerr *gemini.Error
//	if errors.As(err, &gerr) && gerr.Kind == gemini.KindUpstreamStatus {
//		// gerr.StatusCode and gerr.Body carry the upstream error response
//	}
package gemini
