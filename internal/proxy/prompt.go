package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/gemini-proxy/internal/gemini"
	"github.com/florianilch/gemini-proxy/internal/observability/middleware"
)

// Client-facing error messages. Clients match on these strings, keep them stable.
const (
	msgMethodNotAllowed      = "Method Not Allowed"
	msgPromptRequired        = "Prompt is required"
	msgKeyNotConfigured      = "API key not configured on the server."
	msgInvalidAIResponse     = "Invalid response structure from AI."
	msgFailedToFetch         = "Failed to fetch response from AI"
	msgRequestEntityTooLarge = "Request Entity Too Large"
)

// Credentials holds the server-side secrets injected at startup.
type Credentials struct {
	// APIKey authorizes upstream calls. Empty means not configured.
	APIKey string
}

// promptRequest is the inbound request body.
type promptRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// promptResponse is the body of a successful prompt request.
type promptResponse struct {
	Response string `json:"response"`
}

// PromptHandler forwards a single prompt to Gemini and returns the generated text.
// It holds no mutable state and is safe for concurrent use.
type PromptHandler struct {
	Credentials Credentials
	Client      *gemini.Client
	Validate    *validator.Validate

	// Transport is the base transport for upstream calls; the API key is layered on top.
	Transport http.RoundTripper
}

// Compile-time check to ensure PromptHandler implements http.Handler
var _ http.Handler = (*PromptHandler)(nil)

// ServeHTTP implements http.Handler.
func (h *PromptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(ctx, w, messageResponse{Message: msgMethodNotAllowed}, http.StatusMethodNotAllowed)
		return
	}

	prompt, ok := h.decodePrompt(ctx, w, r)
	if !ok {
		return
	}

	if h.Credentials.APIKey == "" {
		slog.ErrorContext(ctx, "upstream API key is not configured")
		writeJSONError(ctx, w, msgKeyNotConfigured, http.StatusInternalServerError)
		return
	}

	if ctx.Err() != nil {
		slog.DebugContext(ctx, "client disconnected before upstream request")
		return
	}

	text, err := h.Client.GenerateContent(ctx, prompt, gemini.NewKeyTransport(h.Credentials.APIKey, h.Transport))
	if err != nil {
		h.writeUpstreamError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, promptResponse{Response: text}, http.StatusOK)
}

// decodePrompt reads and validates the request body. On failure it writes the
// response and returns false.
func (h *PromptHandler) decodePrompt(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	req, err := readPromptRequest(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			slog.WarnContext(ctx, "request exceeds size limit", "limit_bytes", maxBytesErr.Limit)
			writeJSONError(ctx, w, msgRequestEntityTooLarge, http.StatusRequestEntityTooLarge)
			return "", false
		}
		// Bodies that are empty, not JSON, or carry a non-string prompt have no usable prompt
		slog.DebugContext(ctx, "failed to decode request", "error", err)
		writeJSONError(ctx, w, msgPromptRequired, http.StatusBadRequest)
		return "", false
	}

	if err := h.Validate.StructCtx(ctx, req); err != nil {
		middleware.SetLogAttrs(ctx, slog.String("validation_error", err.Error()))
		writeJSONError(ctx, w, msgPromptRequired, http.StatusBadRequest)
		return "", false
	}

	return req.Prompt, true
}

// readPromptRequest decodes a body holding exactly one JSON object.
// Only the exact key "prompt" is honoured; encoding/json alone would also accept "Prompt".
func readPromptRequest(body io.Reader) (promptRequest, error) {
	dec := json.NewDecoder(body)

	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return promptRequest{}, err
	}

	var trailing json.RawMessage
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after JSON object")
		}
		return promptRequest{}, err
	}

	var req promptRequest
	if raw, ok := fields["prompt"]; ok {
		if err := json.Unmarshal(raw, &req.Prompt); err != nil {
			return promptRequest{}, fmt.Errorf("decoding prompt: %w", err)
		}
	}
	return req, nil
}

// writeUpstreamError maps a failed upstream call to the client response.
// Upstream error bodies are passed through; everything else gets a fixed message.
func (h *PromptHandler) writeUpstreamError(ctx context.Context, w http.ResponseWriter, err error) {
	var gerr *gemini.Error
	if !errors.As(err, &gerr) {
		slog.ErrorContext(ctx, "upstream request failed", "error", err)
		writeJSONError(ctx, w, msgFailedToFetch, http.StatusInternalServerError)
		return
	}

	middleware.SetLogAttrs(ctx, slog.String("upstream_error_kind", gerr.Kind.String()))

	switch gerr.Kind {
	case gemini.KindUpstreamStatus:
		slog.ErrorContext(ctx, "upstream returned an error",
			"status", gerr.StatusCode,
			"body", string(gerr.Body),
		)
		writeJSONError(ctx, w, gerr.Body, gerr.StatusCode)
	case gemini.KindMalformed:
		slog.ErrorContext(ctx, "unexpected response structure from upstream", "body", string(gerr.Body))
		writeJSONError(ctx, w, msgInvalidAIResponse, http.StatusInternalServerError)
	case gemini.KindTimeout:
		slog.ErrorContext(ctx, "upstream request timed out", "error", err)
		writeJSONError(ctx, w, msgFailedToFetch, http.StatusInternalServerError)
	default:
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "client disconnected during upstream request")
			return
		}
		slog.ErrorContext(ctx, "upstream request failed", "kind", gerr.Kind.String(), "error", err)
		writeJSONError(ctx, w, msgFailedToFetch, http.StatusInternalServerError)
	}
}
