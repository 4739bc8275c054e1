package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorResponse is the body of every failed prompt request except 405.
// Error is a string for errors produced here and the upstream JSON body for upstream errors.
type errorResponse struct {
	Error any `json:"error"`
}

// messageResponse is the body of a 405 response.
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
// Logs encoding failures internally using the provided context.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status are written before encoding to avoid buffering.
	// If encoding fails, the client may receive a partial response.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeJSONError writes {"error": detail} with the given status code.
func writeJSONError(ctx context.Context, w http.ResponseWriter, detail any, status int) {
	writeJSON(ctx, w, errorResponse{Error: detail}, status)
}
