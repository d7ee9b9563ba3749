package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

type Envelope map[string]any

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

// OK writes data inside the success envelope.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{"data": data})
}

// Error writes the uniform error envelope (message + optional meta).
func Error(ctx context.Context, w http.ResponseWriter, status int, msg string, meta map[string]any) {
	body := Envelope{"message": msg}
	if len(meta) > 0 {
		body["meta"] = meta
	}
	if rid, ok := FromContext(ctx); ok {
		body["requestId"] = rid
	}
	JSON(w, status, Envelope{"error": body})
}
