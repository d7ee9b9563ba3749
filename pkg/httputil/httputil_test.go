package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareRequestID_GeneratesAndForwards(t *testing.T) {
	var seen string
	h := MiddlewareRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if seen == "" || rec.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("expected generated request id echoed, ctx=%q header=%q", seen, rec.Header().Get(HeaderRequestID))
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" {
		t.Fatalf("expected forwarded id, got %q", seen)
	}
}

func TestError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx := WithRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "rid")
	Error(ctx, rec, http.StatusBadRequest, "invalid JSON", map[string]any{"kind": "validation"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Error struct {
			Message   string         `json:"message"`
			Meta      map[string]any `json:"meta"`
			RequestID string         `json:"requestId"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Message != "invalid JSON" || body.Error.Meta["kind"] != "validation" || body.Error.RequestID != "rid" {
		t.Fatalf("unexpected envelope: %+v", body.Error)
	}
}
