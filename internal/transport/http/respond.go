package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/steva-school/parent-portal/internal/flow"
	"github.com/steva-school/parent-portal/pkg/errs"
	"github.com/steva-school/parent-portal/pkg/httputil"
	"github.com/steva-school/parent-portal/pkg/logger"
)

const maxBody = 1 << 20

// decode reads a JSON body. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	httputil.Error(r.Context(), w, http.StatusBadRequest, "invalid JSON", nil)
	return false
}

// writeOutcome renders a flow outcome with the screen to show next.
func writeOutcome(w http.ResponseWriter, r *http.Request, o flow.Outcome, data any) {
	if !o.OK() {
		writeError(w, r, o.Err, o.Message, o.Next)
		return
	}
	body := httputil.Envelope{"data": data}
	if o.Next != "" {
		body["screen"] = o.Next
	}
	if o.Message != "" {
		body["message"] = o.Message
	}
	httputil.JSON(w, http.StatusOK, body)
}

// writeError never exposes the raw error; only its kind, the user message and
// field-level messages leave the gateway.
func writeError(w http.ResponseWriter, r *http.Request, err error, msg string, screen flow.Screen) {
	kind := errs.KindOf(err)
	status := errs.ToHTTP(err)
	if msg == "" {
		msg = errs.UserMessage(err, http.StatusText(status))
	}

	e := httputil.Envelope{"message": msg, "kind": kind}
	if fields := errs.FieldsOf(err); len(fields) > 0 {
		e["meta"] = map[string]any{"fields": fields}
	}
	if rid, ok := httputil.FromContext(r.Context()); ok {
		e["requestId"] = rid
	}

	body := httputil.Envelope{"error": e}
	if screen != "" {
		body["screen"] = screen
	}

	if kind == errs.KindInternal {
		logger.From(r.Context()).Error("gateway request failed", slog.Any("err", err))
	}
	httputil.JSON(w, status, body)
}
