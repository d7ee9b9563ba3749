package httputil

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/steva-school/parent-portal/pkg/logger"
)

type ctxKey string

const (
	HeaderRequestID        = "X-Request-ID"
	ctxKeyReqID     ctxKey = "req_id"
)

// MiddlewareRequestID forwards or generates X-Request-ID and attaches a
// request-scoped logger to the context.
func MiddlewareRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)

		ctx := WithRequestID(r.Context(), reqID)
		ctx = logger.WithContext(ctx, logger.L().With(
			slog.String("req_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithRequestID(ctx context.Context, reqID string) context.Context {
	return context.WithValue(ctx, ctxKeyReqID, reqID)
}

func FromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyReqID).(string)
	return v, ok && v != ""
}
