package httputil

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/steva-school/parent-portal/pkg/logger"
)

// MiddlewareLogging logs one line per request. Bodies are never logged:
// they carry passwords and tokens.
func MiddlewareLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &logResponseWriter{ResponseWriter: w}

		next.ServeHTTP(lrw, r)

		level := slog.LevelInfo
		switch {
		case lrw.status >= 500:
			level = slog.LevelError
		case lrw.status >= 400:
			level = slog.LevelWarn
		}

		logger.From(r.Context()).LogAttrs(r.Context(), level, "http request",
			slog.Int("status", lrw.status),
			slog.Int("bytes", lrw.bytes),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_ip", r.RemoteAddr),
			slog.String("user_agent", r.UserAgent()),
		)
	})
}

type logResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *logResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *logResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n

	return n, err
}
