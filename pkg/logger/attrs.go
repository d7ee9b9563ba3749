package logger

import (
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
)

func ensureInstanceID(v string) string {
	if v != "" {
		return v
	}

	hn, err := os.Hostname()
	if err != nil || hn == "" {
		hn = "portal"
	}
	return hn + "-" + uuid.NewString()[:8]
}

// upstreamHost keeps only the host of the backend URL so credentials and
// paths never end up in logs.
func upstreamHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

func commonAttr(cfg Config) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Time("started_at", time.Now()),
	}

	var portal []any
	if host := upstreamHost(cfg.Upstream); host != "" {
		portal = append(portal, slog.String("upstream", host))
	}
	if cfg.SessionStore != "" {
		portal = append(portal, slog.String("session_store", cfg.SessionStore))
	}
	if len(portal) > 0 {
		attrs = append(attrs, slog.Group("portal", portal...))
	}
	return attrs
}
