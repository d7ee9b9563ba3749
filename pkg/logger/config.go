package logger

import (
	"io"
	"log/slog"
)

type Backend string

const (
	BackendStd Backend = "std" // text in dev, JSON in stage/prod
	BackendZap Backend = "zap" // zap core behind slog
)

type Config struct {
	Service    string
	Version    string
	InstanceID string

	// Upstream is the school backend base URL; only its host is logged.
	Upstream     string
	SessionStore string

	Level   slog.Level
	Env     Env
	Backend Backend // default: std for dev, zap otherwise
	Debug   bool

	// Zap sampling, per second.
	SampleInitial    int
	SampleThereafter int

	AddSource bool

	// Output defaults to os.Stdout.
	Output io.Writer
}

func (c Config) level() slog.Level {
	if c.Debug && c.Level == 0 {
		return slog.LevelDebug
	}
	return c.Level
}

// ParseLevel maps "debug"|"info"|"warn"|"error" to a slog level; unknown
// values yield info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
