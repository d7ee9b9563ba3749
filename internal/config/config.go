package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr            string        `yaml:"addr"`            // ":8080"
	ReadTimeout     time.Duration `yaml:"readTimeout"`     // "15s"
	WriteTimeout    time.Duration `yaml:"writeTimeout"`    // "30s"
	IdleTimeout     time.Duration `yaml:"idleTimeout"`     // "60s"
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"` // "10s"
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // "parent-portal"
	Version   string `yaml:"version"`   // "0.1.0"
	AddSource bool   `yaml:"addSource"` // true/false
	Backend   string `yaml:"backend"`   // "std"|"zap"
	Debug     bool   `yaml:"debug"`
	Level     string `yaml:"level"` // debug|info|warn|error
}

type Backend struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"` // "15s"
}

func (b Backend) Validate() error {
	if b.BaseURL == "" {
		return errors.New("backend.baseURL is required")
	}
	u, err := url.Parse(b.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.baseURL must be an absolute http(s) url, got %q", b.BaseURL)
	}
	if b.Timeout <= 0 {
		return errors.New("backend.timeout must be > 0")
	}

	return nil
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"` // "portal:"
}

const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

type Session struct {
	Store         string `yaml:"store"`         // memory|file|redis
	Path          string `yaml:"path"`          // file store location
	EncryptionKey string `yaml:"encryptionKey"` // hex, 32 bytes; empty = plaintext
	Redis         Redis  `yaml:"redis"`
}

// Key decodes EncryptionKey; nil when unset.
func (s Session) Key() ([]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil
	}
	k, err := hex.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("session.encryptionKey: %w", err)
	}
	if len(k) != 32 {
		return nil, fmt.Errorf("session.encryptionKey must be 32 bytes, got %d", len(k))
	}
	return k, nil
}

func (s Session) Validate() error {
	switch s.Store {
	case StoreMemory:
	case StoreFile:
		if s.Path == "" {
			return errors.New("session.path is required for the file store")
		}
		if _, err := s.Key(); err != nil {
			return err
		}
	case StoreRedis:
		if s.Redis.Addr == "" {
			return errors.New("session.redis.addr is required for the redis store")
		}
	default:
		return fmt.Errorf("session.store must be memory|file|redis, got %q", s.Store)
	}

	return nil
}

type Recovery struct {
	SingleUseToken *bool `yaml:"singleUseToken"` // default true
}

func (r Recovery) SingleUse() bool {
	return r.SingleUseToken == nil || *r.SingleUseToken
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Logging  Logging  `yaml:"logging"`
	Backend  Backend  `yaml:"backend"`
	Session  Session  `yaml:"session"`
	Recovery Recovery `yaml:"recovery"`
	CORS     CORS     `yaml:"cors"`
}

func (c *Config) Validate() error {
	if err := c.Backend.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}

	return nil
}

// Load reads CONFIG_PATH (default config/config.yaml) after loading an
// optional .env, then applies PORTAL_* overrides and defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = filepath.Join("config", "config.yaml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"PORTAL_HTTP_ADDR":      &cfg.HTTP.Addr,
		"PORTAL_LOG_ENV":        &cfg.Logging.Env,
		"PORTAL_LOG_LEVEL":      &cfg.Logging.Level,
		"PORTAL_BACKEND_URL":    &cfg.Backend.BaseURL,
		"PORTAL_SESSION_STORE":  &cfg.Session.Store,
		"PORTAL_SESSION_PATH":   &cfg.Session.Path,
		"PORTAL_SESSION_KEY":    &cfg.Session.EncryptionKey,
		"PORTAL_REDIS_ADDR":     &cfg.Session.Redis.Addr,
		"PORTAL_REDIS_PASSWORD": &cfg.Session.Redis.Password,
		"PORTAL_REDIS_PREFIX":   &cfg.Session.Redis.Prefix,
	}
	for k, dst := range str {
		if v, ok := os.LookupEnv(k); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := os.LookupEnv("PORTAL_BACKEND_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PORTAL_BACKEND_TIMEOUT: %w", err)
		}
		cfg.Backend.Timeout = d
	}
	if v, ok := os.LookupEnv("PORTAL_REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORTAL_REDIS_DB: %w", err)
		}
		cfg.Session.Redis.DB = n
	}
	if v, ok := os.LookupEnv("PORTAL_CORS_ORIGINS"); ok {
		cfg.CORS.AllowedOrigins = splitList(v)
	}

	return nil
}

func setDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logging.Service == "" {
		cfg.Logging.Service = "parent-portal"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 15 * time.Second
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = StoreFile
	}
	if cfg.Session.Store == StoreFile && cfg.Session.Path == "" {
		cfg.Session.Path = filepath.Join(".portal", "session.json")
	}
	if cfg.Session.Redis.Prefix == "" {
		cfg.Session.Redis.Prefix = "portal:"
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
