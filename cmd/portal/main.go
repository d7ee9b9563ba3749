package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/steva-school/parent-portal/internal/apiclient"
	"github.com/steva-school/parent-portal/internal/config"
	"github.com/steva-school/parent-portal/internal/flow"
	"github.com/steva-school/parent-portal/internal/profile"
	"github.com/steva-school/parent-portal/internal/recovery"
	"github.com/steva-school/parent-portal/internal/registration"
	httpserver "github.com/steva-school/parent-portal/internal/server/http"
	"github.com/steva-school/parent-portal/internal/session"
	transport "github.com/steva-school/parent-portal/internal/transport/http"
	"github.com/steva-school/parent-portal/internal/verification"
	"github.com/steva-school/parent-portal/pkg/logger"
)

func main() {
	// 1) load config
	cfg, err := config.Load()
	if err != nil {
		println("failed to load config:", err.Error())
		os.Exit(1)
	}

	// 2) init logger (set.Default); empty env falls back to PORTAL_ENV/APP_ENV
	var env logger.Env
	if cfg.Logging.Env != "" {
		env = logger.ParseEnv(cfg.Logging.Env)
	}
	logger.Init(logger.Config{
		Env:          env,
		Service:      cfg.Logging.Service,
		Version:      cfg.Logging.Version,
		Upstream:     cfg.Backend.BaseURL,
		SessionStore: cfg.Session.Store,
		Backend:      logger.Backend(cfg.Logging.Backend),
		AddSource:    cfg.Logging.AddSource,
		Debug:        cfg.Logging.Debug,
		Level:        logger.ParseLevel(cfg.Logging.Level),
	})
	slog.Info("starting parent-portal", "version", cfg.Logging.Version, "backend", cfg.Backend.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3) session store
	store, closeStore, err := newStore(ctx, cfg.Session)
	if err != nil {
		slog.Error("session store init failed", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	// 4) backend client + flows
	api, err := apiclient.New(apiclient.Options{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Tokens:  session.TokenSource{Store: store},
	})
	if err != nil {
		slog.Error("api client init failed", "err", err)
		os.Exit(1)
	}

	nav := flow.LogNavigator{}
	sessions := session.NewManager(api, store, nav)
	router := transport.NewRouter(transport.Deps{
		Sessions:       sessions,
		Registration:   registration.New(api, sessions, nav),
		Verification:   verification.New(api, nav),
		Recovery:       recovery.New(api, nav, recovery.Options{SingleUseToken: cfg.Recovery.SingleUse()}),
		Profiles:       profile.NewService(api),
		Nav:            nav,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	// 5) server init
	srv := httpserver.New(httpserver.Config{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, router)

	// 6) graceful shutdown
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server stopped with error", "err", err)
		os.Exit(1)
	}

	slog.Info("parent-portal stopped")
}
