package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/blobcache/blobcache/internal/config"
	"github.com/blobcache/blobcache/internal/metrics"
	"github.com/blobcache/blobcache/internal/netmon"
	"github.com/blobcache/blobcache/internal/repo"
	"github.com/blobcache/blobcache/internal/router"
	"github.com/blobcache/blobcache/internal/service"
	"github.com/blobcache/blobcache/internal/store"
	"github.com/blobcache/blobcache/internal/transfer"
)

func main() {
	cfgPath := os.Getenv("BLOBCACHE_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("load config", "path", cfgPath, "err", err)
		os.Exit(1)
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
		})
	}
	logger := slog.New(slog.NewJSONHandler(out, nil))
	slog.SetDefault(logger)

	metrics.Register()

	var jobs repo.JobRepo
	switch cfg.Repo {
	case "postgres":
		pg, err := repo.NewPostgresRepo(repo.PostgresSettings{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			DB:       cfg.Postgres.DB,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
		}.DSN())
		if err != nil {
			logger.Error("connect postgres", "err", err)
			os.Exit(1)
		}
		defer func() { _ = pg.Close() }()
		jobs = pg
	default:
		jobs = repo.NewInMemoryJobRepo()
	}

	st := store.New(cfg.BaseDir, logger)

	probe := netmon.NewProbe(cfg.ProbeURL, cfg.ProbeInterval, logger)
	probe.Run()
	defer probe.Stop()

	tr := transfer.NewHTTP(cfg.TransferTimeout, logger)

	svc := service.NewResolver(logger, st, probe, tr, jobs)
	defer svc.Close()

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router.New(logger, svc, cfg.APIToken),
		IdleTimeout:  120 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // event streams stay open
	}

	go func() {
		logger.Info("starting blobcached", "addr", server.Addr, "base_dir", cfg.BaseDir, "repo", cfg.Repo)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("received terminate, graceful shutdown", "sig", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
