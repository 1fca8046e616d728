// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ocel-tools/ocelbridge/internal/api"
	"github.com/ocel-tools/ocelbridge/internal/cache"
	"github.com/ocel-tools/ocelbridge/internal/config"
	"github.com/ocel-tools/ocelbridge/internal/log"
	"github.com/ocel-tools/ocelbridge/internal/relay"
	"github.com/ocel-tools/ocelbridge/internal/storage"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until the real config is loaded.
	log.Configure(log.Config{
		Level:   "info",
		Service: "ocelbridge",
		Version: version,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path: explicit flag, otherwise ${OCELBRIDGE_DATA}/config.yaml
	// when present.
	effectivePath := strings.TrimSpace(*configPath)
	if effectivePath == "" {
		dataDir := config.ParseString("OCELBRIDGE_DATA", config.Defaults().DataDir)
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectivePath = autoPath
		}
	}

	cfg, err := config.NewLoader(effectivePath, version).Load()
	if err != nil {
		logger.Fatal().Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", effectivePath).
			Msg("failed to load configuration")
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "ocelbridge",
		Version: version,
	})
	logger.Info().Str(log.FieldEvent, "daemon.start").
		Str("version", version).
		Str("listen_addr", cfg.ListenAddr).
		Msg("starting relay daemon")

	store, err := storage.OpenBadgerStore(filepath.Join(cfg.DataDir, "blobs"))
	if err != nil {
		logger.Fatal().Err(err).Str(log.FieldEvent, "storage.open_failed").Msg("cannot open blob store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("blob store close failed")
		}
	}()

	derivationCache := buildCache(cfg, logger)

	registry := relay.NewRegistry()
	dispatcher := relay.NewDispatcher(relay.DispatcherConfig{
		Registry:        registry,
		Store:           store,
		Cache:           derivationCache,
		CacheTTL:        cfg.CacheTTL,
		LoginBaseURL:    cfg.LoginBaseURL,
		Environment:     cfg.Environment,
		PlatformTimeout: cfg.PlatformTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(cfg, store, registry, dispatcher).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str(log.FieldEvent, "http.listen").Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		relay.NewReaper(registry, cfg.ReapInterval, cfg.IdleTimeout).Run(gctx)
		return nil
	})

	if effectivePath != "" {
		watchPath := effectivePath
		g.Go(func() error {
			// Log-level changes in the config file apply without restart;
			// everything else still needs one.
			return config.WatchLogLevel(gctx, watchPath, log.SetLevel)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "daemon.failed").Msg("daemon exited with error")
		os.Exit(1)
	}
	logger.Info().Str(log.FieldEvent, "daemon.stop").Msg("shutdown complete")
}

// buildCache selects redis when configured, otherwise an in-process cache.
func buildCache(cfg config.AppConfig, logger zerolog.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(time.Minute)
	}
	rc, err := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, log.WithComponent("cache"))
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "cache.redis_unavailable").
			Msg("redis unreachable, falling back to in-memory cache")
		return cache.NewMemoryCache(time.Minute)
	}
	return rc
}
