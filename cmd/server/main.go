package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/polyglot/pkg/admission"
	"github.com/dasmlab/polyglot/pkg/backend"
	"github.com/dasmlab/polyglot/pkg/detect"
	"github.com/dasmlab/polyglot/pkg/federation"
	"github.com/dasmlab/polyglot/pkg/server"
	"github.com/dasmlab/polyglot/pkg/translator"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	// Set log level
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.WithFields(logrus.Fields{
		"port":       cfg.Port,
		"grpc_port":  cfg.GRPCPort,
		"mode":       cfg.Mode,
		"models":     cfg.Models,
		"clients":    cfg.Clients,
		"rate_limit": cfg.RateLimit,
		"detector":   cfg.Detector,
		"log_level":  level.String(),
	}).Info("Starting polyglot translation server")

	catalog := backend.DefaultCatalog()
	if cfg.CatalogPath != "" {
		if catalog, err = backend.LoadCatalog(cfg.CatalogPath); err != nil {
			logger.WithError(err).Fatal("Failed to load backend catalog")
		}
	}

	tr, err := newTranslator(cfg, catalog, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create translator")
	}

	limiter, closeStore := newLimiter(cfg, logger)
	defer closeStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resetCtx, resetCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := limiter.Reset(resetCtx); err != nil {
		logger.WithError(err).Warn("Failed to reset request counter, continuing with its current value")
	}
	resetCancel()

	// Models load in the background so /health answers right away.
	go func() {
		if err := tr.InitializeModels(ctx, cfg.Preload); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("Failed to initialize models")
		}
	}()

	httpServer := server.NewHTTPServer(server.Config{
		Translator:      tr,
		Limiter:         limiter,
		DefaultLanguage: cfg.DefaultLanguage,
		Port:            cfg.Port,
		Logger:          logger,
	})

	errChan := make(chan error, 2)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()

	var grpcServer *server.GRPCServer
	if cfg.GRPCPort > 0 {
		grpcServer = server.NewGRPCServer(server.GRPCConfig{
			Translator: tr,
			Port:       cfg.GRPCPort,
			Logger:     logger,
		})
		go func() {
			if err := grpcServer.Start(ctx); err != nil {
				errChan <- err
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.WithError(err).Error("Server error")
	case sig := <-sigChan:
		logger.WithFields(logrus.Fields{
			"signal": sig.String(),
		}).Info("Received signal, shutting down gracefully...")
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if grpcServer != nil {
		grpcServer.Stop(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server did not shut down cleanly")
	} else {
		logger.Info("HTTP server stopped gracefully")
	}
}

// newTranslator builds the translator for the configured mode.
func newTranslator(cfg *Config, catalog *backend.Catalog, logger *logrus.Logger) (translator.Translator, error) {
	switch cfg.Mode {
	case ModeProxy:
		logger.WithField("clients", cfg.Clients).Info("Starting translator in proxy mode")
		client, err := federation.New(federation.Config{
			Peers:    cfg.Clients,
			Resolver: federation.NewSRVResolver(cfg.DNSNamespace, cfg.PeerAddressTTL),
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return translator.NewFederated(translator.FederatedConfig{
			Client:  client,
			Catalog: catalog,
			Logger:  logger,
		})

	case ModeClient:
		logger.WithField("models", cfg.Models).Info("Starting translator in client mode")
		entries, err := catalog.Select(cfg.Models)
		if err != nil {
			return nil, err
		}
		detector, err := detect.New(detect.Kind(cfg.Detector), cfg.DetectorURL, logger)
		if err != nil {
			return nil, err
		}
		return translator.NewLocal(translator.LocalConfig{
			Backends: entries,
			Detector: detector,
			Logger:   logger,
		})

	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

// newLimiter creates the admission limiter on Redis when configured, else
// on an in-process counter. The returned func releases the store.
func newLimiter(cfg *Config, logger *logrus.Logger) (*admission.Limiter, func()) {
	if cfg.RateLimit <= 0 {
		logger.Info("Rate limiting disabled")
		return admission.New(nil, 0, logger), func() {}
	}

	if cfg.RedisAddr == "" {
		logger.WithField("limit", cfg.RateLimit).Info("Rate limiting enabled with an in-process counter")
		return admission.New(admission.NewMemoryStore(), cfg.RateLimit, logger), func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).WithField("redis_addr", cfg.RedisAddr).Warn("Redis is not reachable yet")
	}
	logger.WithFields(logrus.Fields{
		"limit":       cfg.RateLimit,
		"redis_addr":  cfg.RedisAddr,
		"counter_key": cfg.CounterKey,
	}).Info("Rate limiting enabled with a shared counter")

	store := admission.NewRedisStore(client, cfg.CounterKey)
	return admission.New(store, cfg.RateLimit, logger), func() {
		if err := client.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close Redis client")
		}
	}
}
