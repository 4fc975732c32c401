package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"syndic/internal/jwtauth"
	"syndic/internal/platform/config"
	"syndic/internal/platform/httpserver"
	"syndic/internal/platform/logger"
	platformredis "syndic/internal/platform/redis"
	"syndic/internal/registry/audit"
	auditkafka "syndic/internal/registry/audit/kafka"
	"syndic/internal/registry/cache"
	"syndic/internal/registry/certs"
	"syndic/internal/registry/deferred"
	"syndic/internal/registry/keys"
	"syndic/internal/registry/metrics"
	"syndic/internal/registry/scope"
	"syndic/internal/registry/service"
	"syndic/internal/registry/store"
	"syndic/internal/registry/store/memory"
	"syndic/internal/registry/store/postgres"
	httptransport "syndic/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var keyedStore store.KeyedStore
	if cfg.PostgresURL != "" {
		pg, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		keyedStore = pg
	} else {
		log.Warn("no postgres configured, using in-memory store")
		keyedStore = memory.New()
	}

	var readCache cache.ReadCache = cache.NewMemory()
	health := func(ctx context.Context) error { return nil }
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		readCache = cache.NewRedis(redisClient.Client, cfg.CacheTTL)
		health = redisClient.Health
	}

	issuerKey, err := loadIssuerKey(cfg.IssuerKeyFile)
	if err != nil {
		log.Error("issuer key unavailable", "error", err)
		os.Exit(1)
	}
	if cfg.IssuerKeyFile == "" {
		log.Warn("no issuer key file configured, generated an ephemeral signing key")
	}

	var publisher audit.Publisher
	auditChannel := audit.NewChannel(1024)
	if len(cfg.KafkaSeeds) > 0 {
		kafkaPublisher, err := auditkafka.New(cfg.KafkaSeeds, cfg.KafkaTopic)
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kafkaPublisher.Close(flushCtx); err != nil {
				log.Warn("kafka flush on shutdown failed", "error", err)
			}
		}()
		publisher = kafkaPublisher
	} else {
		publisher = auditChannel
		go func() {
			_ = audit.NewLogWorker(auditChannel.Inbox(), log).Run(ctx)
		}()
	}

	sink := deferred.NewWorker(256, log)
	go func() { _ = sink.Run(ctx) }()

	scopeManager := scope.NewManager(keyedStore, cfg.ScopeName)
	registryMetrics := metrics.New()
	registry := service.New(keyedStore, readCache, sink, scopeManager,
		service.WithLogger(log),
		service.WithMetrics(registryMetrics),
		service.WithAudit(publisher),
	)
	issuer := certs.NewIssuer(registry, scopeManager, issuerKey, certs.JSONCodec{}, registryMetrics)
	tokens := jwtauth.NewService(cfg.JWTSigningKey, "syndic")

	handler := httptransport.NewHandler(registry, issuer, tokens, log, health)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	log.Info("starting syndic metadata service", "addr", cfg.Addr, "scope", cfg.ScopeName)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// loadIssuerKey reads the PEM signing key from disk, or generates an
// ephemeral one so the service still runs in development. Ephemeral keys
// invalidate every outstanding certificate on restart.
func loadIssuerKey(path string) (string, error) {
	if path == "" {
		_, priv, err := keys.GenerateKeyPair(keys.DefaultBits)
		return priv, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
