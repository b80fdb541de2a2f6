package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"pactindex/api"
	"pactindex/config"
	"pactindex/db"
	"pactindex/ingest"
	"pactindex/metadata"
	"pactindex/projector"
	"pactindex/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("bootstrap database pool: %v", err)
		}
		defer pool.Close()
		st = store.NewPostgres(pool)
	} else {
		logger.Warn("no DATABASE_URL configured, using in-memory store")
		st = store.NewMemory()
	}

	var fetcher metadata.Fetcher = metadata.NewGatewayFetcher(cfg.IPFSGateway, cfg.MetadataTimeout)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		fetcher = metadata.NewCachedFetcher(fetcher, rdb, cfg.MetadataCacheTTL, logger)
	}
	resolver := metadata.NewResolver(fetcher, logger)

	dispatcher := ingest.NewDispatcher(
		projector.NewAgreementProjector(st, resolver, logger),
		projector.NewArbitrationProjector(st, logger),
	)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(st, api.NewTokenVerifier(cfg.APISecret), logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("query api listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	switch {
	case len(cfg.KafkaBrokers) > 0:
		source := ingest.NewKafkaSource(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, dispatcher, logger)
		defer source.Close()
		g.Go(func() error {
			logger.Info("consuming events", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)
			return source.Run(gctx)
		})
	case cfg.ReplayFile != "":
		source := ingest.NewFileSource(cfg.ReplayFile, dispatcher, logger)
		g.Go(func() error {
			return source.Run(gctx)
		})
	default:
		logger.Warn("no ingestion source configured, serving queries only")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("indexer stopped: %v", err)
	}
}
