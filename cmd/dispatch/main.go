package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kabboss/livreur-dispatch/internal/cache"
	"github.com/kabboss/livreur-dispatch/internal/config"
	"github.com/kabboss/livreur-dispatch/internal/db"
	"github.com/kabboss/livreur-dispatch/internal/dispatch"
	"github.com/kabboss/livreur-dispatch/internal/kafka"
	"github.com/kabboss/livreur-dispatch/internal/logger"
	"github.com/kabboss/livreur-dispatch/internal/repository/postgresql"
	"github.com/kabboss/livreur-dispatch/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	l := logger.New("dispatch")
	defer func() { _ = l.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	database, err := db.Connect(ctx, cfg.Dsn())
	if err != nil {
		log.Fatalf("Database init error: %v", err)
	}
	defer database.Close()

	orderRepo := postgresql.NewOrderRepo(database)
	recordRepo := postgresql.NewAssignmentRecordRepo(database)
	outboxRepo := postgresql.NewOutboxTaskRepo()
	driverRepo := postgresql.NewDriverRepo(database)

	if cfg.SeedDriverUsername != "" && cfg.SeedDriverPassword != "" {
		if err := driverRepo.EnsureDriver(ctx, cfg.SeedDriverUsername, cfg.SeedDriverPassword); err != nil {
			log.Fatalf("Driver seed error: %v", err)
		}
	}

	var producer kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewWriterProducer(cfg.KafkaBrokers)
	} else {
		producer = kafka.NewConsoleProducer()
	}

	guard := dispatch.NewGuard(database, orderRepo, recordRepo, outboxRepo, cfg.KafkaAssignmentTopic)

	assignmentCache := cache.NewAssignmentCache(recordRepo)
	if err := assignmentCache.LoadInitialData(ctx); err != nil {
		log.Printf("WARNING: failed to warm assignment cache: %v", err)
	}

	srv := server.New(guard, driverRepo, recordRepo, assignmentCache, producer, cfg.KafkaAuditTopic, l)

	publisher := kafka.NewPublisher(database, outboxRepo, producer, kafka.PublisherConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx, cfg.HTTPPort)
	})

	g.Go(func() error {
		publisher.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: server shutdown failed: %v", err)
		}
		publisher.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Dispatch service exited with error: %v", err)
	}
	log.Println("Dispatch service stopped")
}
