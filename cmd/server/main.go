// File: cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log" // Standard log for critical startup/shutdown messages before/after zap is active
	"os"
	"os/signal"
	"syscall"

	"marketplace_backend/internal/config"
	platformElasticsearch "marketplace_backend/internal/platform/elasticsearch"
	"marketplace_backend/internal/platform/database"
	"marketplace_backend/internal/platform/logger"
	"marketplace_backend/internal/projection"

	"go.uber.org/zap"
)

func main() {
	reindexCmd := flag.NewFlagSet("reindex", flag.ExitOnError)
	batchSize := reindexCmd.Int("batch-size", 100, "Batch size for reindexing projection rows")

	if len(os.Args) > 1 && os.Args[1] == "reindex" {
		reindexCmd.Parse(os.Args[2:])
		runReindex(*batchSize)
		return
	}

	startServer()
}

func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	server, cleanup, err := initializeServer(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize server: %v", err)
	}
	defer cleanup()

	go func() {
		if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Fatalf("FATAL: Server failed to start or crashed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("INFO: Received signal '%s'. Shutting down server...", sig)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server forced to shutdown due to error: %v", err)
	} else {
		log.Println("INFO: Server shutdown complete.")
	}
	log.Println("INFO: Application exiting.")
}

// runReindex rebuilds the search mirror from the projection tables in
// batches. Useful after a mapping change or a lost index.
func runReindex(batchSize int) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration for reindex: %v", err)
	}
	appLogger, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger for reindex: %v", err)
	}
	db, err := database.NewGORM(cfg)
	if err != nil {
		appLogger.Fatal("FATAL: Failed to initialize database for reindex", zap.Error(err))
	}
	defer database.CloseGORMDB(db)

	esClient, err := platformElasticsearch.NewClient(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("FATAL: Failed to initialize Elasticsearch client for reindex", zap.Error(err))
	}

	mirror := projection.NewMirror(esClient, appLogger)
	writer := projection.NewWriter(db, mirror, appLogger)

	ctx := context.Background()
	if err := mirror.EnsureIndex(ctx); err != nil {
		appLogger.Fatal("FATAL: Failed to create/verify search index before reindex", zap.Error(err))
	}

	offset := 0
	totalSynced := 0
	totalFailed := 0
	for {
		rows, err := writer.ListRowsBatch(ctx, offset, batchSize)
		if err != nil {
			appLogger.Fatal("FATAL: Failed to fetch projection batch",
				zap.Int("offset", offset), zap.Error(err))
		}
		if len(rows) == 0 {
			break
		}

		synced, failed, err := mirror.BulkIndex(ctx, rows)
		if err != nil {
			appLogger.Fatal("FATAL: Bulk index failed",
				zap.Int("offset", offset), zap.Error(err))
		}
		totalSynced += synced
		totalFailed += failed
		appLogger.Info("Batch reindexed",
			zap.Int("offset", offset), zap.Int("synced", synced), zap.Int("failed", failed))

		offset += len(rows)
	}

	appLogger.Info("Reindex finished",
		zap.Int("total_synced", totalSynced), zap.Int("total_failed", totalFailed))
	if totalFailed > 0 {
		appLogger.Fatal(fmt.Sprintf("FATAL: %d documents failed to reindex", totalFailed))
	}
}
