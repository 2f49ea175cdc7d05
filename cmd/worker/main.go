/**
 * Lab Report Worker - Main Entry Point
 *
 * Go worker that turns scanned veterinary lab reports into structured
 * test panels.
 *
 * Architecture:
 * - BullMQ-compatible Redis consumer for extraction jobs
 * - Word-level Tesseract OCR (kor+eng)
 * - Geometric extraction pipeline: line assembly, body location,
 *   3-tier header resolution (ocr -> inferred -> llm), table fill,
 *   normalization, final filter
 * - VoyageAI panel embeddings + Qdrant for similarity search
 * - PostgreSQL persistence for jobs and structured results
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vetpipe/labreport-worker/internal/config"
	"github.com/vetpipe/labreport-worker/internal/extract"
	"github.com/vetpipe/labreport-worker/internal/processor"
	"github.com/vetpipe/labreport-worker/internal/queue"
	"github.com/vetpipe/labreport-worker/internal/storage"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Lab Report Worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Qdrant=%s, Queue=%s, Workers=%d",
		cfg.RedisURL, cfg.QdrantURL, cfg.QueueName, cfg.WorkerConcurrency)

	// Unified storage manager (PostgreSQL + Qdrant)
	log.Printf("Connecting to storage (PostgreSQL + Qdrant)...")
	storageManager, err := storage.NewStorageManager(
		cfg.DatabaseURL,
		cfg.QdrantURL,
		cfg.QdrantCollection,
	)
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	defer storageManager.Close()
	log.Printf("Storage manager initialized (PostgreSQL + Qdrant)")

	// Report processor
	log.Printf("Initializing report processor...")
	pipeline := extract.DefaultSettings()
	pipeline.ConfidenceThreshold = cfg.ConfidenceThreshold
	pipeline.PadShortRows = cfg.PadShortRows
	pipeline.Assembler.MinConfidence = cfg.MinTokenConfidence
	pipeline.Assembler.Alpha = cfg.LineClusterAlpha
	pipeline.Header.AlignmentThreshold = cfg.HeaderAlignmentThreshold

	proc, err := processor.NewReportProcessor(&processor.ProcessorConfig{
		StorageManager: storageManager,
		MaxFileSize:    cfg.MaxFileSize,
		TesseractLang:  cfg.TesseractLang,
		LLMBaseURL:     cfg.LLMBaseURL,
		LLMAPIKey:      cfg.LLMAPIKey,
		LLMModel:       cfg.LLMModel,
		LLMTimeout:     time.Duration(cfg.LLMTimeout) * time.Millisecond,
		VoyageAPIKey:   cfg.VoyageAPIKey,
		Pipeline:       pipeline,
	})
	if err != nil {
		log.Fatalf("Failed to initialize report processor: %v", err)
	}
	log.Printf("Report processor initialized (Tesseract %s)", cfg.TesseractLang)

	// Queue consumer. The bullmq driver matches the TypeScript
	// RedisQueue used by the clinic API; asynq serves Go-native
	// producers.
	log.Printf("Connecting to Redis queue (driver=%s)...", cfg.QueueDriver)
	var stopConsumer func() error
	switch cfg.QueueDriver {
	case "asynq":
		consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
		if err != nil {
			log.Fatalf("Failed to initialize queue consumer: %v", err)
		}
		if err := consumer.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start queue consumer: %v", err)
		}
		stopConsumer = func() error { return consumer.Stop(context.Background()) }
	default:
		consumer, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
		if err != nil {
			log.Fatalf("Failed to initialize queue consumer: %v", err)
		}
		if err := consumer.Start(); err != nil {
			log.Fatalf("Failed to start queue consumer: %v", err)
		}
		stopConsumer = consumer.Stop
	}
	log.Printf("Queue consumer initialized with concurrency=%d", cfg.WorkerConcurrency)

	log.Printf("===========================================")
	log.Printf("Lab Report Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s (driver=%s)", cfg.QueueName, cfg.QueueDriver)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("OCR: Tesseract (%s), word-level boxes", cfg.TesseractLang)
	log.Printf("Header tiers: ocr -> inferred -> llm (%s)", cfg.LLMModel)
	log.Printf("Confidence threshold: %.2f", cfg.ConfidenceThreshold)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	log.Printf("Stopping queue consumer...")
	if err := stopConsumer(); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	} else {
		log.Printf("Queue consumer stopped successfully")
	}

	log.Printf("Closing storage manager...")
	if err := storageManager.Close(); err != nil {
		log.Printf("Error closing storage manager: %v", err)
	} else {
		log.Printf("Storage manager closed")
	}

	log.Printf("Shutdown complete")
}

// Health check endpoint (optional - can be added via HTTP server)
func healthCheck(db *storage.PostgresClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
