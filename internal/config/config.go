/**
 * Configuration for the lab-report extraction worker
 *
 * Loads configuration from environment variables (with .env support in main).
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL    string
	QueueName   string
	QueueDriver string // "bullmq" (RedisQueue-compatible) or "asynq"

	// PostgreSQL configuration
	DatabaseURL string

	// Qdrant vector database configuration
	QdrantURL        string
	QdrantCollection string

	// API Keys
	VoyageAPIKey string
	LLMAPIKey    string

	// Service URLs
	LLMBaseURL string
	LLMModel   string

	// Worker configuration
	WorkerConcurrency int
	MaxFileSize       int64
	ProcessingTimeout int // milliseconds
	LLMTimeout        int // milliseconds

	// Tesseract configuration
	TesseractPath string
	TesseractLang string

	// Pipeline tunables
	ConfidenceThreshold      float64 // final filter value-confidence gate
	MinTokenConfidence       float64 // assembler noise gate
	LineClusterAlpha         float64 // line band tolerance factor
	HeaderAlignmentThreshold float64 // header-body alignment gate
	PadShortRows             bool    // pad rows shorter than K with UNKNOWN

	// Node environment
	NodeEnv string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://vetpipe-redis:6379"),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "labreport-extraction"),
		QueueDriver:       getEnvOrDefault("QUEUE_DRIVER", "bullmq"),
		DatabaseURL:       getEnvOrThrow("DATABASE_URL"),
		QdrantURL:         getEnvOrDefault("QDRANT_URL", "vetpipe-qdrant:6334"),
		QdrantCollection:  getEnvOrDefault("QDRANT_COLLECTION", "labreport_panels"),
		VoyageAPIKey:      getEnvOrDefault("VOYAGE_API_KEY", ""),
		LLMAPIKey:         getEnvOrDefault("LLM_API_KEY", ""),
		LLMBaseURL:        getEnvOrDefault("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:          getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 10),
		MaxFileSize:       getEnvAsInt64OrDefault("MAX_FILE_SIZE", 52428800),  // 50MB
		ProcessingTimeout: getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		LLMTimeout:        getEnvAsIntOrDefault("LLM_TIMEOUT", 20000),         // 20 seconds
		TesseractPath:     getEnvOrDefault("TESSERACT_PATH", "/usr/bin/tesseract"),
		TesseractLang:     getEnvOrDefault("TESSERACT_LANG", "eng+kor"),

		ConfidenceThreshold:      getEnvAsFloatOrDefault("CONFIDENCE_THRESHOLD", 0.94),
		MinTokenConfidence:       getEnvAsFloatOrDefault("MIN_TOKEN_CONFIDENCE", 0.5),
		LineClusterAlpha:         getEnvAsFloatOrDefault("LINE_CLUSTER_ALPHA", 0.7),
		HeaderAlignmentThreshold: getEnvAsFloatOrDefault("HEADER_ALIGNMENT_THRESHOLD", 0.65),
		PadShortRows:             getEnvAsBoolOrDefault("PAD_SHORT_ROWS", false),

		NodeEnv: getEnvOrDefault("NODE_ENV", "development"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.QueueDriver != "bullmq" && c.QueueDriver != "asynq" {
		return fmt.Errorf("QUEUE_DRIVER must be \"bullmq\" or \"asynq\", got %q", c.QueueDriver)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 1073741824 { // 1KB to 1GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 1GB, got %d", c.MaxFileSize)
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be between 0 and 1, got %f", c.ConfidenceThreshold)
	}

	if c.MinTokenConfidence < 0 || c.MinTokenConfidence > 1 {
		return fmt.Errorf("MIN_TOKEN_CONFIDENCE must be between 0 and 1, got %f", c.MinTokenConfidence)
	}

	if c.LineClusterAlpha <= 0 || c.LineClusterAlpha > 2 {
		return fmt.Errorf("LINE_CLUSTER_ALPHA must be between 0 and 2, got %f", c.LineClusterAlpha)
	}

	if c.HeaderAlignmentThreshold < 0 || c.HeaderAlignmentThreshold > 1 {
		return fmt.Errorf("HEADER_ALIGNMENT_THRESHOLD must be between 0 and 1, got %f", c.HeaderAlignmentThreshold)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrThrow gets environment variable or returns error
func getEnvOrThrow(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
