/**
 * Report Processor for the Lab Report Worker
 *
 * Orchestrates one extraction job end to end:
 * - file loading (queue buffer or URL download with retry)
 * - MIME detection from magic bytes (uploads often arrive as octet-stream)
 * - word-level Tesseract OCR
 * - the extraction pipeline (lines -> body -> header -> rows -> tests)
 * - VoyageAI panel embedding for similarity search
 * - atomic PostgreSQL + Qdrant persistence
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/vetpipe/labreport-worker/internal/clients"
	"github.com/vetpipe/labreport-worker/internal/errors"
	"github.com/vetpipe/labreport-worker/internal/extract"
	"github.com/vetpipe/labreport-worker/internal/ocr"
	"github.com/vetpipe/labreport-worker/internal/storage"
)

// ReportProcessorInterface defines the interface for report processing
type ReportProcessorInterface interface {
	ProcessReport(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	StorageManager *storage.StorageManager
	MaxFileSize    int64

	// OCR
	TesseractLang string

	// Header tier-3 fallback (optional)
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Panel embeddings (optional)
	VoyageAPIKey string

	// Extraction tunables
	Pipeline extract.Settings
}

// ProcessRequest represents one extraction job
type ProcessRequest struct {
	JobID      string
	ClinicID   string
	Filename   string
	MimeType   string
	FileSize   int64
	FileURL    string
	FileBuffer []byte
	Metadata   map[string]interface{}
}

// ProcessResult represents the processing outcome
type ProcessResult struct {
	ResultID           string
	QdrantPointID      string
	Confidence         float64
	HeaderSource       string
	TestsExtracted     int
	EmbeddingGenerated bool
	ProcessingTimeMs   int64
}

// ReportProcessor handles lab report extraction jobs
type ReportProcessor struct {
	config          *ProcessorConfig
	storage         *storage.StorageManager
	ocrEngine       ocr.Engine
	extractor       extract.DocumentExtractorInterface
	embeddingClient *clients.EmbeddingClient
}

// NewReportProcessor creates a new report processor
func NewReportProcessor(cfg *ProcessorConfig) (*ReportProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.StorageManager == nil {
		return nil, fmt.Errorf("storage manager is required")
	}

	ocrEngine, err := ocr.NewTesseractEngine(&ocr.Config{Language: cfg.TesseractLang})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Tesseract: %w", err)
	}

	// The header LLM fallback is optional: without an API key the
	// pipeline stops at tier 2.
	var headerLLM extract.HeaderLLM
	if cfg.LLMAPIKey != "" && cfg.LLMBaseURL != "" {
		timeout := cfg.LLMTimeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		llmClient := clients.NewLLMClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, timeout)

		hcCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := llmClient.HealthCheck(hcCtx); err != nil {
			log.Printf("WARNING: LLM health check failed: %v. Header tier-3 fallback may be unavailable.", err)
		} else {
			log.Printf("LLM connection verified: %s (model=%s)", cfg.LLMBaseURL, cfg.LLMModel)
		}
		headerLLM = llmClient
	} else {
		log.Printf("WARNING: LLM not configured. Header resolution limited to tiers 1-2 (ocr, inferred).")
	}

	var embeddingClient *clients.EmbeddingClient
	if cfg.VoyageAPIKey != "" {
		embeddingClient, err = clients.NewEmbeddingClient(cfg.VoyageAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding client: %w", err)
		}
	} else {
		log.Printf("WARNING: VoyageAI API key not configured. Panels will not be searchable by similarity.")
	}

	return &ReportProcessor{
		config:          cfg,
		storage:         cfg.StorageManager,
		ocrEngine:       ocrEngine,
		extractor:       extract.NewExtractor(cfg.Pipeline, headerLLM),
		embeddingClient: embeddingClient,
	}, nil
}

// ProcessReport processes one lab report through the complete pipeline
func (p *ReportProcessor) ProcessReport(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	startTime := time.Now()
	log.Printf("[Job %s] Starting extraction pipeline", req.JobID)

	// Load file
	log.Printf("[Job %s] Loading file (%d bytes)", req.JobID, req.FileSize)
	fileData, err := p.loadFile(ctx, req)
	if err != nil {
		return nil, errors.NewInvalidJobDataError(req.JobID, fmt.Sprintf("failed to load file: %v", err))
	}

	// Correct the MIME type from magic bytes. Clinic uploads routinely
	// arrive as application/octet-stream.
	detectedMime := detectMimeTypeFromMagicBytes(fileData)
	if detectedMime != "" && (req.MimeType == "" || req.MimeType == "application/octet-stream") {
		log.Printf("[Job %s] Corrected MIME type from '%s' to '%s' (magic byte detection)",
			req.JobID, req.MimeType, detectedMime)
		req.MimeType = detectedMime
	}
	if !isSupportedImage(req.MimeType) {
		return nil, errors.NewUnsupportedFormatError(req.JobID, req.MimeType)
	}

	// OCR
	log.Printf("[Job %s] Running Tesseract OCR (mime: %s)", req.JobID, req.MimeType)
	ocrResult, err := p.ocrEngine.Recognize(ctx, fileData)
	if err != nil {
		return nil, errors.NewOCRFailedError(req.JobID, "tesseract", err)
	}
	log.Printf("[Job %s] OCR complete: words=%d, duration=%v",
		req.JobID, len(ocrResult.Tokens), ocrResult.Duration)

	// Extraction pipeline. Structural failures (no tokens, no table,
	// no header) come back as QA flags with empty tests, not errors:
	// the job still completes and the flags are stored.
	extraction := p.extractor.Extract(ctx, req.JobID, ocrResult.Tokens)

	// Panel embedding
	var embedding []float32
	if p.embeddingClient != nil && len(extraction.Tests) > 0 {
		log.Printf("[Job %s] Generating panel embedding (%d tests)", req.JobID, len(extraction.Tests))
		embedding, err = p.embeddingClient.GenerateEmbedding(ctx, panelText(extraction))
		if err != nil {
			// Non-fatal: the structured result is still stored, the
			// panel just won't participate in similarity search.
			log.Printf("[Job %s] WARNING: embedding generation failed: %v", req.JobID, err)
			embedding = nil
		}
	}

	// Persist
	log.Printf("[Job %s] Storing extraction result (%d tests)", req.JobID, len(extraction.Tests))
	stored, err := p.storage.StoreExtraction(ctx, &storage.StoreResultInput{
		JobID:          req.JobID,
		Result:         extraction,
		PanelEmbedding: embedding,
	})
	if err != nil {
		return nil, errors.NewStorageFailedError(req.JobID, err)
	}

	confidence := meanValueConfidence(extraction.Tests)
	duration := time.Since(startTime)

	log.Printf("[Job %s] Pipeline complete: resultId=%s, tests=%d, headerSource=%s, confidence=%.4f, duration=%v",
		req.JobID, stored.ResultID, len(extraction.Tests), extraction.QA.HeaderSource, confidence, duration)

	return &ProcessResult{
		ResultID:           stored.ResultID,
		QdrantPointID:      stored.QdrantPointID,
		Confidence:         confidence,
		HeaderSource:       extraction.QA.HeaderSource,
		TestsExtracted:     len(extraction.Tests),
		EmbeddingGenerated: stored.QdrantPointID != "",
		ProcessingTimeMs:   duration.Milliseconds(),
	}, nil
}

// UpdateJobStatus updates job status in the database
func (p *ReportProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error {
	update := &storage.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Metadata: metadata,
	}

	if metadata != nil {
		if confidence, ok := metadata["confidence"].(float64); ok {
			update.Confidence = confidence
		}
		if processingTime, ok := metadata["processingTime"].(int64); ok {
			update.ProcessingTimeMs = processingTime
		}
		if resultID, ok := metadata["resultId"].(string); ok {
			update.ResultID = resultID
		}
		if headerSource, ok := metadata["headerSource"].(string); ok {
			update.HeaderSource = headerSource
		}
		if errorCode, ok := metadata["error_code"].(string); ok {
			update.ErrorCode = errorCode
		}
		if errorMsg, ok := metadata["error"].(string); ok {
			if update.ErrorCode == "" {
				update.ErrorCode = "PROCESSING_ERROR"
			}
			update.ErrorMessage = errorMsg
		} else if errorMsg, ok := metadata["message"].(string); ok && update.ErrorCode != "" {
			update.ErrorMessage = errorMsg
		}
	}

	return p.storage.UpdateJobStatus(ctx, update)
}

// panelText renders accepted tests as the embedding input. One test per
// line keeps panels with the same analytes close regardless of layout.
func panelText(result *extract.ExtractionResult) string {
	var b strings.Builder
	if result.Metadata.HospitalName != "" {
		b.WriteString(result.Metadata.HospitalName)
		b.WriteString("\n")
	}
	for _, t := range result.Tests {
		b.WriteString(t.Code)
		b.WriteString(" ")
		b.WriteString(t.ValueRaw)
		b.WriteString(" ")
		b.WriteString(t.Unit)
		if t.ReferenceMin != nil && t.ReferenceMax != nil {
			fmt.Fprintf(&b, " %g-%g", *t.ReferenceMin, *t.ReferenceMax)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// meanValueConfidence is the job-level confidence stored with the result.
func meanValueConfidence(tests []extract.TestRecord) float64 {
	if len(tests) == 0 {
		return 0
	}
	var sum float64
	for _, t := range tests {
		sum += t.ValueConfidence
	}
	return sum / float64(len(tests))
}

// loadFile loads file from URL or buffer
func (p *ReportProcessor) loadFile(ctx context.Context, req *ProcessRequest) ([]byte, error) {
	if len(req.FileBuffer) > 0 {
		log.Printf("[Job %s] Using file buffer (%d bytes)", req.JobID, len(req.FileBuffer))
		return req.FileBuffer, nil
	}

	if req.FileURL != "" {
		log.Printf("[Job %s] Downloading file from URL: %s (fileSize=%d)", req.JobID, req.FileURL, req.FileSize)
		fileData, err := p.downloadFileFromURL(ctx, req.JobID, req.FileURL)
		if err != nil {
			return nil, fmt.Errorf("failed to download file: %w", err)
		}
		log.Printf("[Job %s] File downloaded successfully (%d bytes)", req.JobID, len(fileData))
		return fileData, nil
	}

	return nil, fmt.Errorf("no file source provided (buffer or URL)")
}

// downloadFileFromURL downloads a file with exponential-backoff retries.
func (p *ReportProcessor) downloadFileFromURL(ctx context.Context, jobID string, fileURL string) ([]byte, error) {
	const (
		maxRetries       = 5
		initialBackoffMs = 1000
		maxBackoffMs     = 32000
	)

	client := &http.Client{Timeout: 2 * time.Minute}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("[Job %s] Download attempt %d/%d from: %s", jobID, attempt, maxRetries, fileURL)

		fileData, err := p.tryDownload(ctx, client, fileURL)
		if err == nil {
			log.Printf("[Job %s] Download successful on attempt %d: %d bytes", jobID, attempt, len(fileData))
			return fileData, nil
		}

		lastErr = err
		log.Printf("[Job %s] Download attempt %d failed: %v", jobID, attempt, err)

		if attempt < maxRetries {
			backoffMs := initialBackoffMs * int(math.Pow(2, float64(attempt-1)))
			if backoffMs > maxBackoffMs {
				backoffMs = maxBackoffMs
			}
			log.Printf("[Job %s] Retrying in %dms...", jobID, backoffMs)
			select {
			case <-time.After(time.Duration(backoffMs) * time.Millisecond):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff")
			}
		}
	}

	return nil, fmt.Errorf("failed to download file after %d attempts: %w", maxRetries, lastErr)
}

func (p *ReportProcessor) tryDownload(ctx context.Context, client *http.Client, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	maxReadBytes := p.config.MaxFileSize
	if maxReadBytes <= 0 {
		maxReadBytes = 50 * 1024 * 1024
	}
	if resp.ContentLength > 0 && resp.ContentLength > maxReadBytes {
		return nil, fmt.Errorf("file size exceeds maximum: %d > %d bytes", resp.ContentLength, maxReadBytes)
	}

	fileData, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(fileData)) > maxReadBytes {
		return nil, fmt.Errorf("file size exceeds maximum: %d bytes", maxReadBytes)
	}

	return fileData, nil
}

// isSupportedImage reports whether Tesseract can consume the MIME type.
func isSupportedImage(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/tiff", "image/bmp", "image/webp", "image/gif":
		return true
	}
	return false
}

// detectMimeTypeFromMagicBytes detects the actual MIME type from file
// content magic bytes.
func detectMimeTypeFromMagicBytes(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	// GIF: 'G' 'I' 'F' '8' ('7' or '9') 'a'
	if bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")) {
		return "image/gif"
	}

	// WebP: 'R' 'I' 'F' 'F' .... 'W' 'E' 'B' 'P'
	if len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}

	// TIFF: little-endian or big-endian byte order marks
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return "image/tiff"
	}

	// BMP: 'B' 'M'
	if bytes.HasPrefix(data, []byte("BM")) {
		return "image/bmp"
	}

	// PDF: %PDF- (recognized so the unsupported-format error names it)
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return "application/pdf"
	}

	return ""
}
