package errors

import (
	"fmt"
	"time"
)

/**
 * Custom error types for the lab-report extraction worker
 *
 * Design Pattern: Factory Pattern for error creation
 * SOLID Principle: Single Responsibility (each error type has one purpose)
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Pipeline errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorEmptyOCRResult    ErrorCode = "EMPTY_OCR_RESULT"
	ErrorNoTableFound      ErrorCode = "NO_TABLE_FOUND"
	ErrorHeaderUnresolved  ErrorCode = "HEADER_UNRESOLVED"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// LLM fallback errors
	ErrorLLMTimeout         ErrorCode = "LLM_TIMEOUT"
	ErrorLLMInvalidResponse ErrorCode = "LLM_INVALID_RESPONSE"

	// Storage errors
	ErrorStorageFailed  ErrorCode = "STORAGE_FAILED"
	ErrorDatabaseFailed ErrorCode = "DATABASE_FAILED"

	// Job errors
	ErrorInvalidJobData ErrorCode = "INVALID_JOB_DATA"
	ErrorNetworkTimeout ErrorCode = "NETWORK_TIMEOUT"
	ErrorAPICallFailed  ErrorCode = "API_CALL_FAILED"
)

// ExtractionError represents a structured extraction error
type ExtractionError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewEmptyOCRResultError(jobID string) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorEmptyOCRResult,
		Message:   "OCR produced zero tokens",
		JobID:     jobID,
		Timestamp: time.Now(),
	}
}

func NewNoTableFoundError(jobID string, linesScanned int) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorNoTableFound,
		Message:   "No line resolved to a known test code",
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"lines_scanned": linesScanned,
		},
	}
}

func NewHeaderUnresolvedError(jobID string, tiersTried []string) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorHeaderUnresolved,
		Message:   "No header could be resolved by any tier",
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"tiers_tried": tiersTried,
		},
	}
}

func NewOCRFailedError(jobID string, engine string, cause error) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed: %s", engine),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ocr_engine": engine,
		},
		Cause: cause,
	}
}

func NewUnsupportedFormatError(jobID string, mimeType string) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported file format: %s", mimeType),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"mime_type": mimeType,
		},
	}
}

func NewLLMTimeoutError(jobID string, timeout time.Duration, cause error) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorLLMTimeout,
		Message:   fmt.Sprintf("Header fallback call timed out after %v", timeout),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": timeout.String(),
		},
		Cause: cause,
	}
}

func NewLLMInvalidResponseError(jobID string, reason string) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorLLMInvalidResponse,
		Message:   fmt.Sprintf("Header fallback returned an invalid mapping: %s", reason),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"reason": reason,
		},
	}
}

func NewStorageFailedError(jobID string, cause error) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store extraction results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewInvalidJobDataError(jobID string, reason string) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorInvalidJobData,
		Message:   fmt.Sprintf("Invalid job payload: %s", reason),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"reason": reason,
		},
	}
}

// ToMap converts error to map for database storage
func (e *ExtractionError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
