/**
 * PostgreSQL Client for the Lab Report Worker
 *
 * Persists extraction job lifecycle rows and the structured extraction
 * results (document metadata, accepted tests, QA summary).
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/vetpipe/labreport-worker/internal/extract"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	Status           string
	Confidence       float64
	ProcessingTimeMs int64
	ResultID         string
	ErrorCode        string
	ErrorMessage     string
	HeaderSource     string
	Metadata         map[string]interface{}
}

// sanitizeConfidence rounds confidence to 4 decimal places and clamps to
// [0.0, 1.0]. Float64 representations like 0.9632000000000001 otherwise
// trip PostgreSQL's NUMERIC casting.
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpdateJobStatus upserts the job lifecycle row. The worker creates the
// row on the first status update when the API has not created it yet.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	sanitizedConfidence := sanitizeConfidence(update.Confidence)

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	// NUMERIC(5,4) enforces bounded confidence precision on the way in.
	query := `
		INSERT INTO labreport.extraction_jobs (
			id, clinic_id, filename, mime_type, file_size,
			status, confidence, processing_time_ms, result_id,
			error_code, error_message, header_source, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, COALESCE($13, 'unknown'), COALESCE($10, 'unknown.png'),
			COALESCE($11, 'application/octet-stream'), COALESCE($12, 0),
			$2, NULLIF($3::NUMERIC(5,4), 0), NULLIF($4, 0),
			CASE WHEN $5 = '' THEN NULL ELSE $5::uuid END,
			NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''),
			COALESCE($9::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			confidence = COALESCE(NULLIF(EXCLUDED.confidence::NUMERIC(5,4), 0), labreport.extraction_jobs.confidence),
			processing_time_ms = COALESCE(NULLIF(EXCLUDED.processing_time_ms, 0), labreport.extraction_jobs.processing_time_ms),
			result_id = CASE
				WHEN EXCLUDED.result_id IS NOT NULL THEN EXCLUDED.result_id
				ELSE labreport.extraction_jobs.result_id
			END,
			error_code = NULLIF(EXCLUDED.error_code, ''),
			error_message = NULLIF(EXCLUDED.error_message, ''),
			header_source = NULLIF(EXCLUDED.header_source, ''),
			metadata = COALESCE(EXCLUDED.metadata, labreport.extraction_jobs.metadata),
			filename = COALESCE(EXCLUDED.filename, labreport.extraction_jobs.filename),
			mime_type = COALESCE(EXCLUDED.mime_type, labreport.extraction_jobs.mime_type),
			file_size = COALESCE(NULLIF(EXCLUDED.file_size, 0), labreport.extraction_jobs.file_size),
			clinic_id = COALESCE(EXCLUDED.clinic_id, labreport.extraction_jobs.clinic_id),
			updated_at = NOW()
		RETURNING id
	`

	var filename, mimeType, clinicID string
	var fileSize int64
	if update.Metadata != nil {
		if fn, ok := update.Metadata["filename"].(string); ok {
			filename = fn
		}
		if mt, ok := update.Metadata["mimeType"].(string); ok {
			mimeType = mt
		}
		if fs, ok := update.Metadata["fileSize"].(int64); ok {
			fileSize = fs
		} else if fs, ok := update.Metadata["fileSize"].(float64); ok {
			fileSize = int64(fs)
		}
		if cid, ok := update.Metadata["clinicId"].(string); ok {
			clinicID = cid
		}
	}

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,            // $1 - job id
		update.Status,           // $2 - status
		sanitizedConfidence,     // $3 - confidence (4 decimals)
		update.ProcessingTimeMs, // $4 - processing_time_ms
		update.ResultID,         // $5 - result_id
		update.ErrorCode,        // $6 - error_code
		update.ErrorMessage,     // $7 - error_message
		update.HeaderSource,     // $8 - header_source
		metadataJSON,            // $9 - metadata
		filename,                // $10 - filename
		mimeType,                // $11 - mime_type
		fileSize,                // $12 - file_size
		clinicID,                // $13 - clinic_id
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", update.JobID)
	}
	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s, confidence=%.4f): %w",
			update.JobID, update.Status, sanitizedConfidence, err)
	}

	return nil
}

// StoreExtractionResult persists one extraction result and returns the
// generated result row ID. Tests and QA go in as JSONB so the API can
// serve them without re-assembly; the identity fields are columns for
// direct querying.
func (p *PostgresClient) StoreExtractionResult(ctx context.Context, jobID string, result *extract.ExtractionResult) (string, error) {
	if jobID == "" {
		return "", fmt.Errorf("job ID is required")
	}
	if result == nil {
		return "", fmt.Errorf("result is required")
	}

	testsJSON, err := json.Marshal(result.Tests)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tests: %w", err)
	}
	qaJSON, err := json.Marshal(result.QA)
	if err != nil {
		return "", fmt.Errorf("failed to marshal qa summary: %w", err)
	}

	query := `
		INSERT INTO labreport.extraction_results (
			job_id,
			hospital_name,
			client_name,
			patient_name,
			inspection_date,
			tests,
			qa,
			test_count,
			created_at
		) VALUES (
			$1::uuid,
			NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''),
			CASE WHEN $5 = '' THEN NULL ELSE $5::date END,
			$6::jsonb, $7::jsonb, $8, NOW()
		)
		RETURNING id
	`

	var resultID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		jobID,
		result.Metadata.HospitalName,
		result.Metadata.ClientName,
		result.Metadata.PatientName,
		result.Metadata.InspectionDate,
		testsJSON,
		qaJSON,
		len(result.Tests),
	).Scan(&resultID)

	if err != nil {
		return "", fmt.Errorf("failed to store extraction result: %w", err)
	}

	return resultID, nil
}

// DeleteExtractionResult removes a result row. Used by the rollback path
// when the vector store write fails after the relational write.
func (p *PostgresClient) DeleteExtractionResult(ctx context.Context, resultID string) error {
	if resultID == "" {
		return fmt.Errorf("result ID is required")
	}

	_, err := p.db.ExecContext(ctx,
		`DELETE FROM labreport.extraction_results WHERE id = $1::uuid`, resultID)
	if err != nil {
		return fmt.Errorf("failed to delete extraction result: %w", err)
	}
	return nil
}

// GetExtractionResult retrieves a stored extraction result by row ID.
func (p *PostgresClient) GetExtractionResult(ctx context.Context, resultID string) (*extract.ExtractionResult, error) {
	if resultID == "" {
		return nil, fmt.Errorf("result ID is required")
	}

	query := `
		SELECT
			COALESCE(hospital_name, ''),
			COALESCE(client_name, ''),
			COALESCE(patient_name, ''),
			COALESCE(to_char(inspection_date, 'YYYY-MM-DD'), ''),
			tests,
			qa
		FROM labreport.extraction_results
		WHERE id = $1::uuid
	`

	var result extract.ExtractionResult
	var testsJSON, qaJSON []byte

	err := p.db.QueryRowContext(ctx, query, resultID).Scan(
		&result.Metadata.HospitalName,
		&result.Metadata.ClientName,
		&result.Metadata.PatientName,
		&result.Metadata.InspectionDate,
		&testsJSON,
		&qaJSON,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("extraction result not found: %s", resultID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction result: %w", err)
	}

	if err := json.Unmarshal(testsJSON, &result.Tests); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tests: %w", err)
	}
	if err := json.Unmarshal(qaJSON, &result.QA); err != nil {
		return nil, fmt.Errorf("failed to unmarshal qa summary: %w", err)
	}

	return &result, nil
}

// GetJobByID retrieves a job lifecycle row by ID.
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id, clinic_id, filename, mime_type, file_size,
			status, confidence, processing_time_ms, result_id,
			error_code, error_message, header_source, metadata,
			created_at, updated_at
		FROM labreport.extraction_jobs
		WHERE id = $1::uuid
	`

	var (
		id, clinicID, filename        string
		mimeType, status              sql.NullString
		fileSize                      sql.NullInt64
		confidence                    sql.NullFloat64
		processingTimeMs              sql.NullInt64
		resultID, errorCode, errorMsg sql.NullString
		headerSource                  sql.NullString
		metadataJSON                  []byte
		createdAt, updatedAt          time.Time
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&id, &clinicID, &filename, &mimeType, &fileSize, &status,
		&confidence, &processingTimeMs, &resultID,
		&errorCode, &errorMsg, &headerSource,
		&metadataJSON, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	result := map[string]interface{}{
		"id":        id,
		"clinicId":  clinicID,
		"filename":  filename,
		"status":    status.String,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
		"metadata":  metadata,
	}

	if mimeType.Valid {
		result["mimeType"] = mimeType.String
	}
	if fileSize.Valid {
		result["fileSize"] = fileSize.Int64
	}
	if confidence.Valid {
		result["confidence"] = confidence.Float64
	}
	if processingTimeMs.Valid {
		result["processingTimeMs"] = processingTimeMs.Int64
	}
	if resultID.Valid {
		result["resultId"] = resultID.String
	}
	if errorCode.Valid {
		result["errorCode"] = errorCode.String
	}
	if errorMsg.Valid {
		result["errorMessage"] = errorMsg.String
	}
	if headerSource.Valid {
		result["headerSource"] = headerSource.String
	}

	return result, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
