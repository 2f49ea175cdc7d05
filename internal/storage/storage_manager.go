/**
 * Storage Manager for the Lab Report Worker
 *
 * Coordinates storage operations across PostgreSQL (structured results)
 * and Qdrant (panel vectors). The relational row is written first; if
 * the vector write fails, the row is deleted so the two systems never
 * disagree about which results exist.
 */

package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vetpipe/labreport-worker/internal/extract"
)

// StorageManager coordinates PostgreSQL and Qdrant operations
type StorageManager struct {
	postgres *PostgresClient
	qdrant   *QdrantClient
}

// StoreResultInput carries one finished extraction plus its panel
// embedding. The embedding may be nil when embedding generation failed;
// the result is then stored without a similarity vector.
type StoreResultInput struct {
	JobID          string
	Result         *extract.ExtractionResult
	PanelEmbedding []float32
}

// StoreResultOutput holds the IDs of the stored extraction.
type StoreResultOutput struct {
	ResultID      string
	QdrantPointID string
	StoredAt      time.Time
}

// SimilarPanel is one panel-similarity search hit joined back to its
// stored extraction result.
type SimilarPanel struct {
	ResultID        string
	JobID           string
	QdrantPointID   string
	SimilarityScore float64
	Result          *extract.ExtractionResult
}

// NewStorageManager creates a new storage manager
func NewStorageManager(postgresURL string, qdrantAddress string, qdrantCollection string) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	qdrant, err := NewQdrantClient(qdrantAddress, qdrantCollection)
	if err != nil {
		postgres.Close()
		return nil, fmt.Errorf("failed to initialize Qdrant client: %w", err)
	}

	return &StorageManager{
		postgres: postgres,
		qdrant:   qdrant,
	}, nil
}

// StoreExtraction persists one extraction result and its panel vector.
// PostgreSQL is written first; a failed vector write rolls the result
// row back and returns the error.
func (sm *StorageManager) StoreExtraction(ctx context.Context, input *StoreResultInput) (*StoreResultOutput, error) {
	if input == nil {
		return nil, fmt.Errorf("input is required")
	}
	if input.JobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}
	if input.Result == nil {
		return nil, fmt.Errorf("extraction result is required")
	}
	if input.PanelEmbedding != nil && len(input.PanelEmbedding) != panelVectorDimensions {
		return nil, fmt.Errorf("invalid embedding dimensions: expected %d, got %d",
			panelVectorDimensions, len(input.PanelEmbedding))
	}

	resultID, err := sm.postgres.StoreExtractionResult(ctx, input.JobID, input.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to store extraction result: %w", err)
	}

	out := &StoreResultOutput{
		ResultID: resultID,
		StoredAt: time.Now(),
	}

	if input.PanelEmbedding == nil {
		return out, nil
	}

	pointID := uuid.New().String()
	point := &PanelPoint{
		ID:     pointID,
		Vector: input.PanelEmbedding,
		Metadata: map[string]interface{}{
			"job_id":          input.JobID,
			"result_id":       resultID,
			"hospital_name":   input.Result.Metadata.HospitalName,
			"patient_name":    input.Result.Metadata.PatientName,
			"inspection_date": input.Result.Metadata.InspectionDate,
			"test_count":      len(input.Result.Tests),
			"codes":           panelCodes(input.Result),
		},
		Timestamp: out.StoredAt.Unix(),
	}

	if err := sm.qdrant.UpsertPanel(ctx, point); err != nil {
		// Rollback the relational row so no result exists without
		// its announced vector.
		if delErr := sm.postgres.DeleteExtractionResult(ctx, resultID); delErr != nil {
			return nil, fmt.Errorf("failed to store panel vector: %w (rollback also failed: %v)", err, delErr)
		}
		return nil, fmt.Errorf("failed to store panel vector: %w", err)
	}

	out.QdrantPointID = pointID
	return out, nil
}

// SearchSimilarPanels finds stored panels similar to the query vector
// and joins each hit to its extraction result. Hits whose result row
// has since been removed are skipped.
func (sm *StorageManager) SearchSimilarPanels(ctx context.Context, queryVector []float32, limit int) ([]*SimilarPanel, error) {
	points, err := sm.qdrant.SearchSimilarPanels(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search panel vectors: %w", err)
	}

	panels := make([]*SimilarPanel, 0, len(points))
	for _, point := range points {
		resultID, _ := point.Metadata["result_id"].(string)
		if resultID == "" {
			continue
		}

		result, err := sm.postgres.GetExtractionResult(ctx, resultID)
		if err != nil {
			continue
		}

		panel := &SimilarPanel{
			ResultID:      resultID,
			QdrantPointID: point.ID,
			Result:        result,
		}
		if jobID, ok := point.Metadata["job_id"].(string); ok {
			panel.JobID = jobID
		}
		if score, ok := point.Metadata["score"].(float64); ok {
			panel.SimilarityScore = score
		} else if score, ok := point.Metadata["score"].(float32); ok {
			panel.SimilarityScore = float64(score)
		}

		panels = append(panels, panel)
	}

	return panels, nil
}

// GetExtractionResult retrieves a stored extraction result by ID.
func (sm *StorageManager) GetExtractionResult(ctx context.Context, resultID string) (*extract.ExtractionResult, error) {
	return sm.postgres.GetExtractionResult(ctx, resultID)
}

// UpdateJobStatus updates job status in PostgreSQL
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetJobByID retrieves job by ID
func (sm *StorageManager) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	return sm.postgres.GetJobByID(ctx, jobID)
}

// GetStats returns statistics from both systems
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	pgStats := sm.postgres.GetStats()

	qdrantStats, err := sm.qdrant.GetCollectionInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Qdrant stats: %w", err)
	}

	return map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
		"qdrant": qdrantStats,
	}, nil
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	var pgErr, qdErr error

	if sm.postgres != nil {
		pgErr = sm.postgres.Close()
	}
	if sm.qdrant != nil {
		qdErr = sm.qdrant.Close()
	}

	if pgErr != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", pgErr)
	}
	if qdErr != nil {
		return fmt.Errorf("failed to close Qdrant: %w", qdErr)
	}
	return nil
}

// panelCodes renders the accepted test codes as a comma-separated list
// for the vector payload.
func panelCodes(result *extract.ExtractionResult) string {
	codes := make([]string, 0, len(result.Tests))
	for _, t := range result.Tests {
		codes = append(codes, t.Code)
	}
	return strings.Join(codes, ",")
}
