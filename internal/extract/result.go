/**
 * Final output model
 *
 * ExtractionResult is the sole externally visible artifact of the
 * pipeline: document metadata, the accepted test records, and a QA
 * summary explaining everything that was truncated, normalized or
 * rejected along the way. It exclusively owns its nested records.
 */

package extract

import "strconv"

// TestRecord is one accepted test result.
type TestRecord struct {
	Code            string   `json:"code"`
	Value           float64  `json:"value"`
	ValueRaw        string   `json:"value_raw"`
	ValueFlag       string   `json:"value_flag,omitempty"` // H, L or N
	Unit            string   `json:"unit"`
	ReferenceMin    *float64 `json:"reference_min"`
	ReferenceMax    *float64 `json:"reference_max"`
	ValueConfidence float64  `json:"value_confidence"`
}

// RejectedRow records one dropped row and why, for the QA trail.
type RejectedRow struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Rejection reasons
const (
	RejectUnknownValue      = "unknown_value"
	RejectLowConfidence     = "low_confidence"
	RejectDuplicateKeptLast = "duplicated_code_kept_last"
)

// QASummary carries the machine-readable counters of one extraction.
type QASummary struct {
	TokensIn            int           `json:"tokens_in"`
	LinesAssembled      int           `json:"lines_assembled"`
	BodyStartIndex      int           `json:"body_start_index"`
	BodyLinesDropped    int           `json:"body_lines_dropped"`
	HeaderSource        string        `json:"header_source,omitempty"`
	RowsTruncated       int           `json:"rows_truncated"`
	UnitCoverage        float64       `json:"unit_coverage"`
	ConfidenceThreshold float64       `json:"confidence_threshold"`
	RemovedUnknown      int           `json:"removed_unknown"`
	RemovedLowConf      int           `json:"removed_low_conf"`
	DedupRemoved        int           `json:"dedup_removed"`
	Excluded            []RejectedRow `json:"excluded,omitempty"`

	// Structural failure flags
	NoTableFound     bool `json:"no_table_found,omitempty"`
	HeaderUnresolved bool `json:"header_unresolved,omitempty"`
	EmptyOCR         bool `json:"empty_ocr,omitempty"`
}

// ExtractionResult is the final JSON document produced per report.
type ExtractionResult struct {
	Metadata DocumentMetadata `json:"metadata"`
	Tests    []TestRecord     `json:"tests"`
	QA       QASummary        `json:"qa"`
}

// parseNumeric converts a normalized numeric string to float64.
func parseNumeric(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	// Comparators survive normalization; strip them for the numeric value.
	for _, p := range []string{"<=", ">=", "<", ">", "≤", "≥", "≈", "~"} {
		if len(s) >= len(p) && s[:len(p)] == p {
			s = s[len(p):]
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
