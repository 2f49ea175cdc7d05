/**
 * Final Filter & Assembler
 *
 * Conservative acceptance of the normalized rows:
 *   - UNKNOWN result          -> reject, reason unknown_value
 *   - confidence below gate   -> reject, reason low_confidence
 *   - duplicate (code, unit)  -> keep the LAST occurrence, record
 *                                duplicated_code_kept_last for the rest
 *
 * The confidence gate is tunable (default 0.94); value confidence is the
 * result-cell token confidence clamped to [0, 1].
 */

package extract

import "strings"

// FinalFilter turns surviving rows into TestRecords and fills the QA
// rejection counters.
func FinalFilter(rows []BodyRow, confThreshold float64, qa *QASummary) []TestRecord {
	qa.ConfidenceThreshold = confThreshold

	type keyed struct {
		record TestRecord
		key    string
	}
	var accepted []keyed

	for i := range rows {
		row := &rows[i]

		if row.Result == UnknownCell || row.ResultNorm == "" {
			qa.RemovedUnknown++
			qa.Excluded = append(qa.Excluded, RejectedRow{Code: row.Name, Reason: RejectUnknownValue})
			continue
		}

		conf := clamp01(row.ResultConfidence())
		if conf < confThreshold {
			qa.RemovedLowConf++
			qa.Excluded = append(qa.Excluded, RejectedRow{Code: row.Name, Reason: RejectLowConfidence})
			continue
		}

		value, ok := parseNumeric(row.ResultNorm)
		if !ok {
			qa.RemovedUnknown++
			qa.Excluded = append(qa.Excluded, RejectedRow{Code: row.Name, Reason: RejectUnknownValue})
			continue
		}

		record := TestRecord{
			Code:            row.Name,
			Value:           value,
			ValueRaw:        row.Result,
			ValueFlag:       resultFlag(row),
			Unit:            unitForRecord(row),
			ValueConfidence: conf,
		}
		if min, ok := parseNumeric(row.RefMinNorm); ok {
			record.ReferenceMin = &min
		}
		if max, ok := parseNumeric(row.RefMaxNorm); ok {
			record.ReferenceMax = &max
		}

		accepted = append(accepted, keyed{record: record, key: dedupKey(record)})
	}

	// Duplicate codes keep the LAST occurrence.
	lastIndex := make(map[string]int, len(accepted))
	for i, a := range accepted {
		lastIndex[a.key] = i
	}

	records := make([]TestRecord, 0, len(accepted))
	for i, a := range accepted {
		if lastIndex[a.key] != i {
			qa.DedupRemoved++
			qa.Excluded = append(qa.Excluded, RejectedRow{Code: a.record.Code, Reason: RejectDuplicateKeptLast})
			continue
		}
		records = append(records, a.record)
	}

	return records
}

// dedupKey identifies a logical test: canonical code plus unit. The same
// code measured in two units (percent vs absolute count) is two tests.
func dedupKey(r TestRecord) string {
	unit := r.Unit
	if unit == UnknownCell {
		unit = ""
	}
	return r.Code + "\x00" + unit
}

func unitForRecord(row *BodyRow) string {
	if row.UnitCanonical != "" {
		return row.UnitCanonical
	}
	return row.Unit
}

func resultFlag(row *BodyRow) string {
	if tok, ok := row.SrcTokens[string(RoleResult)]; ok && tok.ValueFlag != "" {
		return tok.ValueFlag
	}
	// Fall back to a flag glued to the raw cell text.
	s := strings.TrimSpace(row.Result)
	if len(s) > 1 {
		switch s[len(s)-1] {
		case 'H', 'h':
			return "H"
		case 'L', 'l':
			return "L"
		case 'N', 'n':
			return "N"
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
