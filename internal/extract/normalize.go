/**
 * Row Normalizer, Reference Splitter and Unit/Value Normalizer
 *
 * Three forward passes over the filled rows:
 *   - row length: truncate past K from the tail (annotated, cells kept
 *     for QA); short rows are padded with UNKNOWN only when the pad
 *     policy is enabled
 *   - reference split: "6.54-12.2" -> min/max, with origin tags
 *   - unit/value: single-pass lexicon canonicalization for units, *_norm
 *     fields for numeric cells (decimal unification, H/L/N flag strip)
 */

package extract

import (
	"strings"

	"github.com/vetpipe/labreport-worker/internal/lexicon"
)

// Row-fix and reference-origin tags
const (
	RowFixTruncateTail = "truncate_tail"
	RowFixPadded       = "pad_unknown"

	RefOriginSplit   = "ref_split"
	RefOriginUnknown = "ref_unknown"
)

// NormalizeRowLengths enforces cell count <= K, truncating from the tail
// and never the head. Returns the number of rows fixed.
func NormalizeRowLengths(rows []BodyRow, k int, padShortRows bool) int {
	fixed := 0
	for i := range rows {
		row := &rows[i]
		switch {
		case len(row.Cells) > k:
			row.DroppedExtra = append(row.DroppedExtra, row.Cells[k:]...)
			row.Cells = row.Cells[:k]
			row.RowFix = RowFixTruncateTail
			fixed++
		case len(row.Cells) < k && padShortRows:
			for len(row.Cells) < k {
				row.Cells = append(row.Cells, UnknownCell)
			}
			row.RowFix = RowFixPadded
			fixed++
		}
	}
	return fixed
}

// SplitReferences decomposes combined reference cells into min/max.
// Min/max already populated by the filler are preserved unchanged.
func SplitReferences(rows []BodyRow) {
	for i := range rows {
		row := &rows[i]
		if row.RefMin != "" && row.RefMax != "" {
			continue
		}

		if row.Reference == UnknownCell {
			row.RefMin = UnknownCell
			row.RefMax = UnknownCell
			row.RefOrigin = RefOriginUnknown
			continue
		}

		ref := normalizeDecimalSeparators(strings.TrimSpace(row.Reference))
		if m := refSplitRe.FindStringSubmatch(ref); m != nil {
			row.RefMin = m[1]
			row.RefMax = m[2]
			row.RefOrigin = RefOriginSplit
			continue
		}

		row.RefMin = UnknownCell
		row.RefMax = UnknownCell
		row.RefOrigin = RefOriginUnknown
	}
}

// NormalizeUnitsAndValues canonicalizes unit cells against the lexicon
// (single pass, mixed value+unit strings preserved) and writes *_norm
// numeric fields next to the untouched raw cells. Returns the number of
// rows whose unit resolved, for the QA coverage counter.
func NormalizeUnitsAndValues(rows []BodyRow, units *lexicon.UnitLexicon) int {
	covered := 0
	for i := range rows {
		row := &rows[i]

		if row.Unit != UnknownCell && row.Unit != "" {
			raw := row.Unit
			if lexicon.IsValueUnitMixed(raw) {
				row.UnitCanonical = raw
			} else if cu := units.Resolve(raw); cu != "" {
				row.UnitCanonical = cu
				covered++
			} else if simple := lexicon.NormalizeUnitSimple(raw); simple != "" {
				row.UnitCanonical = simple
			} else {
				row.UnitCanonical = raw
			}
		}

		row.ResultNorm = normalizeNumericCell(row.Result)
		row.RefMinNorm = normalizeNumericCell(row.RefMin)
		row.RefMaxNorm = normalizeNumericCell(row.RefMax)
	}
	return covered
}

// normalizeNumericCell unifies decimal separators, strips a trailing
// H/L/N warning flag and preserves a leading sign or comparator.
// Returns "" for UNKNOWN or non-numeric cells.
func normalizeNumericCell(cell string) string {
	s := strings.TrimSpace(cell)
	if s == "" || s == UnknownCell {
		return ""
	}
	s = normalizeDecimalSeparators(s)
	m := valueNormRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	comp, num := m[1], m[2]
	num = strings.ReplaceAll(num, ",", ".")
	return comp + num
}
