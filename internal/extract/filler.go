/**
 * Table Filler
 *
 * Reconciles each body line into a draft row of the four cell roles
 * (name, reference, result, unit) using the resolved HeaderSpec and an
 * interim geometric table:
 *
 *   - K = highest assigned column index + 1
 *   - band centers = per-column median x-centers over body lines with
 *     exactly K tokens
 *   - band edges = midpoints between centers, ends extrapolated by
 *     max(20, gap/2)
 *
 * Tokens are assigned to the nearest band center, role cells are
 * type-validated, empty roles get one geometric repair pass, and
 * anything still empty becomes the UNKNOWN placeholder. Provenance
 * (source tokens, source line) rides along for QA and confidence.
 */

package extract

import (
	"sort"
	"strings"
)

// BodyRow is one reconciled table row.
type BodyRow struct {
	Name      string `json:"name"`
	Reference string `json:"reference"`
	Result    string `json:"result"`
	Unit      string `json:"unit"`

	Cells   []string `json:"cells"`
	SrcLine int      `json:"_src_line"`
	// SrcTokens maps role name to the token the cell came from.
	SrcTokens map[string]Token `json:"_src_tokens,omitempty"`

	RowFix       string   `json:"_row_fix,omitempty"`
	DroppedExtra []string `json:"_dropped_extra,omitempty"`

	// Populated by the reference splitter and normalizer.
	RefMin        string `json:"ref_min,omitempty"`
	RefMax        string `json:"ref_max,omitempty"`
	RefOrigin     string `json:"ref_origin,omitempty"`
	ResultNorm    string `json:"result_norm,omitempty"`
	RefMinNorm    string `json:"ref_min_norm,omitempty"`
	RefMaxNorm    string `json:"ref_max_norm,omitempty"`
	UnitCanonical string `json:"unit_canonical,omitempty"`
}

// ResultConfidence is the confidence of the token backing the result
// cell, or 0 when the result is UNKNOWN.
func (r *BodyRow) ResultConfidence() float64 {
	if tok, ok := r.SrcTokens[string(RoleResult)]; ok {
		return tok.Confidence
	}
	return 0
}

// columnBands is the interim geometric table.
type columnBands struct {
	centers []int
	edges   []int // len = K+1
}

// buildColumnBands derives band centers and edges from body lines with
// exactly K geometric tokens. Zero such lines is a structural failure.
func buildColumnBands(body []Line, k int) (columnBands, bool) {
	if k < 1 {
		return columnBands{}, false
	}

	perColumn := make([][]int, k)
	sampleCount := 0
	for _, line := range body {
		if len(line) != k {
			continue
		}
		sampleCount++
		for i, tok := range line {
			perColumn[i] = append(perColumn[i], tok.XCenter())
		}
	}
	if sampleCount == 0 {
		return columnBands{}, false
	}

	centers := make([]int, k)
	for i, xs := range perColumn {
		sort.Ints(xs)
		centers[i] = xs[len(xs)/2]
	}

	edges := make([]int, k+1)
	for i := 1; i < k; i++ {
		edges[i] = (centers[i-1] + centers[i]) / 2
	}
	endPad := 20
	if k > 1 {
		if gap := (centers[k-1] - centers[0]) / (k - 1) / 2; gap > endPad {
			endPad = gap
		}
	}
	edges[0] = centers[0] - endPad
	edges[k] = centers[k-1] + endPad

	return columnBands{centers: centers, edges: edges}, true
}

// columnFor assigns a token to the nearest band center.
func (b columnBands) columnFor(t Token) int {
	best, bestDist := 0, -1
	x := t.XCenter()
	for i, c := range b.centers {
		d := x - c
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// FillRows builds one BodyRow per body line. ok=false signals the
// structural failure of having no geometric samples at all.
func FillRows(body []Line, spec HeaderSpec, units interface{ Contains(string) bool }) ([]BodyRow, bool) {
	k := spec.ColumnCount()
	bands, ok := buildColumnBands(body, k)
	if !ok {
		return nil, false
	}

	rows := make([]BodyRow, 0, len(body))
	for lineIdx, line := range body {
		row := BodyRow{
			Name:      UnknownCell,
			Reference: UnknownCell,
			Result:    UnknownCell,
			Unit:      UnknownCell,
			SrcLine:   lineIdx,
			SrcTokens: make(map[string]Token),
		}

		// Raw cells mirror the line's tokens; row-length fixes happen in
		// the normalizer.
		row.Cells = make([]string, len(line))
		for i, tok := range line {
			row.Cells[i] = strings.TrimSpace(tok.Text)
		}

		// Assign tokens to geometric columns; tokens sharing a column
		// concatenate (OCR sometimes splits one cell).
		cellTokens := make([][]Token, k)
		for _, tok := range line {
			col := bands.columnFor(tok)
			cellTokens[col] = append(cellTokens[col], tok)
		}

		cells := make([]string, k)
		for c, toks := range cellTokens {
			parts := make([]string, 0, len(toks))
			for _, t := range toks {
				if s := strings.TrimSpace(t.Text); s != "" {
					parts = append(parts, s)
				}
			}
			cells[c] = strings.Join(parts, " ")
		}

		// Role assignment with per-role type validation.
		assigned := make(map[int]bool)
		for col, role := range spec.Columns {
			if col >= k || len(cellTokens[col]) == 0 {
				continue
			}
			value := cells[col]
			if value == "" {
				continue
			}
			if !roleTypeValid(role, value, units) {
				continue
			}
			setRoleCell(&row, role, value, cellTokens[col])
			assigned[col] = true
		}

		// Geometric repair: fill still-empty roles from unassigned tokens
		// matching the role's expected shape, nearest to the role's band
		// center.
		repairRole(&row, RoleResult, spec, bands, line, assigned, units)
		repairRole(&row, RoleUnit, spec, bands, line, assigned, units)
		repairRole(&row, RoleReference, spec, bands, line, assigned, units)

		rows = append(rows, row)
	}

	return rows, true
}

func roleTypeValid(role Role, value string, units interface{ Contains(string) bool }) bool {
	switch role {
	case RoleName:
		return value != ""
	case RoleResult, RoleMin, RoleMax:
		return isNumberLike(value)
	case RoleReference:
		return isRangeLike(value)
	case RoleUnit:
		return units.Contains(value) || isUnitShaped(value)
	}
	return false
}

func setRoleCell(row *BodyRow, role Role, value string, toks []Token) {
	switch role {
	case RoleName:
		row.Name = value
	case RoleResult:
		row.Result = value
	case RoleUnit:
		row.Unit = value
	case RoleReference:
		row.Reference = value
	case RoleMin:
		row.RefMin = value
		row.RefOrigin = "filler"
	case RoleMax:
		row.RefMax = value
		if row.RefOrigin == "" {
			row.RefOrigin = "filler"
		}
	}
	row.SrcTokens[string(role)] = bestSourceToken(value, toks)
}

// bestSourceToken picks the token whose text matches the cell value, or
// the highest-confidence one.
func bestSourceToken(value string, toks []Token) Token {
	for _, t := range toks {
		if strings.TrimSpace(t.Text) == value {
			return t
		}
	}
	best := toks[0]
	for _, t := range toks[1:] {
		if t.Confidence > best.Confidence {
			best = t
		}
	}
	return best
}

func repairRole(row *BodyRow, role Role, spec HeaderSpec, bands columnBands, line Line, assigned map[int]bool, units interface{ Contains(string) bool }) {
	if roleCell(row, role) != UnknownCell {
		return
	}
	col := spec.ColumnFor(role)
	if col < 0 || col >= len(bands.centers) {
		return
	}
	center := bands.centers[col]

	bestIdx, bestDist := -1, -1
	for i, tok := range line {
		if i == 0 {
			continue // leading token is the canonical name
		}
		tokCol := bands.columnFor(tok)
		if assigned[tokCol] && tokCol != col {
			continue
		}
		value := strings.TrimSpace(tok.Text)
		if value == "" || !roleTypeValid(role, value, units) {
			continue
		}
		d := tok.XCenter() - center
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			bestIdx, bestDist = i, d
		}
	}
	if bestIdx < 0 {
		return
	}

	tok := line[bestIdx]
	setRoleCell(row, role, strings.TrimSpace(tok.Text), []Token{tok})
}

func roleCell(row *BodyRow, role Role) string {
	switch role {
	case RoleName:
		return row.Name
	case RoleResult:
		return row.Result
	case RoleUnit:
		return row.Unit
	case RoleReference:
		return row.Reference
	}
	return ""
}
