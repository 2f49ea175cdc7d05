/**
 * Header Resolver, tier 2: statistical inference
 *
 * When no printed header survives OCR, the column roles are inferred from
 * the body itself: representative rows are sampled, and each column is
 * scored by the fraction of its cells matching the shape a role expects
 * (numeric for result/min/max, range for reference, lexicon/unit shape
 * for unit). The leading column is always the name column, fixed earlier
 * by the Body Locator.
 */

package extract

import "strings"

const (
	inferMaxSampleCols  = 6
	inferMaxSamples     = 20
	inferRangeRowRatio  = 0.3
	inferUnitThreshold  = 0.70
	inferRefThreshold   = 0.50
	inferResThreshold   = 0.60
	inferShortTableSize = 8
	inferShortBonus     = 0.05
	inferLeftOfUnit     = 0.05
	inferDatePenalty    = 0.5
	inferMaxDateRatio   = 0.10
	inferForcedResRatio = 0.45
)

// inferFromBody infers a HeaderSpec from body cell shapes.
func (r *HeaderResolver) inferFromBody(body []Line) (HeaderSpec, bool) {
	samples := r.representativeSamples(body)
	if len(samples) == 0 {
		return HeaderSpec{}, false
	}

	// The share of sampled rows carrying a range cell decides the layout:
	// combined-reference tables (K=4 roles) versus split min/max tables.
	rangeRows := 0
	for _, line := range samples {
		for _, tok := range line[1:] {
			if isRangeLike(tok.Text) {
				rangeRows++
				break
			}
		}
	}
	rangeRatio := float64(rangeRows) / float64(len(samples))

	var wantRef bool
	switch {
	case rangeRatio >= inferRangeRowRatio:
		wantRef = true
	case rangeRows == 0:
		wantRef = false
	default:
		// Mixed shape, too ambiguous to infer.
		return HeaderSpec{}, false
	}

	cols := mostCommonWidth(samples)
	if cols < 3 {
		return HeaderSpec{}, false
	}

	// Column stats over samples of the dominant width.
	uniform := make([]Line, 0, len(samples))
	for _, line := range samples {
		if len(line) == cols {
			uniform = append(uniform, line)
		}
	}
	if len(uniform) == 0 {
		return HeaderSpec{}, false
	}

	unitRatio := make([]float64, cols)
	numRatio := make([]float64, cols)
	rngRatio := make([]float64, cols)
	dateRatio := make([]float64, cols)
	for c := 1; c < cols; c++ {
		var units, nums, ranges, dates int
		for _, line := range uniform {
			cell := strings.TrimSpace(line[c].Text)
			if cell == "" {
				continue
			}
			if r.units.Contains(cell) || isUnitShaped(cell) {
				units++
			}
			if isNumberLike(cell) {
				nums++
			}
			if isRangeLike(cell) {
				ranges++
			}
			if looksLikeDate(cell) {
				dates++
			}
		}
		n := float64(len(uniform))
		unitRatio[c] = float64(units) / n
		numRatio[c] = float64(nums) / n
		rngRatio[c] = float64(ranges) / n
		dateRatio[c] = float64(dates) / n
	}

	unitThresh, refThresh, resThresh := inferUnitThreshold, inferRefThreshold, inferResThreshold
	if len(uniform) < inferShortTableSize {
		unitThresh -= inferShortBonus
		refThresh -= inferShortBonus
		resThresh -= inferShortBonus
	}

	columns := map[int]Role{0: RoleName}

	unitCol := bestColumn(unitRatio, unitThresh, columns)
	if unitCol < 0 {
		return HeaderSpec{}, false
	}
	columns[unitCol] = RoleUnit

	if wantRef {
		refCol := bestColumn(rngRatio, refThresh, columns)
		if refCol < 0 {
			return HeaderSpec{}, false
		}
		columns[refCol] = RoleReference
	}

	resCol := r.pickResultColumn(numRatio, dateRatio, unitCol, resThresh, columns)
	if resCol < 0 {
		return HeaderSpec{}, false
	}
	columns[resCol] = RoleResult

	if !wantRef {
		// Split min/max layout: the remaining numeric columns, left to
		// right, become min and max.
		var numeric []int
		for c := 1; c < cols; c++ {
			if _, taken := columns[c]; taken {
				continue
			}
			if numRatio[c] >= refThresh {
				numeric = append(numeric, c)
			}
		}
		if len(numeric) < 2 {
			return HeaderSpec{}, false
		}
		columns[numeric[0]] = RoleMin
		columns[numeric[1]] = RoleMax
	}

	spec := HeaderSpec{Columns: columns, Source: HeaderSourceInferred}
	if !spec.validate() {
		return HeaderSpec{}, false
	}
	spec.Valid = true
	return spec, true
}

// representativeSamples picks plausible body rows for inference: bounded
// width, a unit-shaped cell present, a number or range present. Body
// rows arrive with canonical leading codes, so the name column is known.
func (r *HeaderResolver) representativeSamples(body []Line) []Line {
	samples := make([]Line, 0, inferMaxSamples)
	for _, line := range body {
		if len(line) < 3 || len(line) > inferMaxSampleCols {
			continue
		}

		hasUnit, hasNumber := false, false
		for _, tok := range line[1:] {
			cell := strings.TrimSpace(tok.Text)
			if cell == "" {
				continue
			}
			if r.units.Contains(cell) || isUnitShaped(cell) {
				hasUnit = true
			}
			if isNumberLike(cell) || isRangeLike(cell) {
				hasNumber = true
			}
		}
		if !hasUnit || !hasNumber {
			continue
		}

		samples = append(samples, line)
		if len(samples) >= inferMaxSamples {
			break
		}
	}
	return samples
}

func mostCommonWidth(lines []Line) int {
	counts := map[int]int{}
	for _, l := range lines {
		counts[len(l)]++
	}
	best, bestN := 0, 0
	for w, n := range counts {
		if n > bestN || (n == bestN && w > best) {
			best, bestN = w, n
		}
	}
	return best
}

// bestColumn returns the unassigned column with the highest ratio at or
// above the threshold, or -1.
func bestColumn(ratios []float64, threshold float64, taken map[int]Role) int {
	best, bestRatio := -1, threshold
	for c := 1; c < len(ratios); c++ {
		if _, used := taken[c]; used {
			continue
		}
		if ratios[c] >= bestRatio {
			best, bestRatio = c, ratios[c]
		}
	}
	return best
}

// pickResultColumn scores candidate result columns: numeric ratio, a
// small bonus for sitting immediately left of the unit column, and a
// penalty proportional to the column's date ratio. Columns where dates
// dominate are excluded outright. When nothing reaches the threshold, a
// forced fallback accepts a column adjacent to the unit column at a
// lower bar.
func (r *HeaderResolver) pickResultColumn(numRatio, dateRatio []float64, unitCol int, threshold float64, taken map[int]Role) int {
	best, bestScore := -1, threshold
	for c := 1; c < len(numRatio); c++ {
		if _, used := taken[c]; used {
			continue
		}
		if dateRatio[c] > inferMaxDateRatio {
			continue
		}
		score := numRatio[c] - inferDatePenalty*dateRatio[c]
		if c == unitCol-1 {
			score += inferLeftOfUnit
		}
		if score >= bestScore {
			best, bestScore = c, score
		}
	}
	if best >= 0 {
		return best
	}

	// Forced fallback: a numeric-enough column right next to the unit.
	for _, c := range []int{unitCol - 1, unitCol + 1} {
		if c < 1 || c >= len(numRatio) {
			continue
		}
		if _, used := taken[c]; used {
			continue
		}
		if dateRatio[c] <= inferMaxDateRatio && numRatio[c] >= inferForcedResRatio {
			return c
		}
	}
	return -1
}

func looksLikeDate(s string) bool {
	return dateYMDRe.MatchString(s) || dateShortRe.MatchString(s) || dateKoreanRe.MatchString(s)
}
