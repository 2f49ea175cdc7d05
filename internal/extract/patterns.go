package extract

import "regexp"

// Shared cell-shape patterns. The pipeline classifies cells by shape
// (number, range, unit) in several stages; keeping the regexes in one
// place keeps the stages consistent.
var (
	// 12.3 / -4 / 7,2 / 9.8H (single trailing H/L/N warning flag)
	numberRe = regexp.MustCompile(`^[+-]?\d+(?:[.,]\d+)?[HhLlNn]?$`)

	// 6.54-12.2 / 1,2 ~ 3,4 / 5–9
	rangeRe = regexp.MustCompile(`^[+-]?\d+(?:[.,]\d+)?\s*[-–~]\s*[+-]?\d+(?:[.,]\d+)?$`)

	// Common printed unit shapes, independent of the lexicon
	unitShapeRe = regexp.MustCompile(`(?i)^(?:%|‰|g/dl|mg/dl|u/l|iu/l|mmol/l|meq/l|fL|fl|pg|ng/ml|k/µl|k/μl|k/u?l|m/µl|m/μl|m/u?l|10\^?\d+/(?:l|ul|µl|μl))$`)

	// Strict reference range with capture groups for the splitter
	refSplitRe = regexp.MustCompile(`^([+-]?\d+(?:[.,]\d+)?)\s*[-–~]\s*([+-]?\d+(?:[.,]\d+)?)$`)

	// Numeric value with optional comparator and H/L/N flag, for *_norm
	valueNormRe = regexp.MustCompile(`^([<>]=?|[≤≥≈~])?\s*([+-]?\d+(?:[.,·]\d+)?)([HhLlNn])?$`)

	// Date shapes accepted by the metadata extractor
	dateYMDRe    = regexp.MustCompile(`(\d{4})[-./](\d{1,2})[-./](\d{1,2})`)
	dateKoreanRe = regexp.MustCompile(`(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일`)
	dateShortRe  = regexp.MustCompile(`\b(\d{2})[-./](\d{1,2})[-./](\d{1,2})\b`)

	longDigitRe = regexp.MustCompile(`\d{6,}`)
)

// isNumberLike reports whether a cell looks like a measured value,
// middot and comma decimals included.
func isNumberLike(s string) bool {
	t := normalizeDecimalSeparators(s)
	return numberRe.MatchString(t)
}

// isRangeLike reports whether a cell looks like a min-max range.
func isRangeLike(s string) bool {
	t := normalizeDecimalSeparators(s)
	return rangeRe.MatchString(t)
}

// isUnitShaped reports whether a cell matches a common unit spelling
// without consulting the lexicon. Short percent-bearing tails count.
func isUnitShaped(s string) bool {
	if unitShapeRe.MatchString(s) {
		return true
	}
	return len(s) <= 4 && containsPercent(s)
}

func containsPercent(s string) bool {
	for _, r := range s {
		if r == '%' {
			return true
		}
	}
	return false
}

func normalizeDecimalSeparators(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '·':
			out = append(out, '.')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
