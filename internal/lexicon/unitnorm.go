/**
 * Unit string normalization primitives
 *
 * Character folding and conservative prefix normalization shared by the
 * unit lexicon and the value normalizer. Strings that mix a value with a
 * unit ("neg pos/n", "12.5 mg/dL") are detected and left untouched.
 */

package lexicon

import (
	"regexp"
	"strings"
)

var (
	microCtxRe    = regexp.MustCompile(`(^|/|[KM])u(l|L|/|$)`)
	unitSlashWsRe = regexp.MustCompile(`\s+/\s+`)
	unitCaretWsRe = regexp.MustCompile(`\s+\^\s*`)
	multiWsRe     = regexp.MustCompile(`\s+`)
	mixedNumRe    = regexp.MustCompile(`^[-+]?\d+(?:[.,]\d+)?[HhLlNn]?$`)

	pow10e3Re    = regexp.MustCompile(`(?i)^(?:x?10\^3|10³)/(?:µ|u)L$`)
	pow10e6Re    = regexp.MustCompile(`(?i)^(?:x?10\^6|10⁶)/(?:µ|u)L$`)
	kPerMicroLRe = regexp.MustCompile(`(?i)^k/(?:µ|u)L$`)
	mPerMicroLRe = regexp.MustCompile(`(?i)^m/(?:µ|u)L$`)
	kNoSlashRe   = regexp.MustCompile(`^[Kk](?:µ|u)L$`)
	mNoSlashRe   = regexp.MustCompile(`^[Mm](?:µ|u)L$`)
)

var qualitativeWords = map[string]bool{
	"neg": true, "pos": true, "positive": true, "negative": true,
	"양성": true, "음성": true, "normal": true, "high": true, "low": true,
}

// FoldMicro unifies micro-sign spellings (µ U+00B5, μ U+03BC, plain 'u'
// in unit context) to µ.
func FoldMicro(s string) string {
	out := strings.ReplaceAll(s, "μ", "µ")
	// Replace 'u' only where it can mean micro: string start, after a
	// slash, or after a K/M prefix, and followed by l/L, a slash or the end.
	out = microCtxRe.ReplaceAllString(out, "${1}µ${2}")
	return out
}

// FoldLiter unifies liter spellings (l, ℓ) to uppercase L.
func FoldLiter(s string) string {
	return strings.NewReplacer("l", "L", "ℓ", "L").Replace(s)
}

// NormalizeUnitSimple normalizes a raw unit string without a lexicon:
// micro/liter folding, internal-whitespace cleanup, and power-of-ten
// prefix unification (10^3/µL -> K/µL, 10^6/µL -> M/µL).
// Returns "" when the input is empty or the UNKNOWN placeholder; mixed
// value+unit strings are returned unchanged.
func NormalizeUnitSimple(unit string) string {
	u := strings.TrimSpace(unit)
	if u == "" || strings.ToUpper(u) == "UNKNOWN" {
		return ""
	}

	if IsValueUnitMixed(u) {
		return u
	}

	u = FoldMicro(u)
	u = FoldLiter(u)
	u = normalizeUnitSpaces(u)
	u = normalizePrefixes(u)
	return u
}

// IsValueUnitMixed reports whether a string carries a value in front of a
// unit-like tail. Such strings must never be canonicalized.
func IsValueUnitMixed(s string) bool {
	if !strings.Contains(s, " ") {
		return false
	}
	tokens := strings.Fields(s)
	if len(tokens) < 2 {
		return false
	}
	first := strings.ToLower(tokens[0])
	if qualitativeWords[first] {
		return true
	}
	return mixedNumRe.MatchString(tokens[0])
}

// normalizeUnitSpaces removes whitespace only around unit separators,
// keeping value-separating spaces intact.
func normalizeUnitSpaces(s string) string {
	s = unitSlashWsRe.ReplaceAllString(s, "/")
	s = unitCaretWsRe.ReplaceAllString(s, "^")
	s = multiWsRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// normalizePrefixes maps CBC absolute-count exponent spellings onto the
// K/M prefix canon.
func normalizePrefixes(unit string) string {
	u := FoldLiter(FoldMicro(unit))
	switch {
	case pow10e3Re.MatchString(u), kPerMicroLRe.MatchString(u), kNoSlashRe.MatchString(u):
		return "K/µL"
	case pow10e6Re.MatchString(u), mPerMicroLRe.MatchString(u), mNoSlashRe.MatchString(u):
		return "M/µL"
	}
	return unit
}
