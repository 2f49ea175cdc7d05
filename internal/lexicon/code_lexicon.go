/**
 * Test-code lexicon
 *
 * Resolves noisy OCR tokens ("NEU%", "Na+", "p02", "SODIUM(Na+)") to
 * canonical test codes. Two indexes make the matching robust:
 *   - upperIndex: uppercased, whitespace-stripped key -> canonical code
 *   - alnumIndex: A-Z0-9-only key -> candidate canonical codes
 * Ambiguity that survives the symbol-hint filter resolves to "" so the
 * caller can bring additional context instead of guessing.
 */

package lexicon

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// CodeLexicon indexes canonical test codes for robust OCR matching
type CodeLexicon struct {
	canonical  map[string]bool
	upperIndex map[string]string
	alnumIndex map[string][]string
}

var (
	codeLexiconOnce sync.Once
	codeLexicon     *CodeLexicon
)

var (
	wsRe         = regexp.MustCompile(`\s+`)
	nonAlnumRe   = regexp.MustCompile(`[^A-Z0-9]`)
	percentVarRe = regexp.MustCompile(`\(\s*%\s*\)`)
	percentGapRe = regexp.MustCompile(`\s+%`)
	hashVarRe    = regexp.MustCompile(`\(\s*#\s*\)`)
	hashGapRe    = regexp.MustCompile(`\s+#`)
	trailHashRe  = regexp.MustCompile(`#\s*$`)
	trailDashRe  = regexp.MustCompile(`[\-−–—]+$`)
	suffixARe    = regexp.MustCompile(`(?i)-a$`)
	codeSymHints = []string{"+", "-", "%", "/", "_", "."}
)

// GetCodeLexicon returns the process-wide code lexicon, building it once.
func GetCodeLexicon() *CodeLexicon {
	codeLexiconOnce.Do(func() {
		codeLexicon = buildCodeLexicon(referenceTests)
	})
	return codeLexicon
}

func buildCodeLexicon(tests []ReferenceTest) *CodeLexicon {
	// Collapse codes differing only by case, preferring the uppercase form.
	byUpper := make(map[string][]string)
	for _, t := range tests {
		if t.Code == "" {
			continue
		}
		key := wsRe.ReplaceAllString(strings.ToUpper(t.Code), "")
		byUpper[key] = append(byUpper[key], t.Code)
	}

	canonical := make(map[string]bool)
	for _, variants := range byUpper {
		sort.Slice(variants, func(i, j int) bool {
			return uppercaseScoreLess(variants[j], variants[i])
		})
		canonical[variants[0]] = true
	}

	lx := &CodeLexicon{
		canonical:  canonical,
		upperIndex: make(map[string]string),
		alnumIndex: make(map[string][]string),
	}

	codes := make([]string, 0, len(canonical))
	for c := range canonical {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	for _, code := range codes {
		upperKey := wsRe.ReplaceAllString(strings.ToUpper(code), "")
		alnumKey := nonAlnumRe.ReplaceAllString(upperKey, "")

		// On collision the fully-uppercase spelling wins.
		if existing, ok := lx.upperIndex[upperKey]; ok {
			if existing != strings.ToUpper(existing) && code == strings.ToUpper(code) {
				lx.upperIndex[upperKey] = code
			}
		} else {
			lx.upperIndex[upperKey] = code
		}
		lx.alnumIndex[alnumKey] = appendUnique(lx.alnumIndex[alnumKey], code)
	}

	return lx
}

// uppercaseScoreLess orders codes so that fully-uppercase, shorter spellings
// sort first among case variants.
func uppercaseScoreLess(a, b string) bool {
	au, bu := a == strings.ToUpper(a), b == strings.ToUpper(b)
	if au != bu {
		return bu
	}
	ac, bc := countUpper(a), countUpper(b)
	if ac != bc {
		return ac < bc
	}
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a < b
}

func countUpper(s string) int {
	n := 0
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			n++
		}
	}
	return n
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}

// Codes returns all canonical codes.
func (lx *CodeLexicon) Codes() []string {
	out := make([]string, 0, len(lx.canonical))
	for c := range lx.canonical {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Resolve maps a raw OCR token to a canonical test code.
// Returns "" when no unambiguous match exists.
//
// Matching strategy, conservative:
//  1. exact match on the case/whitespace-folded key
//  2. alphanumeric robust match when it yields exactly one candidate
//  3. symbol-hint filtering (+ - % / _ .) when candidates remain plural
//  4. 0 -> O retry for the common OCR confusion (p02 -> pO2)
func (lx *CodeLexicon) Resolve(token string) string {
	raw := strings.TrimSpace(token)
	if raw == "" {
		return ""
	}

	// Fold "(%)", " %" variants to "%" and "(#)", " #" to "#":
	// LYMPH(%) / LYMPH % / LYMPH% are the same code.
	raw = percentVarRe.ReplaceAllString(raw, "%")
	raw = percentGapRe.ReplaceAllString(raw, "%")
	raw = hashVarRe.ReplaceAllString(raw, "#")
	raw = hashGapRe.ReplaceAllString(raw, "#")

	// A trailing '#' marks an absolute count; prefer the base code.
	if trailHashRe.MatchString(raw) {
		base := trailHashRe.ReplaceAllString(raw, "")
		baseKey := wsRe.ReplaceAllString(strings.ToUpper(base), "")
		if code, ok := lx.upperIndex[baseKey]; ok {
			return code
		}
	}

	upperKey := wsRe.ReplaceAllString(strings.ToUpper(raw), "")
	if code, ok := lx.upperIndex[upperKey]; ok {
		return code
	}

	alnumKey := nonAlnumRe.ReplaceAllString(upperKey, "")
	candidates := lx.alnumIndex[alnumKey]
	if len(candidates) == 1 {
		return candidates[0]
	}

	var present []string
	for _, h := range codeSymHints {
		if strings.Contains(raw, h) {
			present = append(present, h)
		}
	}
	if len(present) > 0 && len(candidates) > 1 {
		filtered := filterByHints(candidates, present)
		if len(filtered) == 1 {
			return filtered[0]
		}
		if len(filtered) > 1 {
			candidates = filtered
		}
	}

	// 0 -> O retry: OCR frequently reads the letter O as zero.
	if upperKeyO := strings.ReplaceAll(upperKey, "0", "O"); upperKeyO != upperKey {
		if code, ok := lx.upperIndex[upperKeyO]; ok {
			return code
		}
		alnumKeyO := strings.ReplaceAll(alnumKey, "0", "O")
		if alnumKeyO != alnumKey {
			candO := lx.alnumIndex[alnumKeyO]
			if len(candO) == 1 {
				return candO[0]
			}
			if len(candO) > 1 && len(present) > 0 {
				filtered := filterByHints(candO, present)
				if len(filtered) == 1 {
					return filtered[0]
				}
			}
		}
	}

	return ""
}

func filterByHints(candidates []string, hints []string) []string {
	var out []string
	for _, c := range candidates {
		for _, h := range hints {
			if strings.Contains(c, h) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// NormalizeCodeCandidate conservatively cleans a code candidate:
// drops parenthesized tails ("LYMPHO(%)" -> "LYMPHO"), percent signs
// ("NEUT%" -> "NEUT"), and trailing dash noise ("Cl-" -> "Cl").
func NormalizeCodeCandidate(s string) string {
	t := strings.TrimSpace(s)
	if i := strings.Index(t, "("); i >= 0 {
		t = t[:i]
	}
	t = strings.TrimSpace(strings.ReplaceAll(t, "%", ""))
	t = strings.TrimSpace(trailDashRe.ReplaceAllString(t, ""))
	return t
}

// ResolveLoose resolves a code with staged fallbacks on top of Resolve:
// the raw text first, then a "-A" suffix-stripped variant, then the
// parenthesis/percent-normalized candidate.
func (lx *CodeLexicon) ResolveLoose(text string) string {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return ""
	}

	tried := make(map[string]bool)
	try := func(c string) string {
		if c == "" || tried[c] {
			return ""
		}
		tried[c] = true
		return lx.Resolve(c)
	}

	candidates := []string{raw}
	if suffixARe.MatchString(raw) {
		candidates = append(candidates, suffixARe.ReplaceAllString(raw, ""))
	}
	if norm := NormalizeCodeCandidate(raw); norm != "" {
		candidates = append(candidates, norm)
		if suffixARe.MatchString(norm) {
			candidates = append(candidates, suffixARe.ReplaceAllString(norm, ""))
		}
	}

	for _, c := range candidates {
		if code := try(c); code != "" {
			return code
		}
	}
	return ""
}
