/**
 * Unit lexicon
 *
 * Resolves OCR unit spellings ("k/uL", "MG/DL", "10^3/uL", "KµL") to the
 * canonical unit set collected from the reference test table. Canonical
 * spellings are preserved as written in the table; only the match keys
 * are folded (micro/liter/case/whitespace) and curated variants are
 * registered for the exponent and slashless forms.
 */

package lexicon

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// UnitLexicon indexes canonical units for robust OCR matching
type UnitLexicon struct {
	canonical  map[string]bool
	upperIndex map[string]string
	alnumIndex map[string][]string
}

var (
	unitLexiconOnce sync.Once
	unitLexicon     *UnitLexicon
)

var (
	canonPow10Re = regexp.MustCompile(`^10[\^³⁶][0-9]*/µL$`)
	perVolumeRe  = regexp.MustCompile(`(?i)/(mL|dL|L)$`)
)

// GetUnitLexicon returns the process-wide unit lexicon, building it once.
func GetUnitLexicon() *UnitLexicon {
	unitLexiconOnce.Do(func() {
		unitLexicon = buildUnitLexicon(referenceTests)
	})
	return unitLexicon
}

func buildUnitLexicon(tests []ReferenceTest) *UnitLexicon {
	canonical := make(map[string]bool)
	for _, t := range tests {
		u := strings.TrimSpace(t.Unit)
		if u == "" {
			continue
		}
		canonical[u] = true
	}

	lx := &UnitLexicon{
		canonical:  canonical,
		upperIndex: make(map[string]string),
		alnumIndex: make(map[string][]string),
	}

	units := make([]string, 0, len(canonical))
	for u := range canonical {
		units = append(units, u)
	}
	sort.Strings(units)

	for _, cu := range units {
		lx.register(cu, cu)
		for _, v := range curatedVariants(cu) {
			lx.register(v, cu)
		}
	}

	return lx
}

func (lx *UnitLexicon) register(variant, canonical string) {
	upperKey, alnumKey := unitKeys(variant)
	if upperKey != "" {
		lx.upperIndex[upperKey] = canonical
	}
	if alnumKey != "" {
		lx.alnumIndex[alnumKey] = appendUnique(lx.alnumIndex[alnumKey], canonical)
	}
}

// unitKeys derives the exact and robust match keys for a unit spelling.
func unitKeys(unit string) (upperKey, alnumKey string) {
	t := FoldLiter(FoldMicro(strings.TrimSpace(unit)))
	t = wsRe.ReplaceAllString(t, "")
	upperKey = strings.ToUpper(t)
	alnumKey = nonAlnumRe.ReplaceAllString(upperKey, "")
	return upperKey, alnumKey
}

// curatedVariants expands a canonical unit with the spellings commonly seen
// on printed reports: exponent forms for K/M prefixes, slashless forms,
// and case/micro variants for per-volume units.
func curatedVariants(canonical string) []string {
	c := FoldLiter(FoldMicro(strings.TrimSpace(canonical)))
	c = wsRe.ReplaceAllString(c, "")
	var vars []string

	addExp := func(exp string) {
		for _, pre := range []string{"", "x", "X"} {
			for _, tail := range []string{"/µL", "/uL", "/UL"} {
				vars = append(vars, fmt.Sprintf("%s10^%s%s", pre, exp, tail))
			}
		}
	}

	if kPerMicroLRe.MatchString(c) {
		vars = append(vars, "K/uL", "K/UL", "k/µl", "k/ul", "KµL", "KuL")
		addExp("3")
		vars = append(vars, "10³/µL")
	}
	if mPerMicroLRe.MatchString(c) {
		vars = append(vars, "M/uL", "M/UL", "m/µl", "m/ul", "MµL", "MuL")
		addExp("6")
		vars = append(vars, "10⁶/µL")
	}
	if canonPow10Re.MatchString(c) {
		// Exponent canonical form: allow prefix equivalents.
		if strings.Contains(c, "3") {
			vars = append(vars, "K/µL", "K/uL", "K/UL", "k/ul")
		}
		if strings.Contains(c, "6") {
			vars = append(vars, "M/µL", "M/uL", "M/UL", "m/ul")
		}
	}

	if perVolumeRe.MatchString(canonical) {
		upper := strings.ToUpper(canonical)
		vars = append(vars, upper, strings.ToLower(canonical))
		if strings.HasPrefix(canonical, "µ") {
			vars = append(vars, "u"+canonical[len("µ"):], "U"+strings.ToUpper(canonical[len("µ"):]))
		}
	}

	switch strings.ToUpper(canonical) {
	case "%", "SEC", "MMHG", "G/DL", "U/L", "IU/L", "MMOL/L", "MEQ/L", "FL", "PG":
		vars = append(vars, strings.ToUpper(canonical), strings.ToLower(canonical))
	}

	return vars
}

// Units returns all canonical units.
func (lx *UnitLexicon) Units() []string {
	out := make([]string, 0, len(lx.canonical))
	for u := range lx.canonical {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether the token resolves to any canonical unit.
func (lx *UnitLexicon) Contains(token string) bool {
	return lx.Resolve(token) != ""
}

// Resolve maps a raw unit token to its canonical spelling.
// Returns "" when no unambiguous match exists. Mixed value+unit strings
// never resolve here; callers guard with IsValueUnitMixed.
//
// Matching strategy, conservative:
//  1. exact match on the folded key
//  2. alphanumeric robust match when it yields exactly one candidate
//  3. micro/liter/pow10 hint filtering when candidates remain plural
func (lx *UnitLexicon) Resolve(token string) string {
	raw := strings.TrimSpace(token)
	if raw == "" {
		return ""
	}

	upperKey, alnumKey := unitKeys(raw)
	if cu, ok := lx.upperIndex[upperKey]; ok {
		return cu
	}

	candidates := lx.alnumIndex[alnumKey]
	if len(candidates) == 0 {
		return ""
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	hasMicro := strings.ContainsAny(raw, "µμ") || strings.Contains(raw, "u")
	hasLiter := strings.ContainsAny(raw, "lLℓ")
	hasPow10 := strings.ContainsAny(raw, "^³") || strings.ContainsAny(raw, "KM") || strings.Contains(raw, "x10")

	var filtered []string
	for _, cu := range candidates {
		cuUp := strings.ToUpper(cu)
		if hasMicro && !strings.Contains(cu, "µ") {
			continue
		}
		if hasLiter && !strings.Contains(cuUp, "L") {
			continue
		}
		if hasPow10 && !(strings.Contains(cuUp, "10") || strings.Contains(cuUp, "/UL") || strings.Contains(cu, "/µL")) {
			continue
		}
		filtered = append(filtered, cu)
	}
	if len(filtered) == 1 {
		return filtered[0]
	}

	return ""
}
