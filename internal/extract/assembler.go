/**
 * Token Assembler
 *
 * Turns raw OCR tokens into ordered lines:
 *   1. confidence gate (noise tokens below the minimum are dropped)
 *   2. y-band line clustering (tau = median token height * alpha)
 *   3. per-line x ordering
 *   4. leading name-fragment merge: "POTASSIUM | (K+)" -> "POTASSIUM(K+)"
 *   5. fused value+unit split: "1.9mg/dL", "< 5 ug/mL"
 *   6. H/L/N value-flag annotation on bare numeric tokens
 *   7. exact-match status word removal (NORMAL/LOW/HIGH)
 */

package extract

import (
	"regexp"
	"sort"
	"strings"
)

// AssemblerSettings tunes line assembly.
type AssemblerSettings struct {
	// Alpha scales the line band tolerance: tau = median(raw height) * Alpha.
	Alpha float64
	// MinConfidence drops tokens below this confidence before clustering.
	MinConfidence float64
}

// DefaultAssemblerSettings mirror the production defaults.
func DefaultAssemblerSettings() AssemblerSettings {
	return AssemblerSettings{Alpha: 0.7, MinConfidence: 0.5}
}

// Assembler groups OCR tokens into lines.
type Assembler struct {
	settings AssemblerSettings
}

// NewAssembler creates an assembler with the given settings.
func NewAssembler(settings AssemblerSettings) *Assembler {
	if settings.Alpha <= 0 {
		settings.Alpha = 0.7
	}
	return &Assembler{settings: settings}
}

var (
	parenFragmentRe = regexp.MustCompile(`^\([^)]{1,12}\)$`)
	parenSpaceRe    = regexp.MustCompile(`\s+\(`)

	// value+unit split: optional comparator, number (with optional
	// exponent notation), then a unit-like tail.
	comparatorPat = `(?:[<>]=?|[≤≥≈~])?`
	numberPat     = `[-+]?(?:\d+(?:[.,]\d+)?|\.\d+)(?:\s*(?:x|×)\s*10\s*\^?\s*[-+]?\d+)?`
	unitTailPat   = `[A-Za-zµμ%‰/][\w%‰/µμ]*`

	spacedSplitRe = regexp.MustCompile(`^\s*(` + comparatorPat + `)\s*(` + numberPat + `)\s+(.+?)\s*$`)
	gluedSplitRe  = regexp.MustCompile(`^\s*(` + comparatorPat + `)\s*(` + numberPat + `)(` + unitTailPat + `)\s*$`)

	singleFlagRe = regexp.MustCompile(`^[HhLlNn]$`)
	valueFlagRe  = regexp.MustCompile(`^\s*([-+]?\d+(?:\.\d+)?)([HhLlNn])\s*$`)
)

var statusWords = map[string]bool{"normal": true, "low": true, "high": true}

// ExtractLines runs the full assembly sequence on raw OCR tokens.
// A nil or empty token slice yields an empty line list, which downstream
// stages treat as "no body found".
func (a *Assembler) ExtractLines(tokens []Token) []Line {
	if len(tokens) == 0 {
		return nil
	}

	items := a.filterByConfidence(tokens)
	if len(items) == 0 {
		return nil
	}

	a.assignLineIndices(items)
	lines := groupTokensByLine(items)
	lines = mergeNameFragments(lines)
	stripFirstColumnParenSpace(lines)
	lines = splitValueUnits(lines)
	annotateValueFlags(lines)
	lines = removeStatusTokens(lines)
	return lines
}

func (a *Assembler) filterByConfidence(tokens []Token) []Token {
	if a.settings.MinConfidence <= 0 {
		out := make([]Token, len(tokens))
		copy(out, tokens)
		return out
	}
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Confidence < a.settings.MinConfidence {
			continue
		}
		out = append(out, t)
	}
	return out
}

// assignLineIndices clusters tokens into lines by a top-to-bottom sweep.
// A token joins the current line while its vertical center stays inside
// the fixed band [seed - tau, seed + tau] around the line seed center.
func (a *Assembler) assignLineIndices(items []Token) {
	if len(items) == 0 {
		return
	}

	medianH := medianTokenHeight(items)
	tau := int(float64(medianH)*a.settings.Alpha + 0.5)
	if tau < 1 {
		tau = 1
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := items[order[i]], items[order[j]]
		if a.YCenter != b.YCenter {
			return a.YCenter < b.YCenter
		}
		return a.YTop < b.YTop
	})

	currentLine := -1
	bandTop, bandBottom := 0, 0

	for _, idx := range order {
		t := &items[idx]
		center := t.YCenter
		if center == 0 && t.YTop != 0 && t.YBottom != 0 {
			center = (t.YTop + t.YBottom) / 2
		}

		if currentLine < 0 || center < bandTop || center > bandBottom {
			currentLine++
			seed := center
			if t.YTop != 0 || t.YBottom != 0 {
				seed = (t.YTop + t.YBottom) / 2
			}
			bandTop = seed - tau
			bandBottom = seed + tau
		}
		t.LineIndex = currentLine
	}
}

func medianTokenHeight(items []Token) int {
	heights := make([]int, 0, len(items))
	for _, t := range items {
		h := t.RawH
		if h == 0 && t.YBottom > t.YTop {
			h = t.YBottom - t.YTop
		}
		if h > 0 {
			heights = append(heights, h)
		}
	}
	if len(heights) == 0 {
		return 16
	}
	sort.Ints(heights)
	n := len(heights)
	if n%2 == 1 {
		return heights[n/2]
	}
	return (heights[n/2-1] + heights[n/2] + 1) / 2
}

// groupTokensByLine returns lines in line-index order, tokens within a
// line ordered by x.
func groupTokensByLine(items []Token) []Line {
	groups := make(map[int][]Token)
	maxIdx := -1
	for _, t := range items {
		groups[t.LineIndex] = append(groups[t.LineIndex], t)
		if t.LineIndex > maxIdx {
			maxIdx = t.LineIndex
		}
	}

	lines := make([]Line, 0, len(groups))
	for li := 0; li <= maxIdx; li++ {
		toks, ok := groups[li]
		if !ok {
			continue
		}
		sort.SliceStable(toks, func(i, j int) bool {
			return toks[i].XLeft < toks[j].XLeft
		})
		lines = append(lines, Line(toks))
	}
	return lines
}

// mergeNameFragments joins a leading name token with an adjacent
// parenthesized fragment when the gap between them is small. Only the
// line head is considered; the merge stops at any numeric, range or
// unit-shaped boundary token.
func mergeNameFragments(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		if len(line) < 2 {
			out = append(out, line)
			continue
		}

		head, next := line[0], line[1]
		s0 := strings.TrimSpace(head.Text)
		s1 := strings.TrimSpace(next.Text)

		if isBoundaryToken(s0) || !parenFragmentRe.MatchString(s1) {
			out = append(out, line)
			continue
		}

		medGap := medianGapX(line)
		gapThresh := int(float64(medGap)*1.6 + 0.5)
		if gapThresh < 14 {
			gapThresh = 14
		}

		gap := next.XLeft - head.XRight
		if gap > gapThresh {
			out = append(out, line)
			continue
		}

		merged := head
		merged.Text = s0 + s1
		merged.Origin = originNameMerge
		merged.XLeft = minInt(head.XLeft, next.XLeft)
		merged.XRight = maxInt(head.XRight, next.XRight)
		merged.YTop = minInt(head.YTop, next.YTop)
		merged.YBottom = maxInt(head.YBottom, next.YBottom)

		newLine := make(Line, 0, len(line)-1)
		newLine = append(newLine, merged)
		newLine = append(newLine, line[2:]...)
		out = append(out, newLine)
	}
	return out
}

func isBoundaryToken(s string) bool {
	t := strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(s), "·", "."), ",", ".")
	return numberRe.MatchString(t) || rangeRe.MatchString(t) || isUnitShaped(t)
}

// stripFirstColumnParenSpace removes space before an opening paren in the
// first cell: "SODIUM (Na+)" -> "SODIUM(Na+)".
func stripFirstColumnParenSpace(lines []Line) {
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		if fixed := parenSpaceRe.ReplaceAllString(line[0].Text, "("); fixed != line[0].Text {
			line[0].Text = fixed
		}
	}
}

// medianGapX returns the median horizontal gap between adjacent tokens.
func medianGapX(line Line) int {
	type span struct{ l, r int }
	spans := make([]span, 0, len(line))
	for _, t := range line {
		if t.XRight >= t.XLeft {
			spans = append(spans, span{t.XLeft, t.XRight})
		}
	}
	if len(spans) < 2 {
		return 0
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].l < spans[j].l })

	gaps := make([]int, 0, len(spans)-1)
	for i := 0; i < len(spans)-1; i++ {
		if g := spans[i+1].l - spans[i].r; g >= 0 {
			gaps = append(gaps, g)
		}
	}
	if len(gaps) == 0 {
		return 0
	}
	sort.Ints(gaps)
	return gaps[len(gaps)/2]
}

// splitValueUnits splits fused value+unit tokens into a numeric half and
// a unit-candidate half, preserving geometry by splitting the box at its
// horizontal midpoint. Single H/L/N letters and range-separator tails are
// never treated as units, and unit tails are capped at 12 characters.
func splitValueUnits(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		newLine := make(Line, 0, len(line))
		for _, tok := range line {
			value, unit, ok := splitValueUnitText(tok.Text)
			if !ok {
				newLine = append(newLine, tok)
				continue
			}

			left, right := tok, tok
			left.Text = value
			left.Origin = originSplitValue
			right.Text = unit
			right.Origin = originSplitUnit
			right.RawUnit = unit

			if tok.XRight >= tok.XLeft {
				mid := (tok.XLeft + tok.XRight) / 2
				left.XRight = mid
				right.XLeft = mid
			}
			newLine = append(newLine, left, right)
		}
		out = append(out, newLine)
	}
	return out
}

func splitValueUnitText(text string) (value, unit string, ok bool) {
	var comp, num, tail string
	if m := spacedSplitRe.FindStringSubmatch(text); m != nil {
		comp, num, tail = m[1], m[2], strings.TrimSpace(m[3])
	} else if m := gluedSplitRe.FindStringSubmatch(text); m != nil {
		comp, num, tail = m[1], m[2], strings.TrimSpace(m[3])
	} else {
		return "", "", false
	}

	if singleFlagRe.MatchString(tail) {
		return "", "", false
	}
	if strings.ContainsAny(tail, "-–~") {
		return "", "", false
	}
	if tail == "" || len(tail) > 12 {
		return "", "", false
	}

	value = strings.TrimSpace(comp) + strings.TrimSpace(num)
	return value, tail, true
}

// annotateValueFlags records H/L/N warning suffixes on bare numeric
// tokens without changing their text. Unit-candidate halves are skipped.
func annotateValueFlags(lines []Line) {
	for _, line := range lines {
		for i := range line {
			tok := &line[i]
			if tok.Origin == originSplitUnit || tok.ValueFlag != "" {
				continue
			}
			m := valueFlagRe.FindStringSubmatch(tok.Text)
			if m == nil {
				continue
			}
			tok.ValueNum = m[1]
			tok.ValueFlag = strings.ToUpper(m[2])
		}
	}
}

// removeStatusTokens drops label-only status tokens (NORMAL/LOW/HIGH,
// exact match) so they do not pollute body cells.
func removeStatusTokens(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		kept := make(Line, 0, len(line))
		for _, tok := range line {
			if statusWords[strings.ToLower(strings.TrimSpace(tok.Text))] {
				continue
			}
			kept = append(kept, tok)
		}
		out = append(out, kept)
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
