/**
 * Header Resolver
 *
 * Determines the column -> role mapping for a document's table using a
 * three-tier strategy, first success wins:
 *
 *   Tier 1 "ocr":      read the printed header line above the body
 *   Tier 2 "inferred": statistical per-column shape inference (header_infer.go)
 *   Tier 3 "llm":      structured-output language model call (header_llm.go)
 *
 * Tiers 1 and 2 must additionally pass a header-body alignment gate; a
 * resolved spec whose roles do not match the body's cell shapes falls
 * through to the next tier. When every tier fails the caller proceeds
 * with "no header" (empty tests plus a QA flag), never a guess.
 */

package extract

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/vetpipe/labreport-worker/internal/lexicon"
)

// Role is a header column role.
type Role string

const (
	RoleName      Role = "name"
	RoleUnit      Role = "unit"
	RoleResult    Role = "result"
	RoleReference Role = "reference"
	RoleMin       Role = "min"
	RoleMax       Role = "max"

	// roleDate is internal to tier 1: a date-labeled column is promoted
	// to result when no result column was found.
	roleDate Role = "date"
)

// Header sources
const (
	HeaderSourceOCR      = "ocr"
	HeaderSourceInferred = "inferred"
	HeaderSourceLLM      = "llm"
)

// HeaderSpec maps column indexes to roles.
type HeaderSpec struct {
	Columns map[int]Role `json:"columns"`
	Source  string       `json:"source"`
	Valid   bool         `json:"valid"`
}

// ColumnCount returns K, the number of table columns the header implies.
func (h *HeaderSpec) ColumnCount() int {
	maxIdx := -1
	for idx := range h.Columns {
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	return maxIdx + 1
}

// ColumnFor returns the column index assigned to a role, or -1.
func (h *HeaderSpec) ColumnFor(role Role) int {
	for idx, r := range h.Columns {
		if r == role {
			return idx
		}
	}
	return -1
}

// validate enforces the HeaderSpec invariants: every role except the
// reference/min-max pair at most once, reference and (min,max) mutually
// exclusive, and the name+unit+result+(reference xor (min and max))
// acceptance policy.
func (h *HeaderSpec) validate() bool {
	seen := map[Role]int{}
	for _, r := range h.Columns {
		seen[r]++
		if seen[r] > 1 {
			return false
		}
	}

	hasRef := seen[RoleReference] > 0
	hasMin, hasMax := seen[RoleMin] > 0, seen[RoleMax] > 0
	if hasRef && (hasMin || hasMax) {
		return false
	}

	if seen[RoleName] == 0 || seen[RoleUnit] == 0 || seen[RoleResult] == 0 {
		return false
	}
	return hasRef || (hasMin && hasMax)
}

// HeaderLLM is the narrow interface to the tier-3 language model
// collaborator. It is the pipeline's only process-boundary suspension
// point and must honor the context deadline.
type HeaderLLM interface {
	ResolveHeaderRoles(ctx context.Context, sampleLines []string) (map[string]int, error)
}

// HeaderResolverSettings tunes the resolver.
type HeaderResolverSettings struct {
	// AlignmentThreshold gates tier 1/2 specs against the body cells.
	AlignmentThreshold float64
	// MinDistinctRoles is the minimum distinct role-synonym hits for a
	// printed header line to be accepted by tier 1.
	MinDistinctRoles int
}

// DefaultHeaderResolverSettings mirror the production defaults.
func DefaultHeaderResolverSettings() HeaderResolverSettings {
	return HeaderResolverSettings{AlignmentThreshold: 0.65, MinDistinctRoles: 3}
}

// HeaderResolver runs the tiered resolution strategy.
type HeaderResolver struct {
	settings HeaderResolverSettings
	codes    *lexicon.CodeLexicon
	units    *lexicon.UnitLexicon
	llm      HeaderLLM // nil disables tier 3
}

// NewHeaderResolver creates a resolver. llm may be nil, which disables
// the tier-3 fallback.
func NewHeaderResolver(settings HeaderResolverSettings, codes *lexicon.CodeLexicon, units *lexicon.UnitLexicon, llm HeaderLLM) *HeaderResolver {
	if settings.AlignmentThreshold <= 0 {
		settings.AlignmentThreshold = 0.65
	}
	if settings.MinDistinctRoles <= 0 {
		settings.MinDistinctRoles = 3
	}
	return &HeaderResolver{settings: settings, codes: codes, units: units, llm: llm}
}

// Resolve runs the tiers in order and returns the first spec that both
// validates and aligns with the body. ok=false means "no header": the
// pipeline continues with empty tests and a QA flag.
func (r *HeaderResolver) Resolve(ctx context.Context, jobID string, loc BodyLocation) (HeaderSpec, bool) {
	if spec, ok := r.resolveFromOCR(loc.Header); ok {
		if r.alignsWithBody(spec, loc.Body) {
			return spec, true
		}
		log.Printf("[Job %s] Header from printed text failed body alignment, trying inference", jobID)
	}

	if spec, ok := r.inferFromBody(loc.Body); ok {
		if r.alignsWithBody(spec, loc.Body) {
			return spec, true
		}
		log.Printf("[Job %s] Inferred header failed body alignment, trying LLM fallback", jobID)
	}

	if r.llm != nil {
		if spec, ok := r.resolveWithLLM(ctx, jobID, loc.Body); ok {
			return spec, true
		}
	}

	return HeaderSpec{}, false
}

// Role synonym table for the printed-header tier. Keys are normalized:
// lowercased with punctuation folded to spaces.
var roleSynonyms = map[Role][]string{
	RoleName:      {"name", "test", "test name", "parameter", "item", "검사항목", "항목", "검사명", "분석항목"},
	RoleUnit:      {"unit", "units", "단위"},
	RoleResult:    {"result", "results", "value", "측정값", "결과", "결과치", "검사결과"},
	RoleReference: {"reference", "ref", "reference range", "ref range", "normal range", "range", "참고치", "참고범위", "정상범위", "기준치"},
	RoleMin:       {"min", "minimum", "lower", "하한"},
	RoleMax:       {"max", "maximum", "upper", "상한"},
	roleDate:      {"date", "날짜", "검사일", "검사일자"},
}

var headerPunctRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

func normalizeHeaderText(s string) string {
	t := headerPunctRe.ReplaceAllString(strings.ToLower(s), " ")
	return strings.TrimSpace(t)
}

// resolveFromOCR scans header lines in reverse (nearest to the body
// first) for a line carrying enough distinct role synonyms.
func (r *HeaderResolver) resolveFromOCR(header []Line) (HeaderSpec, bool) {
	for i := len(header) - 1; i >= 0; i-- {
		line := header[i]
		if len(line) < r.settings.MinDistinctRoles {
			continue
		}

		columns := make(map[int]Role)
		distinct := make(map[Role]bool)
		for col, tok := range line {
			role, ok := matchRoleSynonym(tok.Text)
			if !ok {
				continue
			}
			if _, taken := columns[col]; taken {
				continue
			}
			if distinct[role] {
				continue // first hit per role wins
			}
			columns[col] = role
			distinct[role] = true
		}

		if len(distinct) < r.settings.MinDistinctRoles {
			continue
		}

		promoteDateToResult(columns)

		spec := HeaderSpec{Columns: columns, Source: HeaderSourceOCR}
		if spec.validate() {
			spec.Valid = true
			return spec, true
		}
	}
	return HeaderSpec{}, false
}

func matchRoleSynonym(text string) (Role, bool) {
	norm := normalizeHeaderText(text)
	if norm == "" {
		return "", false
	}
	for role, syns := range roleSynonyms {
		for _, s := range syns {
			if norm == s {
				return role, true
			}
		}
	}
	return "", false
}

// promoteDateToResult promotes a date-labeled column to result when no
// result column was found: reports frequently print the measured value
// under a dated column header.
func promoteDateToResult(columns map[int]Role) {
	hasResult := false
	dateCol := -1
	for col, role := range columns {
		switch role {
		case RoleResult:
			hasResult = true
		case roleDate:
			dateCol = col
		}
	}
	if !hasResult && dateCol >= 0 {
		columns[dateCol] = RoleResult
	} else if dateCol >= 0 {
		delete(columns, dateCol)
	}
}

// alignsWithBody checks the resolved roles against the body's cell
// shapes over the first 20 rows: result cells must look numeric,
// reference cells like ranges, unit cells like units, name cells must
// resolve as codes. The matching fraction must reach the threshold.
func (r *HeaderResolver) alignsWithBody(spec HeaderSpec, body []Line) bool {
	const sampleRows = 20

	checked, matched := 0, 0
	for i, line := range body {
		if i >= sampleRows {
			break
		}
		for col, role := range spec.Columns {
			if col >= len(line) {
				continue
			}
			cell := strings.TrimSpace(line[col].Text)
			if cell == "" {
				continue
			}
			checked++
			if r.cellMatchesRole(cell, role) {
				matched++
			}
		}
	}

	if checked == 0 {
		return false
	}
	return float64(matched)/float64(checked) >= r.settings.AlignmentThreshold
}

func (r *HeaderResolver) cellMatchesRole(cell string, role Role) bool {
	switch role {
	case RoleName:
		return r.codes.ResolveLoose(cell) != ""
	case RoleUnit:
		return r.units.Contains(cell) || isUnitShaped(cell)
	case RoleResult:
		return isNumberLike(cell)
	case RoleReference:
		return isRangeLike(cell)
	case RoleMin, RoleMax:
		return isNumberLike(cell)
	}
	return false
}
