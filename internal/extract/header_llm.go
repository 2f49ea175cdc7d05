/**
 * Header Resolver, tier 3: language model fallback
 *
 * Last resort after the printed-header and inference tiers both fail.
 * Up to three representative, code-resolved body lines are sent to the
 * LLM collaborator, which must answer with a JSON object mapping each
 * role to a column index. The response is strictly validated: unknown
 * roles, reference next to min/max, or duplicate column indexes (outside
 * the documented priority order) invalidate it, and the pipeline then
 * proceeds with "no header" rather than guessing.
 *
 * Single attempt, timeout bounded by the caller's context. Retries, if
 * ever wanted, belong to the LLM client, not here.
 */

package extract

import (
	"context"
	"log"
	"strings"
)

const llmSampleLines = 3

// rolePriority orders duplicate-index resolution: when the model assigns
// two roles to one column, the higher-priority role keeps it.
var rolePriority = []Role{RoleName, RoleResult, RoleUnit, RoleReference, RoleMin, RoleMax}

// resolveWithLLM runs the tier-3 fallback.
func (r *HeaderResolver) resolveWithLLM(ctx context.Context, jobID string, body []Line) (HeaderSpec, bool) {
	samples := r.representativeSamples(body)
	if len(samples) == 0 {
		samples = body
	}
	if len(samples) == 0 {
		return HeaderSpec{}, false
	}
	if len(samples) > llmSampleLines {
		samples = samples[:llmSampleLines]
	}

	lines := make([]string, len(samples))
	for i, l := range samples {
		lines[i] = strings.Join(l.Texts(), " | ")
	}

	mapping, err := r.llm.ResolveHeaderRoles(ctx, lines)
	if err != nil {
		log.Printf("[Job %s] Header LLM fallback failed: %v", jobID, err)
		return HeaderSpec{}, false
	}

	spec, ok := headerSpecFromRoleMap(mapping)
	if !ok {
		log.Printf("[Job %s] Header LLM fallback returned an invalid mapping: %v", jobID, mapping)
		return HeaderSpec{}, false
	}
	return spec, true
}

// headerSpecFromRoleMap converts and validates the role -> column map
// returned by the model.
func headerSpecFromRoleMap(mapping map[string]int) (HeaderSpec, bool) {
	if len(mapping) == 0 {
		return HeaderSpec{}, false
	}

	valid := map[Role]bool{
		RoleName: true, RoleUnit: true, RoleResult: true,
		RoleReference: true, RoleMin: true, RoleMax: true,
	}

	byRole := make(map[Role]int, len(mapping))
	for rawRole, col := range mapping {
		role := Role(strings.ToLower(strings.TrimSpace(rawRole)))
		if !valid[role] || col < 0 {
			return HeaderSpec{}, false
		}
		if _, dup := byRole[role]; dup {
			return HeaderSpec{}, false
		}
		byRole[role] = col
	}

	// Duplicate column indexes are resolved in priority order; lower
	// priority roles lose their assignment.
	columns := make(map[int]Role)
	for _, role := range rolePriority {
		col, ok := byRole[role]
		if !ok {
			continue
		}
		if _, taken := columns[col]; taken {
			continue
		}
		columns[col] = role
	}

	spec := HeaderSpec{Columns: columns, Source: HeaderSourceLLM}
	if !spec.validate() {
		return HeaderSpec{}, false
	}
	spec.Valid = true
	return spec, true
}
