package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/vetpipe/labreport-worker/internal/lexicon"
)

func newTestResolver(llm HeaderLLM) *HeaderResolver {
	return NewHeaderResolver(DefaultHeaderResolverSettings(), lexicon.GetCodeLexicon(), lexicon.GetUnitLexicon(), llm)
}

// fakeHeaderLLM is a canned tier-3 collaborator.
type fakeHeaderLLM struct {
	mapping map[string]int
	err     error
	calls   int
}

func (f *fakeHeaderLLM) ResolveHeaderRoles(_ context.Context, _ []string) (map[string]int, error) {
	f.calls++
	return f.mapping, f.err
}

func combinedRefBody() []Line {
	return []Line{
		mkLine(100, "WBC", "10.2", "K/µL", "6.0-17.0"),
		mkLine(130, "HCT", "45.1", "%", "37.0-55.0"),
		mkLine(160, "ALB", "2.9", "g/dL", "2.3-4.0"),
		mkLine(190, "GLU", "98", "mg/dL", "70-143"),
	}
}

func TestResolveFromOCRHeader(t *testing.T) {
	r := newTestResolver(nil)

	loc := BodyLocation{
		Header: []Line{mkLine(70, "Test", "Result", "Unit", "Range")},
		Body:   combinedRefBody(),
	}

	spec, ok := r.Resolve(context.Background(), "job-1", loc)
	if !ok {
		t.Fatal("expected header to resolve")
	}
	if spec.Source != HeaderSourceOCR {
		t.Errorf("expected source ocr, got %q", spec.Source)
	}
	want := map[int]Role{0: RoleName, 1: RoleResult, 2: RoleUnit, 3: RoleReference}
	for col, role := range want {
		if spec.Columns[col] != role {
			t.Errorf("column %d: expected %s, got %s", col, role, spec.Columns[col])
		}
	}
	if spec.ColumnCount() != 4 {
		t.Errorf("expected 4 columns, got %d", spec.ColumnCount())
	}
}

func TestResolveFromOCRKoreanHeader(t *testing.T) {
	r := newTestResolver(nil)

	loc := BodyLocation{
		Header: []Line{mkLine(70, "검사항목", "결과", "단위", "참고치")},
		Body:   combinedRefBody(),
	}

	spec, ok := r.Resolve(context.Background(), "job-1", loc)
	if !ok || spec.Source != HeaderSourceOCR {
		t.Fatalf("expected Korean header to resolve via ocr, got ok=%v source=%q", ok, spec.Source)
	}
}

func TestResolveFromOCRDatePromotion(t *testing.T) {
	r := newTestResolver(nil)

	// No result column printed, but a date column holds the measured
	// values. The date role must be promoted to result.
	loc := BodyLocation{
		Header: []Line{mkLine(70, "Test", "Date", "Unit", "Range")},
		Body:   combinedRefBody(),
	}

	spec, ok := r.Resolve(context.Background(), "job-1", loc)
	if !ok {
		t.Fatal("expected header to resolve")
	}
	if spec.Columns[1] != RoleResult {
		t.Errorf("expected date column promoted to result, got %s", spec.Columns[1])
	}
}

func TestResolveInferredCombinedReference(t *testing.T) {
	r := newTestResolver(nil)

	// No printed header at all: roles come from body cell shapes.
	loc := BodyLocation{Body: combinedRefBody()}

	spec, ok := r.Resolve(context.Background(), "job-1", loc)
	if !ok {
		t.Fatal("expected inference to resolve")
	}
	if spec.Source != HeaderSourceInferred {
		t.Errorf("expected source inferred, got %q", spec.Source)
	}
	want := map[int]Role{0: RoleName, 1: RoleResult, 2: RoleUnit, 3: RoleReference}
	for col, role := range want {
		if spec.Columns[col] != role {
			t.Errorf("column %d: expected %s, got %s", col, role, spec.Columns[col])
		}
	}
}

func TestResolveInferredMinMaxLayout(t *testing.T) {
	r := newTestResolver(nil)

	// Split reference layout: no range cells anywhere, two trailing
	// numeric columns become min and max in order.
	loc := BodyLocation{Body: []Line{
		mkLine(100, "WBC", "10.2", "K/µL", "6.0", "17.0"),
		mkLine(130, "HCT", "45.1", "%", "37.0", "55.0"),
		mkLine(160, "ALB", "2.9", "g/dL", "2.3", "4.0"),
	}}

	spec, ok := r.Resolve(context.Background(), "job-1", loc)
	if !ok {
		t.Fatal("expected inference to resolve")
	}
	if spec.Source != HeaderSourceInferred {
		t.Errorf("expected source inferred, got %q", spec.Source)
	}
	want := map[int]Role{0: RoleName, 1: RoleResult, 2: RoleUnit, 3: RoleMin, 4: RoleMax}
	for col, role := range want {
		if spec.Columns[col] != role {
			t.Errorf("column %d: expected %s, got %s", col, role, spec.Columns[col])
		}
	}
}

func TestResolveLLMFallback(t *testing.T) {
	llm := &fakeHeaderLLM{mapping: map[string]int{
		"name": 0, "result": 1, "unit": 2, "reference": 3,
	}}
	r := newTestResolver(llm)

	// Two-column lines defeat both the printed-header and inference
	// tiers, forcing the LLM fallback.
	loc := BodyLocation{Body: []Line{
		mkLine(100, "WBC", "10.2"),
		mkLine(130, "HCT", "45.1"),
	}}

	spec, ok := r.Resolve(context.Background(), "job-1", loc)
	if !ok {
		t.Fatal("expected LLM fallback to resolve")
	}
	if spec.Source != HeaderSourceLLM {
		t.Errorf("expected source llm, got %q", spec.Source)
	}
	if llm.calls != 1 {
		t.Errorf("expected exactly one LLM call, got %d", llm.calls)
	}
}

func TestResolveLLMFailureMeansNoHeader(t *testing.T) {
	llm := &fakeHeaderLLM{err: errors.New("deadline exceeded")}
	r := newTestResolver(llm)

	loc := BodyLocation{Body: []Line{mkLine(100, "WBC", "10.2")}}

	if _, ok := r.Resolve(context.Background(), "job-1", loc); ok {
		t.Fatal("expected no header when the LLM call fails")
	}
}

func TestResolveNoLLMConfigured(t *testing.T) {
	r := newTestResolver(nil)

	loc := BodyLocation{Body: []Line{mkLine(100, "WBC", "10.2")}}

	if _, ok := r.Resolve(context.Background(), "job-1", loc); ok {
		t.Fatal("expected no header without an LLM tier")
	}
}

func TestHeaderSpecFromRoleMap(t *testing.T) {
	tests := []struct {
		name    string
		mapping map[string]int
		wantOK  bool
	}{
		{"valid combined ref", map[string]int{"name": 0, "result": 1, "unit": 2, "reference": 3}, true},
		{"valid min max", map[string]int{"name": 0, "result": 1, "unit": 2, "min": 3, "max": 4}, true},
		{"unknown role", map[string]int{"name": 0, "result": 1, "unit": 2, "flavor": 3}, false},
		{"negative column", map[string]int{"name": -1, "result": 1, "unit": 2, "reference": 3}, false},
		{"reference and min max together", map[string]int{"name": 0, "result": 1, "unit": 2, "reference": 3, "min": 4, "max": 5}, false},
		{"missing unit", map[string]int{"name": 0, "result": 1, "reference": 3}, false},
		{"min without max", map[string]int{"name": 0, "result": 1, "unit": 2, "min": 3}, false},
		{"empty", map[string]int{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, ok := headerSpecFromRoleMap(tt.mapping)
			if ok != tt.wantOK {
				t.Fatalf("ok=%v, want %v (spec=%v)", ok, tt.wantOK, spec.Columns)
			}
			if ok && spec.Source != HeaderSourceLLM {
				t.Errorf("expected source llm, got %q", spec.Source)
			}
		})
	}
}

func TestHeaderSpecFromRoleMapDuplicateColumn(t *testing.T) {
	// Result and unit both claim column 1: result wins by priority, unit
	// loses its assignment and the spec no longer validates.
	mapping := map[string]int{"name": 0, "result": 1, "unit": 1, "reference": 3}
	if _, ok := headerSpecFromRoleMap(mapping); ok {
		t.Fatal("expected duplicate-column mapping to invalidate the spec")
	}
}

func TestHeaderAlignmentGate(t *testing.T) {
	r := newTestResolver(nil)

	// A header line that reads like a header but points at columns whose
	// body cells have the wrong shapes must not pass the gate. Swapping
	// result and unit labels produces exactly that.
	loc := BodyLocation{
		Header: []Line{mkLine(70, "Test", "Unit", "Result", "Range")},
		Body:   combinedRefBody(),
	}

	spec, ok := r.Resolve(context.Background(), "job-1", loc)
	if !ok {
		t.Fatal("expected a lower tier to recover")
	}
	// Tier 1 fails alignment (unit column holds numbers); tier 2 infers
	// the true layout from the body itself.
	if spec.Source != HeaderSourceInferred {
		t.Errorf("expected inferred source after alignment rejection, got %q", spec.Source)
	}
	if spec.Columns[1] != RoleResult || spec.Columns[2] != RoleUnit {
		t.Errorf("expected corrected roles, got %v", spec.Columns)
	}
}

func TestHeaderSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		columns map[int]Role
		want    bool
	}{
		{"combined ref", map[int]Role{0: RoleName, 1: RoleResult, 2: RoleUnit, 3: RoleReference}, true},
		{"min max", map[int]Role{0: RoleName, 1: RoleResult, 2: RoleUnit, 3: RoleMin, 4: RoleMax}, true},
		{"missing result", map[int]Role{0: RoleName, 2: RoleUnit, 3: RoleReference}, false},
		{"no reference at all", map[int]Role{0: RoleName, 1: RoleResult, 2: RoleUnit}, false},
		{"min without max", map[int]Role{0: RoleName, 1: RoleResult, 2: RoleUnit, 3: RoleMin}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := HeaderSpec{Columns: tt.columns}
			if got := spec.validate(); got != tt.want {
				t.Errorf("validate()=%v, want %v", got, tt.want)
			}
		})
	}
}
