package extract

import (
	"testing"

	"github.com/vetpipe/labreport-worker/internal/lexicon"
)

func combinedRefSpec() HeaderSpec {
	return HeaderSpec{
		Columns: map[int]Role{0: RoleName, 1: RoleResult, 2: RoleUnit, 3: RoleReference},
		Source:  HeaderSourceOCR,
		Valid:   true,
	}
}

// bodyLine places tokens on fixed column anchors so that band centers
// are stable across lines.
func bodyLine(y int, cells ...string) Line {
	anchors := []int{40, 220, 380, 520, 660}
	line := make(Line, 0, len(cells))
	for i, s := range cells {
		if s == "" {
			continue
		}
		line = append(line, tk(s, 0.97, anchors[i], y))
	}
	return line
}

func TestFillRowsCombinedReference(t *testing.T) {
	units := lexicon.GetUnitLexicon()
	body := []Line{
		bodyLine(100, "WBC", "10.2", "K/µL", "6.0-17.0"),
		bodyLine(130, "HCT", "45.1", "%", "37.0-55.0"),
	}

	rows, ok := FillRows(body, combinedRefSpec(), units)
	if !ok {
		t.Fatal("expected rows to fill")
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	r := rows[0]
	if r.Name != "WBC" || r.Result != "10.2" || r.Unit != "K/µL" || r.Reference != "6.0-17.0" {
		t.Errorf("row 0: got %+v", r)
	}
	if len(r.Cells) != 4 {
		t.Errorf("cells must mirror the line tokens, got %v", r.Cells)
	}
	if r.SrcLine != 0 {
		t.Errorf("expected source line 0, got %d", r.SrcLine)
	}
}

func TestFillRowsMissingCellBecomesUnknown(t *testing.T) {
	units := lexicon.GetUnitLexicon()

	// The second line misses its unit token entirely.
	body := []Line{
		bodyLine(100, "WBC", "10.2", "K/µL", "6.0-17.0"),
		bodyLine(130, "ALB", "2.9", "", "2.3-4.0"),
	}

	rows, ok := FillRows(body, combinedRefSpec(), units)
	if !ok {
		t.Fatal("expected rows to fill")
	}

	r := rows[1]
	if r.Unit != UnknownCell {
		t.Errorf("expected UNKNOWN unit, got %q", r.Unit)
	}
	if r.Result != "2.9" || r.Reference != "2.3-4.0" {
		t.Errorf("other roles must survive: %+v", r)
	}
	if len(r.Cells) != 3 {
		t.Errorf("cells must mirror the 3 surviving tokens, got %v", r.Cells)
	}
}

func TestFillRowsTypeValidation(t *testing.T) {
	units := lexicon.GetUnitLexicon()

	// The result column holds prose on the second line; it must not be
	// accepted as a numeric result.
	body := []Line{
		bodyLine(100, "WBC", "10.2", "K/µL", "6.0-17.0"),
		bodyLine(130, "GLU", "pending", "mg/dL", "70-143"),
	}

	rows, ok := FillRows(body, combinedRefSpec(), units)
	if !ok {
		t.Fatal("expected rows to fill")
	}
	if rows[1].Result != UnknownCell {
		t.Errorf("expected prose rejected from the result role, got %q", rows[1].Result)
	}
}

func TestFillRowsResultConfidence(t *testing.T) {
	units := lexicon.GetUnitLexicon()
	line := Line{
		tk("WBC", 0.99, 40, 100),
		tk("10.2", 0.88, 220, 100),
		tk("K/µL", 0.95, 380, 100),
		tk("6.0-17.0", 0.92, 520, 100),
	}

	rows, ok := FillRows([]Line{line}, combinedRefSpec(), units)
	if !ok {
		t.Fatal("expected rows to fill")
	}
	if got := rows[0].ResultConfidence(); got != 0.88 {
		t.Errorf("result confidence must come from the result token, got %v", got)
	}
}

func TestFillRowsMinMaxLayout(t *testing.T) {
	units := lexicon.GetUnitLexicon()
	spec := HeaderSpec{
		Columns: map[int]Role{0: RoleName, 1: RoleResult, 2: RoleUnit, 3: RoleMin, 4: RoleMax},
		Source:  HeaderSourceInferred,
		Valid:   true,
	}

	body := []Line{
		bodyLine(100, "WBC", "10.2", "K/µL", "6.0", "17.0"),
	}

	rows, ok := FillRows(body, spec, units)
	if !ok {
		t.Fatal("expected rows to fill")
	}
	r := rows[0]
	if r.RefMin != "6.0" || r.RefMax != "17.0" {
		t.Errorf("expected min/max filled, got %q / %q", r.RefMin, r.RefMax)
	}
	if r.RefOrigin != "filler" {
		t.Errorf("expected filler ref origin, got %q", r.RefOrigin)
	}
}

func TestFillRowsNoGeometricSamples(t *testing.T) {
	units := lexicon.GetUnitLexicon()

	// Every line is narrower than K: no line can seed the column bands.
	body := []Line{
		bodyLine(100, "WBC", "10.2"),
		bodyLine(130, "HCT", "45.1"),
	}

	if _, ok := FillRows(body, combinedRefSpec(), units); ok {
		t.Fatal("expected structural failure without geometric samples")
	}
}

func TestBuildColumnBands(t *testing.T) {
	body := []Line{
		bodyLine(100, "WBC", "10.2", "K/µL", "6.0-17.0"),
		bodyLine(130, "HCT", "45.1", "%", "37.0-55.0"),
		bodyLine(160, "ALB", "2.9", "g/dL"), // narrower, not a band sample
	}

	bands, ok := buildColumnBands(body, 4)
	if !ok {
		t.Fatal("expected bands")
	}
	if len(bands.centers) != 4 || len(bands.edges) != 5 {
		t.Fatalf("expected 4 centers and 5 edges, got %d and %d", len(bands.centers), len(bands.edges))
	}
	for i := 1; i < len(bands.centers); i++ {
		if bands.centers[i] <= bands.centers[i-1] {
			t.Errorf("centers must be increasing: %v", bands.centers)
		}
	}
	if bands.edges[0] >= bands.centers[0] || bands.edges[4] <= bands.centers[3] {
		t.Errorf("outer edges must pad beyond the outer centers: %v", bands.edges)
	}
}
