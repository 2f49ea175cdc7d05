package extract

import (
	"testing"

	"github.com/vetpipe/labreport-worker/internal/lexicon"
)

// mkLine builds a synthetic line with tokens spread left to right.
func mkLine(y int, texts ...string) Line {
	line := make(Line, 0, len(texts))
	x := 40
	for _, s := range texts {
		t := tk(s, 0.95, x, y)
		x = t.XRight + 40
		line = append(line, t)
	}
	return line
}

func TestLocateBody(t *testing.T) {
	codes := lexicon.GetCodeLexicon()

	lines := []Line{
		mkLine(40, "Hematology", "Report"),
		mkLine(70, "Test", "Result", "Unit", "Range"),
		mkLine(100, "WBC", "10.2", "K/µL", "6.0-17.0"),
		mkLine(130, "HCT", "45.1", "%", "37.0-55.0"),
		mkLine(160, "Page", "1", "of", "2"),
	}

	loc, ok := LocateBody(lines, codes)
	if !ok {
		t.Fatal("expected body to be located")
	}
	if loc.StartIndex != 2 {
		t.Errorf("expected start index 2, got %d", loc.StartIndex)
	}
	if len(loc.Header) != 2 {
		t.Errorf("expected 2 header lines, got %d", len(loc.Header))
	}
	if len(loc.Body) != 2 {
		t.Fatalf("expected 2 body lines, got %d", len(loc.Body))
	}
	if loc.Dropped != 1 {
		t.Errorf("expected 1 dropped footer line, got %d", loc.Dropped)
	}
}

func TestLocateBodyCanonicalizesLeadingTokens(t *testing.T) {
	codes := lexicon.GetCodeLexicon()

	lines := []Line{
		mkLine(100, "wbc", "10.2", "K/µL"),
		mkLine(130, "HCT(%)", "45.1", "%"),
	}

	loc, ok := LocateBody(lines, codes)
	if !ok || len(loc.Body) != 2 {
		t.Fatalf("expected 2 body lines, got ok=%v len=%d", ok, len(loc.Body))
	}
	if got := loc.Body[0][0].Text; got != "WBC" {
		t.Errorf("expected canonical 'WBC', got %q", got)
	}
	if got := loc.Body[1][0].Text; got != "HCT" {
		t.Errorf("expected canonical 'HCT', got %q", got)
	}
	if got := loc.Body[0][0].Origin; got != "body_canonical" {
		t.Errorf("expected body_canonical origin, got %q", got)
	}
	// Source lines must stay untouched.
	if lines[0][0].Text != "wbc" {
		t.Errorf("input line mutated: %q", lines[0][0].Text)
	}
}

func TestLocateBodyStartIndexNeverMoves(t *testing.T) {
	codes := lexicon.GetCodeLexicon()

	// A noise line between two resolving lines is pruned without shifting
	// the fixed start.
	lines := []Line{
		mkLine(100, "ALB", "2.9", "g/dL"),
		mkLine(130, "continued", "on", "next", "page"),
		mkLine(160, "GLU", "98", "mg/dL"),
	}

	loc, ok := LocateBody(lines, codes)
	if !ok {
		t.Fatal("expected body to be located")
	}
	if loc.StartIndex != 0 {
		t.Errorf("expected start index 0, got %d", loc.StartIndex)
	}
	if len(loc.Body) != 2 || loc.Dropped != 1 {
		t.Errorf("expected 2 body lines and 1 dropped, got %d and %d", len(loc.Body), loc.Dropped)
	}
}

func TestLocateBodyNoTable(t *testing.T) {
	codes := lexicon.GetCodeLexicon()

	lines := []Line{
		mkLine(40, "Happy", "Animal", "Hospital"),
		mkLine(70, "Invoice", "No.", "20240315"),
	}

	loc, ok := LocateBody(lines, codes)
	if ok {
		t.Fatal("expected no table")
	}
	if loc.StartIndex != -1 {
		t.Errorf("expected start index -1, got %d", loc.StartIndex)
	}
}
