package extract

import (
	"strings"
	"testing"
)

// tk builds a synthetic OCR token with plausible box geometry: 10px per
// rune, 20px tall, anchored at (x, y).
func tk(text string, conf float64, x, y int) Token {
	w := 10 * len([]rune(text))
	if w == 0 {
		w = 10
	}
	return Token{
		Text:       text,
		Confidence: conf,
		XLeft:      x,
		XRight:     x + w,
		YTop:       y,
		YBottom:    y + 20,
		YCenter:    y + 10,
		RawH:       20,
	}
}

func lineTexts(lines []Line) [][]string {
	out := make([][]string, len(lines))
	for i, l := range lines {
		out[i] = l.Texts()
	}
	return out
}

func TestExtractLinesConfidenceGate(t *testing.T) {
	a := NewAssembler(DefaultAssemblerSettings())

	tokens := []Token{
		tk("GLU", 0.95, 40, 100),
		tk("smudge", 0.30, 150, 100), // below 0.5, dropped
		tk("98", 0.92, 250, 100),
	}

	lines := a.ExtractLines(tokens)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	got := strings.Join(lines[0].Texts(), " ")
	if got != "GLU 98" {
		t.Errorf("expected 'GLU 98', got %q", got)
	}
}

func TestExtractLinesEmptyInput(t *testing.T) {
	a := NewAssembler(DefaultAssemblerSettings())
	if lines := a.ExtractLines(nil); lines != nil {
		t.Errorf("expected nil lines for nil tokens, got %v", lineTexts(lines))
	}
}

func TestExtractLinesYBandClustering(t *testing.T) {
	a := NewAssembler(DefaultAssemblerSettings())

	// tau = median height (20) * 0.7 = 14. The second token sits 3px
	// lower than the first (same line); the third sits 60px lower.
	tokens := []Token{
		tk("BUN", 0.95, 40, 100),
		tk("18", 0.95, 200, 103),
		tk("CREA", 0.95, 40, 160),
		tk("1.1", 0.95, 200, 161),
	}

	lines := a.ExtractLines(tokens)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lineTexts(lines))
	}
	if got := strings.Join(lines[0].Texts(), " "); got != "BUN 18" {
		t.Errorf("line 0: expected 'BUN 18', got %q", got)
	}
	if got := strings.Join(lines[1].Texts(), " "); got != "CREA 1.1" {
		t.Errorf("line 1: expected 'CREA 1.1', got %q", got)
	}
}

func TestExtractLinesXOrderWithinLine(t *testing.T) {
	a := NewAssembler(DefaultAssemblerSettings())

	// Tokens arrive out of x order within one y band.
	tokens := []Token{
		tk("98", 0.95, 250, 100),
		tk("GLU", 0.95, 40, 101),
	}

	lines := a.ExtractLines(tokens)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if got := strings.Join(lines[0].Texts(), " "); got != "GLU 98" {
		t.Errorf("expected x-sorted 'GLU 98', got %q", got)
	}
}

func TestMergeNameFragments(t *testing.T) {
	a := NewAssembler(DefaultAssemblerSettings())

	// "POTASSIUM" box ends at x=130; "(K+)" starts at x=140 (gap 10).
	tokens := []Token{
		tk("POTASSIUM", 0.95, 40, 100),
		tk("(K+)", 0.95, 140, 100),
		tk("4.5", 0.95, 320, 100),
		tk("mmol/L", 0.95, 440, 100),
	}

	lines := a.ExtractLines(tokens)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if len(lines[0]) != 3 {
		t.Fatalf("expected 3 tokens after merge, got %v", lines[0].Texts())
	}
	head := lines[0][0]
	if head.Text != "POTASSIUM(K+)" {
		t.Errorf("expected merged head 'POTASSIUM(K+)', got %q", head.Text)
	}
	if head.Origin != "name_merge" {
		t.Errorf("expected name_merge origin, got %q", head.Origin)
	}
	if head.XLeft != 40 || head.XRight != 180 {
		t.Errorf("expected merged box [40,180], got [%d,%d]", head.XLeft, head.XRight)
	}
}

func TestMergeNameFragmentsRespectsGap(t *testing.T) {
	a := NewAssembler(DefaultAssemblerSettings())

	// A parenthesized fragment far from the head stays separate: the gap
	// to the head (530px) dwarfs the line's median gap.
	tokens := []Token{
		tk("HCT", 0.95, 40, 100),
		tk("(45)", 0.95, 600, 100),
		tk("%", 0.95, 660, 100),
		tk("37.0-55.0", 0.95, 700, 100),
	}

	lines := a.ExtractLines(tokens)
	if len(lines) != 1 || len(lines[0]) != 4 {
		t.Fatalf("expected 4 unmerged tokens, got %v", lineTexts(lines))
	}
}

func TestStripFirstColumnParenSpace(t *testing.T) {
	a := NewAssembler(DefaultAssemblerSettings())

	tokens := []Token{
		tk("SODIUM (Na+)", 0.95, 40, 100),
		tk("148", 0.95, 320, 100),
	}

	lines := a.ExtractLines(tokens)
	if got := lines[0][0].Text; got != "SODIUM(Na+)" {
		t.Errorf("expected 'SODIUM(Na+)', got %q", got)
	}
}

func TestSplitValueUnits(t *testing.T) {
	tests := []struct {
		text      string
		wantValue string
		wantUnit  string
		wantSplit bool
	}{
		{"1.9mg/dL", "1.9", "mg/dL", true},
		{"< 5 ug/mL", "<5", "ug/mL", true},
		{"12.5%", "12.5", "%", true},
		{"9.8H", "", "", false},       // single warning flag is not a unit
		{"6.54-12.2", "", "", false},  // ranges are never split
		{"45.1", "", "", false},       // bare number
		{"mg/dL", "", "", false},      // bare unit
		{"2024-03-15", "", "", false}, // date
	}

	for _, tt := range tests {
		value, unit, ok := splitValueUnitText(tt.text)
		if ok != tt.wantSplit {
			t.Errorf("%q: split=%v, want %v", tt.text, ok, tt.wantSplit)
			continue
		}
		if !ok {
			continue
		}
		if value != tt.wantValue || unit != tt.wantUnit {
			t.Errorf("%q: got (%q, %q), want (%q, %q)", tt.text, value, unit, tt.wantValue, tt.wantUnit)
		}
	}
}

func TestSplitValueUnitsGeometry(t *testing.T) {
	a := NewAssembler(DefaultAssemblerSettings())

	tokens := []Token{
		tk("ALB", 0.95, 40, 100),
		tk("2.9g/dL", 0.95, 300, 100),
	}

	lines := a.ExtractLines(tokens)
	if len(lines) != 1 || len(lines[0]) != 3 {
		t.Fatalf("expected 3 tokens after split, got %v", lineTexts(lines))
	}

	value, unit := lines[0][1], lines[0][2]
	if value.Text != "2.9" || unit.Text != "g/dL" {
		t.Fatalf("expected split into '2.9' and 'g/dL', got %q and %q", value.Text, unit.Text)
	}
	if value.Origin != "split_value" || unit.Origin != "split_unit_candidate" {
		t.Errorf("unexpected origins %q / %q", value.Origin, unit.Origin)
	}
	if value.XRight != unit.XLeft {
		t.Errorf("split halves should share the midpoint, got %d and %d", value.XRight, unit.XLeft)
	}
	if unit.RawUnit != "g/dL" {
		t.Errorf("expected raw unit on the candidate half, got %q", unit.RawUnit)
	}
}

func TestAnnotateValueFlags(t *testing.T) {
	a := NewAssembler(DefaultAssemblerSettings())

	tokens := []Token{
		tk("WBC", 0.95, 40, 100),
		tk("22.4H", 0.95, 300, 100),
	}

	lines := a.ExtractLines(tokens)
	flagged := lines[0][1]
	if flagged.Text != "22.4H" {
		t.Fatalf("flag annotation must not change the text, got %q", flagged.Text)
	}
	if flagged.ValueNum != "22.4" || flagged.ValueFlag != "H" {
		t.Errorf("expected num=22.4 flag=H, got num=%q flag=%q", flagged.ValueNum, flagged.ValueFlag)
	}
}

func TestRemoveStatusTokens(t *testing.T) {
	a := NewAssembler(DefaultAssemblerSettings())

	tokens := []Token{
		tk("GLU", 0.95, 40, 100),
		tk("98", 0.95, 200, 100),
		tk("NORMAL", 0.95, 320, 100),
		tk("Highest", 0.95, 460, 100), // substring match must not remove
	}

	lines := a.ExtractLines(tokens)
	if got := strings.Join(lines[0].Texts(), " "); got != "GLU 98 Highest" {
		t.Errorf("expected status word removed, got %q", got)
	}
}
