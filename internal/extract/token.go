/**
 * Core data model for the extraction pipeline
 *
 * Tokens arrive from the OCR collaborator with text, confidence and
 * bounding-box geometry in one shared coordinate system. Lines are
 * y-band groupings of tokens; once assigned they are never re-split,
 * except for the one-time value/unit split during assembly.
 */

package extract

// Token is one OCR-recognized text span with geometry and confidence.
type Token struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	YTop       int     `json:"y_top"`
	YBottom    int     `json:"y_bottom"`
	YCenter    int     `json:"y_center"`
	RawH       int     `json:"raw_h"`
	XLeft      int     `json:"x_left"`
	XRight     int     `json:"x_right"`

	LineIndex int `json:"line_index,omitempty"`

	// Annotations added during assembly. Origin marks split halves and
	// merged name fragments; ValueNum/ValueFlag carry the H/L/N warning
	// split without touching Text.
	Origin    string `json:"_origin,omitempty"`
	RawUnit   string `json:"raw_unit,omitempty"`
	ValueNum  string `json:"value_num,omitempty"`
	ValueFlag string `json:"value_flag,omitempty"`
}

// XCenter returns the horizontal center of the token box.
func (t Token) XCenter() int {
	return (t.XLeft + t.XRight) / 2
}

// Line is an ordered sequence of tokens sharing a vertical band.
type Line []Token

// Texts returns the line's token texts in order.
func (l Line) Texts() []string {
	out := make([]string, len(l))
	for i, t := range l {
		out[i] = t.Text
	}
	return out
}

const (
	// Origin tags for tokens produced during assembly
	originSplitValue    = "split_value"
	originSplitUnit     = "split_unit_candidate"
	originNameMerge     = "name_merge"
	originBodyCanonical = "body_canonical"
)

// UnknownCell is the first-class placeholder for unresolved cells.
// It flows through the pipeline and is only judged at the final filter.
const UnknownCell = "UNKNOWN"
