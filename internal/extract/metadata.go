/**
 * Metadata Extractor
 *
 * Scans the pre-body region for hospital name, client (guardian) name,
 * patient name and inspection date. Every field is independently
 * optional: candidates are scored and the best one wins, but nothing is
 * ever synthesized from defaults. Label lexicons carry both Korean and
 * English forms since reports mix the two freely.
 */

package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DocumentMetadata holds the optional identity fields of a report.
// Empty string means "not found".
type DocumentMetadata struct {
	HospitalName   string `json:"hospital_name,omitempty"`
	ClientName     string `json:"client_name,omitempty"`
	PatientName    string `json:"patient_name,omitempty"`
	InspectionDate string `json:"inspection_date,omitempty"` // ISO-8601
}

var patientLabels = []string{"patient", "patient name", "pet name", "animal", "환자명", "환자", "동물명", "이름"}
var clientLabels = []string{"client", "owner", "guardian", "보호자", "보호자명", "고객명"}
var datePositiveCtx = []string{"date", "검사일", "검사일자", "접수일", "의뢰일", "채혈일", "보고일"}
var dateNegativeCtx = []string{"birth", "생년월일", "생일", "print", "출력"}

var (
	hospitalKoreanRe  = regexp.MustCompile(`(동물)?병원$`)
	hospitalEnglishRe = regexp.MustCompile(`(?i)(animal hospital|veterinary clinic|animal clinic|vet clinic|animal medical center)$`)
	hospitalNoiseRe   = regexp.MustCompile(`(?i)(https?://|www\.|@|tel|fax|\d{2,3}-\d{3,4}-\d{4})`)
)

const (
	maxNameTokens     = 3
	maxHospitalLength = 40
	nameGapFloor      = 16
	nameGapFactor     = 1.8
)

// ExtractMetadata extracts the four optional fields from the lines
// strictly above the body start.
func ExtractMetadata(header []Line) DocumentMetadata {
	return DocumentMetadata{
		HospitalName:   extractHospitalName(header),
		ClientName:     extractLabeledName(header, clientLabels),
		PatientName:    extractLabeledName(header, patientLabels),
		InspectionDate: extractInspectionDate(header),
	}
}

// extractLabeledName finds a label token and concatenates up to three
// tokens to its right, bounded by horizontal gap proximity. Numeric and
// date-like tokens terminate the scan: they belong to other fields.
func extractLabeledName(header []Line, labels []string) string {
	type candidate struct {
		text  string
		score float64
	}
	var best *candidate

	for lineIdx, line := range header {
		medGap := medianGapX(line)
		maxGap := int(float64(medGap)*nameGapFactor + 0.5)
		if maxGap < nameGapFloor {
			maxGap = nameGapFloor
		}

		for i, tok := range line {
			if !matchesLabel(tok.Text, labels) {
				continue
			}

			var parts []string
			prev := tok
			for j := i + 1; j < len(line) && len(parts) < maxNameTokens; j++ {
				next := line[j]
				if next.XLeft-prev.XRight > maxGap {
					break
				}
				text := strings.TrimSpace(next.Text)
				if text == "" || looksLikeDate(text) || longDigitRe.MatchString(text) || isNumberLike(text) {
					break
				}
				parts = append(parts, text)
				prev = next
			}
			if len(parts) == 0 {
				continue
			}

			name := strings.Join(parts, " ")
			score := float64(len(parts)) + 0.1*math.Log1p(float64(lineIdx))
			if best == nil || score > best.score {
				best = &candidate{text: name, score: score}
			}
		}
	}

	if best == nil {
		return ""
	}
	return best.text
}

func matchesLabel(text string, labels []string) bool {
	norm := normalizeHeaderText(text)
	if norm == "" {
		return false
	}
	for _, l := range labels {
		if norm == l {
			return true
		}
	}
	return false
}

// extractHospitalName prefers line fragments ending in hospital/clinic
// suffixes. Fragments carrying address, phone or URL noise, or exceeding
// the length cap, are excluded. Later lines get a small position bonus;
// the suffix itself is the dominant signal.
func extractHospitalName(header []Line) string {
	bestScore := 0.0
	best := ""

	for lineIdx, line := range header {
		for _, tok := range line {
			text := strings.TrimSpace(tok.Text)
			if text == "" || len(text) > maxHospitalLength {
				continue
			}
			if hospitalNoiseRe.MatchString(text) {
				continue
			}

			score := 0.0
			if hospitalKoreanRe.MatchString(text) {
				score += 3.0
			}
			if hospitalEnglishRe.MatchString(text) {
				score += 3.0
			}
			if score == 0 {
				continue
			}

			// Longer fragments carry more of the actual name.
			score += math.Min(float64(len([]rune(text)))/10.0, 1.5)
			score += 0.1 * math.Log1p(float64(lineIdx))

			if score > bestScore {
				bestScore = score
				best = text
			}
		}
	}

	return best
}

// extractInspectionDate finds date-shaped strings and ranks them by
// keyword context and format confidence.
func extractInspectionDate(header []Line) string {
	bestScore := math.Inf(-1)
	best := ""

	for lineIdx, line := range header {
		lineText := normalizeHeaderText(strings.Join(line.Texts(), " "))

		for _, tok := range line {
			iso, fourDigitYear, ok := parseDateToken(tok.Text)
			if !ok {
				continue
			}

			score := 0.5 // neutral context
			for _, kw := range datePositiveCtx {
				if strings.Contains(lineText, kw) {
					score += 2.0
					break
				}
			}
			for _, kw := range dateNegativeCtx {
				if strings.Contains(lineText, kw) {
					score -= 1.5
					break
				}
			}
			if fourDigitYear {
				score += 1.5
			} else {
				score += 0.7
			}
			score += 0.1 * math.Log1p(float64(lineIdx))

			if score > bestScore {
				bestScore = score
				best = iso
			}
		}
	}

	return best
}

// parseDateToken parses a date-shaped token and normalizes to ISO-8601.
// Two-digit years are expanded into the 2000s.
func parseDateToken(s string) (iso string, fourDigitYear bool, ok bool) {
	if m := dateYMDRe.FindStringSubmatch(s); m != nil {
		return formatISODate(m[1], m[2], m[3]), true, true
	}
	if m := dateKoreanRe.FindStringSubmatch(s); m != nil {
		return formatISODate(m[1], m[2], m[3]), true, true
	}
	if m := dateShortRe.FindStringSubmatch(s); m != nil {
		return formatISODate("20"+m[1], m[2], m[3]), false, true
	}
	return "", false, false
}

func formatISODate(y, m, d string) string {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}
