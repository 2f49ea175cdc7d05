package extract

import "testing"

func TestExtractMetadataFull(t *testing.T) {
	header := []Line{
		mkLine(40, "행복동물병원"),
		mkLine(70, "보호자:", "김철수"),
		mkLine(100, "환자명", "초코"),
		mkLine(130, "검사일:", "2024-03-15"),
	}

	md := ExtractMetadata(header)
	if md.HospitalName != "행복동물병원" {
		t.Errorf("hospital: got %q", md.HospitalName)
	}
	if md.ClientName != "김철수" {
		t.Errorf("client: got %q", md.ClientName)
	}
	if md.PatientName != "초코" {
		t.Errorf("patient: got %q", md.PatientName)
	}
	if md.InspectionDate != "2024-03-15" {
		t.Errorf("date: got %q", md.InspectionDate)
	}
}

func TestExtractMetadataAllOptional(t *testing.T) {
	header := []Line{mkLine(40, "Complete", "Blood", "Count")}

	md := ExtractMetadata(header)
	if md != (DocumentMetadata{}) {
		t.Errorf("expected empty metadata, got %+v", md)
	}
}

func TestExtractHospitalName(t *testing.T) {
	tests := []struct {
		name   string
		header []Line
		want   string
	}{
		{
			"english suffix",
			[]Line{mkLine(40, "Sunny Animal Hospital")},
			"Sunny Animal Hospital",
		},
		{
			"url noise excluded",
			[]Line{
				mkLine(40, "www.sunny.vet 동물병원"),
				mkLine(70, "달님동물병원"),
			},
			"달님동물병원",
		},
		{
			"no suffix no hospital",
			[]Line{mkLine(40, "Laboratory", "Report")},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractHospitalName(tt.header); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractLabeledNameStopsAtNumbers(t *testing.T) {
	// The scan right of the label must stop at date-like and numeric
	// tokens: they belong to other fields.
	header := []Line{
		mkLine(40, "Patient", "Choco", "2024-03-15"),
	}

	if got := extractLabeledName(header, patientLabels); got != "Choco" {
		t.Errorf("got %q, want %q", got, "Choco")
	}
}

func TestExtractLabeledNameMaxTokens(t *testing.T) {
	header := []Line{
		mkLine(40, "Owner", "Kim", "Cheol", "Su", "Junior"),
	}

	if got := extractLabeledName(header, clientLabels); got != "Kim Cheol Su" {
		t.Errorf("expected three-token cap, got %q", got)
	}
}

func TestExtractLabeledNameGapBound(t *testing.T) {
	// A token far to the right of the label is not its value. The line's
	// other gaps are tight, so the 620px jump exceeds the gap bound.
	line := Line{
		tk("환자명", 0.95, 40, 40),
		tk("초코", 0.95, 700, 40),
		tk("암컷", 0.95, 760, 40),
		tk("3kg", 0.95, 800, 40),
	}

	if got := extractLabeledName([]Line{line}, patientLabels); got != "" {
		t.Errorf("expected distant token rejected, got %q", got)
	}
}

func TestExtractInspectionDate(t *testing.T) {
	tests := []struct {
		name   string
		header []Line
		want   string
	}{
		{
			"labeled date beats birth date",
			[]Line{
				mkLine(40, "생년월일", "2020-01-01"),
				mkLine(70, "검사일", "2024-03-15"),
			},
			"2024-03-15",
		},
		{
			"korean date format",
			[]Line{mkLine(40, "검사일", "2024년 3월 15일")},
			"2024-03-15",
		},
		{
			"two digit year expands",
			[]Line{mkLine(40, "검사일", "24.03.15")},
			"2024-03-15",
		},
		{
			"dotted format",
			[]Line{mkLine(40, "검사일자", "2024.03.15")},
			"2024-03-15",
		},
		{
			"no date",
			[]Line{mkLine(40, "Laboratory", "Report")},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractInspectionDate(tt.header); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDateToken(t *testing.T) {
	tests := []struct {
		in       string
		wantISO  string
		wantFull bool
		wantOK   bool
	}{
		{"2024-03-15", "2024-03-15", true, true},
		{"2024/3/5", "2024-03-05", true, true},
		{"2024년 3월 15일", "2024-03-15", true, true},
		{"24.03.15", "2024-03-15", false, true},
		{"Choco", "", false, false},
	}

	for _, tt := range tests {
		iso, full, ok := parseDateToken(tt.in)
		if ok != tt.wantOK || iso != tt.wantISO || full != tt.wantFull {
			t.Errorf("%q: got (%q, %v, %v), want (%q, %v, %v)",
				tt.in, iso, full, ok, tt.wantISO, tt.wantFull, tt.wantOK)
		}
	}
}
