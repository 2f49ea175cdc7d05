package lexicon

import "testing"

func TestResolveCodeExactAndCaseFolded(t *testing.T) {
	lx := GetCodeLexicon()

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"exact uppercase", "WBC", "WBC"},
		{"lowercase", "wbc", "WBC"},
		{"mixed case with symbol", "na+", "Na+"},
		{"percent suffix", "NEU%", "NEU%"},
		{"percent with parens", "LYMPH(%)", "LYMPH%"},
		{"percent with space", "LYMPH %", "LYMPH%"},
		{"slash code", "BUN/CRE", "BUN/CRE"},
		{"whitespace folded", " HCT ", "HCT"},
		{"unknown token", "NOTACODE", ""},
		{"empty token", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lx.Resolve(tt.token); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestResolveCodeZeroToOFallback(t *testing.T) {
	lx := GetCodeLexicon()

	tests := []struct {
		token string
		want  string
	}{
		{"p02", "pO2"},
		{"pC02", "pCO2"},
		{"TC02", "TCO2"},
	}

	for _, tt := range tests {
		if got := lx.Resolve(tt.token); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestResolveCodeAmbiguityReturnsEmpty(t *testing.T) {
	lx := GetCodeLexicon()

	// "GLU" and "Glu" collapse to one canonical entry, so this must resolve.
	if got := lx.Resolve("glu"); got == "" {
		t.Error("case variants of the same code should collapse and resolve")
	}

	// A bare alnum key shared by symbol variants must not resolve without
	// a symbol hint when more than one candidate remains.
	if got := lx.Resolve("NA K"); got != "" && got != "Na/K" && got != "Na_K" {
		t.Errorf("Resolve(\"NA K\") = %q, expected empty or one of the Na/K forms", got)
	}
}

func TestNormalizeCodeCandidate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"LYMPHO(%)", "LYMPHO"},
		{"NEUT%", "NEUT"},
		{"Cl-", "Cl"},
		{"SODIUM(Na+)", "SODIUM"},
		{"  WBC  ", "WBC"},
	}

	for _, tt := range tests {
		if got := NormalizeCodeCandidate(tt.in); got != tt.want {
			t.Errorf("NormalizeCodeCandidate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveLoose(t *testing.T) {
	lx := GetCodeLexicon()

	tests := []struct {
		token string
		want  string
	}{
		{"WBC-A", "WBC-A"}, // exact entry exists, no suffix stripping needed
		{"HCT-A", "HCT"},   // falls back to suffix-stripped base
		{"Cl-", "Cl-"},     // exact entry wins before dash stripping
		{"", ""},
	}

	for _, tt := range tests {
		if got := lx.ResolveLoose(tt.token); got != tt.want {
			t.Errorf("ResolveLoose(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}
