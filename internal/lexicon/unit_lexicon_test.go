package lexicon

import "testing"

func TestResolveUnitVariants(t *testing.T) {
	lx := GetUnitLexicon()

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"canonical passthrough", "K/µL", "K/µL"},
		{"lowercase k slash ul", "k/ul", "K/µL"},
		{"uppercase UL", "K/UL", "K/µL"},
		{"exponent form", "10^3/µL", "K/µL"},
		{"exponent ascii micro", "10^3/uL", "K/µL"},
		{"exponent with x prefix", "x10^3/uL", "K/µL"},
		{"superscript form", "10³/µL", "K/µL"},
		{"slashless form", "KµL", "K/µL"},
		{"slashless ascii", "KuL", "K/µL"},
		{"million exponent", "10^6/uL", "M/µL"},
		{"mg per dl case folded", "MG/DL", "mg/dL"},
		{"grams per dl", "g/dl", "g/dL"},
		{"percent", "%", "%"},
		{"femtoliter", "fl", "fL"},
		{"unknown unit", "bogus", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lx.Resolve(tt.token); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestResolveUnitIdempotent(t *testing.T) {
	lx := GetUnitLexicon()

	for _, cu := range lx.Units() {
		got := lx.Resolve(cu)
		if got != cu {
			t.Errorf("Resolve(%q) = %q, canonical units must resolve to themselves", cu, got)
		}
		if again := lx.Resolve(got); again != got {
			t.Errorf("Resolve is not idempotent for %q: %q -> %q", cu, got, again)
		}
	}
}

func TestNormalizeUnitSimple(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10^3/µL", "K/µL"},
		{"x10^3/µL", "K/µL"},
		{"k/ul", "K/µL"},
		{"K / UL", "K/µL"},
		{"10^6/µL", "M/µL"},
		{"mg / dL", "mg/dL"},
		{"%", "%"},
		{"", ""},
		{"UNKNOWN", ""},
	}

	for _, tt := range tests {
		if got := NormalizeUnitSimple(tt.in); got != tt.want {
			t.Errorf("NormalizeUnitSimple(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMixedValueUnitPreserved(t *testing.T) {
	mixed := []string{"neg pos/n", "pos neg/n", "12.5 mg/dL", "7.2H K/µL"}
	for _, s := range mixed {
		if !IsValueUnitMixed(s) {
			t.Errorf("IsValueUnitMixed(%q) = false, want true", s)
		}
		if got := NormalizeUnitSimple(s); got != s {
			t.Errorf("NormalizeUnitSimple(%q) = %q, mixed strings must be preserved", s, got)
		}
	}

	pure := []string{"pos/n", "mg/dL", "K/µL"}
	for _, s := range pure {
		if IsValueUnitMixed(s) {
			t.Errorf("IsValueUnitMixed(%q) = true, want false", s)
		}
	}
}
