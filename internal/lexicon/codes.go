/**
 * Static reference data for veterinary lab tests
 *
 * Read-only table of canonical test codes with their canonical units.
 * Loaded once per process; the lexicons in this package are built from it.
 */

package lexicon

// ReferenceTest defines one canonical test code and its canonical unit.
// Unit is empty for unitless tests (ratios, pH, qualitative flags).
type ReferenceTest struct {
	Code string
	Unit string
}

// referenceTests lists every test code the pipeline can recognize,
// grouped by panel.
var referenceTests = []ReferenceTest{
	// Blood gas
	{"AG", "mmol/L"},
	{"AnGap", "mmol/L"},
	{"BB", "mmol/L"},
	{"BE", "mmol/L"},
	{"BE(Art)", "mmol/L"},
	{"BE(Ven)", "mmol/L"},
	{"BE-Ecf", "mmol/L"},
	{"COHb", "%"},
	{"FHHb", "%"},
	{"FO2Hb", "%"},
	{"HCO3", "mmol/L"},
	{"HCO3(Art)", "mmol/L"},
	{"HCO3(Ven)", "mmol/L"},
	{"HCO3-Std", "mmol/L"},
	{"iCa-pH7.4", "mmol/L"},
	{"LAC", "mmol/L"},
	{"Lac", "mmol/L"},
	{"Lac(Art)", "mmol/L"},
	{"Lac(Ven)", "mmol/L"},
	{"MetHb", "%"},
	{"O2SAT", "%"},
	{"pCO2", "mmHg"},
	{"pCO2(Art)", "mmHg"},
	{"pCO2(Ven)", "mmHg"},
	{"PCO2(T)", "mmHg"},
	{"pH", ""},
	{"pH(Art)", ""},
	{"pH(Ven)", ""},
	{"PH(T)", ""},
	{"pO2", "mmHg"},
	{"pO2(Art)", "mmHg"},
	{"pO2(Ven)", "mmHg"},
	{"pO2(A-a)", "mmHg"},
	{"PO2(T)", "mmHg"},
	{"sO2", "%"},
	{"sO2(Art)", "%"},
	{"sO2(Ven)", "%"},
	{"TCO2", "mmol/L"},
	{"TCO2(Art)", "mmol/L"},
	{"TCO2(Ven)", "mmol/L"},
	{"tHb", "g/dL"},

	// CBC
	{"BASO", "K/µL"},
	{"BASO%", "%"},
	{"CHr", "pg"},
	{"EOSIN", "K/µL"},
	{"EOS%", "%"},
	{"HCT", "%"},
	{"HGB", "g/dL"},
	{"Lymph%", "%"},
	{"LYMPH%", "%"},
	{"LYMPH", "K/µL"},
	{"LYM", "K/µL"},
	{"LYM%", "%"},
	{"MCH", "pg"},
	{"MCHC", "g/dL"},
	{"MCV", "fL"},
	{"MCVr", "fL"},
	{"MONO", "K/µL"},
	{"MONO%", "%"},
	{"NEUT", "K/µL"},
	{"NEU%", "%"},
	{"NEU", "K/µL"},
	{"NEUTROPHILS%", "%"},
	{"PCT", "%"},
	{"PCT%", "%"},
	{"PDW", "fL"},
	{"PLT", "K/µL"},
	{"RBC", "M/µL"},
	{"RDW", "%"},
	{"RDW-CV", "%"},
	{"RDW-SD", "fL"},
	{"RETIC", "K/µL"},
	{"RETIC-HGB", "pg"},
	{"RETHGB", "pg"},
	{"WBC", "K/µL"},
	{"WBC-A", "K/µL"},
	{"WBC-BASO", "K/µL"},
	{"WBC-BASO%", "%"},
	{"WBC-EOS", "K/µL"},
	{"WBC-EOS%", "%"},
	{"WBC-LYM", "K/µL"},
	{"WBC-LYM%", "%"},
	{"WBC-MONO", "K/µL"},
	{"WBC-MONO%", "%"},
	{"WBC-NEU", "K/µL"},
	{"WBC-NEU%", "%"},
	{"MPV", "fL"},
	{"Retics%", "%"},
	{"LYMPHO%", "%"},

	// Chemistry
	{"A_G", ""},
	{"ALB", "g/dL"},
	{"Albumin", "g/dL"},
	{"ALP", "U/L"},
	{"ALT", "U/L"},
	{"AST", "U/L"},
	{"BA", "µmol/L"},
	{"BIL-Total", "mg/dL"},
	{"BUN", "mg/dL"},
	{"BUN/CRE", ""},
	{"Ca", "mg/dL"},
	{"Ca++", "mmol/L"},
	{"CHOL", "mg/dL"},
	{"CHOL_HDL_RATIO", ""},
	{"CK", "U/L"},
	{"Cl-", "mEq/L"},
	{"CPK", "U/L"},
	{"CRE", "mg/dL"},
	{"CREA", "mg/dL"},
	{"GGT", "U/L"},
	{"GLOB", "g/dL"},
	{"GLOB(calc)", "g/dL"},
	{"Globulin", "g/dL"},
	{"GLU", "mg/dL"},
	{"Glu", "mg/dL"},
	{"HDL_C", "mg/dL"},
	{"IP", "mg/dL"},
	{"K+", "mEq/L"},
	{"LDH", "U/L"},
	{"LDL_C", "mg/dL"},
	{"Mg", "mg/dL"},
	{"Na/K", ""},
	{"Na_K", ""},
	{"Na+", "mEq/L"},
	{"NH3", "µg/dL"},
	{"PHOS", "mg/dL"},
	{"T.Billirubin", "mg/dL"},
	{"T.Protein", "g/dL"},
	{"T4", "µg/dL"},
	{"TBIL", "mg/dL"},
	{"TCHO", "mg/dL"},
	{"TG", "mg/dL"},
	{"TP", "g/dL"},
	{"v-AMYL", "U/L"},
	{"v-LIP", "U/L"},
	{"ALKP", "U/L"},
	{"AMYL", "U/L"},
	{"LIPA", "U/L"},
	{"AST/GOT", "U/L"},
	{"ALB/GLOB", ""},
	{"BUN/CREA", ""},
	{"Triglyceride(TG)", "mg/dL"},
	{"SDMA", "µg/dL"},
	{"Fructosamine", "µmol/L"},
	{"Lactate", "mmol/L"},

	// Coagulation
	{"aPTT", "sec"},
	{"FIB", "mg/dL"},
	{"PT", "sec"},

	// Endocrine / serology
	{"CORT", "µg/dL"},
	{"cPL", "µg/L"},
	{"CRP", "mg/dL"},
	{"fPL", "µg/L"},
	{"FSAA", "µg/mL"},
	{"FT4", "ng/dL"},
	{"proBNP", "pmol/L"},
	{"SAA", "µg/mL"},
	{"SAA-Vcheck", "µg/mL"},
	{"TSH", "ng/mL"},

	// Urinalysis
	{"Bacteria", ""},
	{"BIL", "mg/dL"},
	{"BLO", ""},
	{"Crystals", ""},
	{"GLU_U", "mg/dL"},
	{"KET", "mg/dL"},
	{"pH_U", ""},
	{"PRO", "mg/dL"},
	{"RBC_U", "/hpf"},
	{"SG", ""},
	{"WBC_U", "/hpf"},

	// Infectious / misc
	{"Heartworm Ag", "Positive/Negative"},
	{"FeLV", "Positive/Negative"},
	{"FIV", "Positive/Negative"},
	{"BP", "mmHg"},
}

// ReferenceTests returns a copy of the canonical test table.
func ReferenceTests() []ReferenceTest {
	out := make([]ReferenceTest, len(referenceTests))
	copy(out, referenceTests)
	return out
}
