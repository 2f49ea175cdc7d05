package processor

import (
	"strings"
	"testing"

	"github.com/vetpipe/labreport-worker/internal/extract"
)

func TestDetectMimeTypeFromMagicBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, "image/png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, "image/jpeg"},
		{"gif", []byte("GIF89a....."), "image/gif"},
		{"tiff little-endian", []byte{0x49, 0x49, 0x2A, 0x00, 0x08}, "image/tiff"},
		{"tiff big-endian", []byte{0x4D, 0x4D, 0x00, 0x2A, 0x08}, "image/tiff"},
		{"bmp", []byte("BM6\x00\x00\x00"), "image/bmp"},
		{"webp", append([]byte("RIFF\x24\x00\x00\x00WEBP"), 0x56), "image/webp"},
		{"pdf", []byte("%PDF-1.7\n"), "application/pdf"},
		{"unknown", []byte("hello world"), ""},
		{"too short", []byte{0x89}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMimeTypeFromMagicBytes(tt.data); got != tt.want {
				t.Errorf("detectMimeTypeFromMagicBytes() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsSupportedImage(t *testing.T) {
	supported := []string{"image/png", "image/jpeg", "image/tiff", "image/bmp", "image/webp", "image/gif"}
	for _, mime := range supported {
		if !isSupportedImage(mime) {
			t.Errorf("expected %s to be supported", mime)
		}
	}

	unsupported := []string{"application/pdf", "application/octet-stream", "text/plain", ""}
	for _, mime := range unsupported {
		if isSupportedImage(mime) {
			t.Errorf("expected %s to be unsupported", mime)
		}
	}
}

func TestPanelText(t *testing.T) {
	min, max := 6.0, 17.0
	result := &extract.ExtractionResult{
		Metadata: extract.DocumentMetadata{HospitalName: "행복동물병원"},
		Tests: []extract.TestRecord{
			{Code: "WBC", ValueRaw: "12.5", Unit: "K/µL", ReferenceMin: &min, ReferenceMax: &max},
			{Code: "ALB", ValueRaw: "2.9", Unit: "g/dL"},
		},
	}

	got := panelText(result)

	wantLines := []string{
		"행복동물병원",
		"WBC 12.5 K/µL 6-17",
		"ALB 2.9 g/dL",
	}
	for _, line := range wantLines {
		if !strings.Contains(got, line+"\n") {
			t.Errorf("panel text missing line %q:\n%s", line, got)
		}
	}
}

func TestPanelTextWithoutHospital(t *testing.T) {
	result := &extract.ExtractionResult{
		Tests: []extract.TestRecord{{Code: "GLU", ValueRaw: "98", Unit: "mg/dL"}},
	}
	got := panelText(result)
	if got != "GLU 98 mg/dL\n" {
		t.Errorf("panel text = %q", got)
	}
}

func TestMeanValueConfidence(t *testing.T) {
	tests := []struct {
		name  string
		tests []extract.TestRecord
		want  float64
	}{
		{"empty", nil, 0},
		{"single", []extract.TestRecord{{ValueConfidence: 0.98}}, 0.98},
		{"mixed", []extract.TestRecord{
			{ValueConfidence: 0.96},
			{ValueConfidence: 1.0},
		}, 0.98},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := meanValueConfidence(tt.tests)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("meanValueConfidence() = %v, want %v", got, tt.want)
			}
		})
	}
}
