package queue

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestJobPayloadUnmarshalBase64Buffer(t *testing.T) {
	raw := `{
		"jobId": "550e8400-e29b-41d4-a716-446655440000",
		"clinicId": "clinic-7",
		"filename": "report.png",
		"mimeType": "image/png",
		"fileSize": 4,
		"fileBuffer": "iVBORw=="
	}`

	var p JobPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if p.JobID != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("jobId = %q", p.JobID)
	}
	if p.ClinicID != "clinic-7" {
		t.Errorf("clinicId = %q", p.ClinicID)
	}
	want := []byte{0x89, 0x50, 0x4E, 0x47}
	if !bytes.Equal(p.FileBuffer, want) {
		t.Errorf("fileBuffer = %v, want %v", p.FileBuffer, want)
	}
}

func TestJobPayloadUnmarshalNodeBufferObject(t *testing.T) {
	raw := `{
		"jobId": "j1",
		"filename": "report.jpg",
		"fileBuffer": {"type": "Buffer", "data": [255, 216, 255]}
	}`

	var p JobPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	want := []byte{0xFF, 0xD8, 0xFF}
	if !bytes.Equal(p.FileBuffer, want) {
		t.Errorf("fileBuffer = %v, want %v", p.FileBuffer, want)
	}
}

func TestJobPayloadUnmarshalMissingBuffer(t *testing.T) {
	raw := `{"jobId": "j2", "filename": "report.png", "fileUrl": "https://files.example/r.png"}`

	var p JobPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if p.FileBuffer != nil {
		t.Errorf("expected nil fileBuffer, got %v", p.FileBuffer)
	}
	if p.FileURL != "https://files.example/r.png" {
		t.Errorf("fileUrl = %q", p.FileURL)
	}
}

func TestJobPayloadUnmarshalRejectsBadBuffer(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid base64", `{"jobId": "j3", "fileBuffer": "!!not-base64!!"}`},
		{"wrong buffer type", `{"jobId": "j4", "fileBuffer": {"type": "Blob", "data": [1]}}`},
		{"missing data array", `{"jobId": "j5", "fileBuffer": {"type": "Buffer"}}`},
		{"numeric buffer", `{"jobId": "j6", "fileBuffer": 42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p JobPayload
			if err := json.Unmarshal([]byte(tt.raw), &p); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestRedisJobDataRoundTrip(t *testing.T) {
	job := RedisJobData{
		ID:         "task-1",
		Type:       TaskTypeExtractReport,
		Attempts:   1,
		MaxRetries: 3,
	}
	job.Payload.JobID = "j7"
	job.Payload.Filename = "panel.png"

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var got RedisJobData
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Payload.JobID != "j7" || got.Attempts != 1 || got.MaxRetries != 3 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}
