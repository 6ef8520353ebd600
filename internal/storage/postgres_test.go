package storage

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestSanitizeConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 72.456, want: 72.46},
		{in: 100.0000001, want: 100},
		{in: 250, want: 100},
		{in: -3, want: 0},
		{in: math.NaN(), want: 0},
		{in: 0, want: 0},
	}

	for _, tt := range tests {
		if got := sanitizeConfidence(tt.in); got != tt.want {
			t.Errorf("sanitizeConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		rec     *JobRecord
		wantErr bool
	}{
		{name: "nil", rec: nil, wantErr: true},
		{name: "missing id", rec: &JobRecord{Status: JobStatusCompleted}, wantErr: true},
		{name: "bad status", rec: &JobRecord{JobID: "j", Status: "processing"}, wantErr: true},
		{name: "completed", rec: &JobRecord{JobID: "j", Status: JobStatusCompleted}},
		{name: "failed", rec: &JobRecord{JobID: "j", Status: JobStatusFailed, ErrorMessage: "bad pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateRecord(tt.rec); (err != nil) != tt.wantErr {
				t.Errorf("validateRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewJobLedgerRequiresURL(t *testing.T) {
	if _, err := NewJobLedger(""); err == nil {
		t.Error("expected error for empty database URL")
	}
}

func TestNewJobLedgerPingsDatabase(t *testing.T) {
	// Nothing listens on port 1, so the open succeeds and the ping fails.
	_, err := NewJobLedger("postgres://pdfextract@127.0.0.1:1/pdfextract?sslmode=disable&connect_timeout=1")
	if err == nil {
		t.Fatal("expected error for an unreachable database")
	}
}

func TestJobRecordJSON(t *testing.T) {
	rec := &JobRecord{
		JobID:            "job-1",
		Status:           JobStatusCompleted,
		PageCount:        3,
		QuestionCount:    5,
		FormulaCount:     2,
		Confidence:       81.5,
		ProcessingTimeMs: 1200,
		FailedPages:      []int64{2},
		CompletedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{"jobId", "status", "pageCount", "questionCount", "formulaCount",
		"confidence", "processingTimeMs", "failedPages", "completedAt"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	for _, key := range []string{"errorMessage", "config"} {
		if _, ok := fields[key]; ok {
			t.Errorf("expected %q to be omitted when empty", key)
		}
	}
}
