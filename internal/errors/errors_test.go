package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestProcessingErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("malformed xref table")
	err := NewDocumentLoadError("job-1", cause)

	if !stderrors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the cause")
	}
	want := "DOCUMENT_LOAD_FAILED: Failed to load document (caused by: malformed xref table)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain", err: fmt.Errorf("boom"), want: "boom"},
		{name: "processing error uses cause", err: NewPageRenderError("j", 3, fmt.Errorf("bad font")), want: "bad font"},
		{name: "processing error without cause", err: NewFileTooLargeError("j", 10, 5), want: "FILE_TOO_LARGE: Document size 10 exceeds limit 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.err); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToMap(t *testing.T) {
	err := NewOCRFailedError("job-2", 4, fmt.Errorf("tessdata missing"))
	m := err.ToMap()

	if m["error_code"] != "OCR_FAILED" {
		t.Errorf("unexpected error_code: %v", m["error_code"])
	}
	if m["page"] != 4 {
		t.Errorf("expected page detail 4, got %v", m["page"])
	}
	if m["cause"] != "tessdata missing" {
		t.Errorf("unexpected cause: %v", m["cause"])
	}
}

func TestItemErrorsCarryPage(t *testing.T) {
	tests := []struct {
		name string
		err  *ProcessingError
		code ErrorCode
		desc string
	}{
		{name: "extraction", err: NewPageExtractionError("j", 1, fmt.Errorf("bad stream")), code: ErrorPageExtractionFailed, desc: "bad stream"},
		{name: "render", err: NewPageRenderError("j", 2, fmt.Errorf("bad font")), code: ErrorPageRenderFailed, desc: "bad font"},
		{name: "ocr", err: NewOCRFailedError("j", 3, fmt.Errorf("engine crashed")), code: ErrorOCRFailed, desc: "engine crashed"},
		{name: "missing image", err: NewMissingImageDataError("j", 4), code: ErrorMissingImageData, desc: "no image data"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.Details["page"] != i+1 {
				t.Errorf("page detail = %v, want %d", tt.err.Details["page"], i+1)
			}
			if got := Describe(tt.err); got != tt.desc {
				t.Errorf("Describe() = %q, want %q", got, tt.desc)
			}
		})
	}
}
