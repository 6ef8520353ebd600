package errors

import (
	"fmt"
	"time"
)

/**
 * Custom error types for the PDF extraction worker
 *
 * Per-page and per-image failures are recorded as data on their entity;
 * only ErrorDocumentLoadFailed ends a job early.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Job-level errors
	ErrorDocumentLoadFailed ErrorCode = "DOCUMENT_LOAD_FAILED"
	ErrorInvalidMessage     ErrorCode = "INVALID_MESSAGE"
	ErrorFileTooLarge       ErrorCode = "FILE_TOO_LARGE"

	// Item-level errors
	ErrorPageExtractionFailed ErrorCode = "PAGE_EXTRACTION_FAILED"
	ErrorPageRenderFailed     ErrorCode = "PAGE_RENDER_FAILED"
	ErrorOCRFailed            ErrorCode = "OCR_FAILED"
	ErrorMissingImageData     ErrorCode = "MISSING_IMAGE_DATA"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewDocumentLoadError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDocumentLoadFailed,
		Message:   "Failed to load document",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// newItemError builds a recoverable error scoped to one page or image
func newItemError(code ErrorCode, jobID string, page int, message string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      code,
		Message:   fmt.Sprintf("%s on page %d", message, page),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details:   map[string]interface{}{"page": page},
		Cause:     cause,
	}
}

func NewPageExtractionError(jobID string, page int, cause error) *ProcessingError {
	return newItemError(ErrorPageExtractionFailed, jobID, page, "Text extraction failed", cause)
}

func NewPageRenderError(jobID string, page int, cause error) *ProcessingError {
	return newItemError(ErrorPageRenderFailed, jobID, page, "Rendering failed", cause)
}

func NewOCRFailedError(jobID string, page int, cause error) *ProcessingError {
	return newItemError(ErrorOCRFailed, jobID, page, "OCR failed", cause)
}

// NewMissingImageDataError marks an image that has no bytes to recognize
func NewMissingImageDataError(jobID string, page int) *ProcessingError {
	return newItemError(ErrorMissingImageData, jobID, page, "Missing image data", fmt.Errorf("no image data"))
}

func NewInvalidMessageError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInvalidMessage,
		Message:   "Invalid process-pdf message",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewFileTooLargeError(jobID string, size, limit int64) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorFileTooLarge,
		Message:   fmt.Sprintf("Document size %d exceeds limit %d", size, limit),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"size":  size,
			"limit": limit,
		},
	}
}

// Describe returns the message recorded on an entity's error field.
// The cause is preferred so the stored text matches what the
// underlying library reported.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if pe, ok := err.(*ProcessingError); ok && pe.Cause != nil {
		return pe.Cause.Error()
	}
	return err.Error()
}

// ToMap flattens the error into log fields
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
