package queue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/adverant/nexus/pdfextract-worker/internal/processor"
)

// TaskTypeProcessPDF is the only inbound message kind
const TaskTypeProcessPDF = "process-pdf"

// Outbound message kinds
const (
	MessageTypeStatus = "status"
	MessageTypeResult = "result"
)

// ProcessPDFMessage is one inbound process-pdf request
type ProcessPDFMessage struct {
	Type      string                 `json:"type,omitempty"`
	JobID     string                 `json:"jobId,omitempty"`
	PDFBuffer []byte                 `json:"-"` // set by UnmarshalJSON
	Config    map[string]interface{} `json:"config,omitempty"`
}

// UnmarshalJSON accepts pdfBuffer as a base64 string or as a Node.js
// Buffer object ({"type":"Buffer","data":[...]})
func (m *ProcessPDFMessage) UnmarshalJSON(data []byte) error {
	type Alias ProcessPDFMessage
	aux := &struct {
		PDFBuffer interface{} `json:"pdfBuffer,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal process-pdf message: %w", err)
	}

	if aux.PDFBuffer == nil {
		return nil
	}
	buf, err := decodeBuffer(aux.PDFBuffer)
	if err != nil {
		return err
	}
	m.PDFBuffer = buf
	return nil
}

// MarshalJSON writes pdfBuffer as base64
func (m ProcessPDFMessage) MarshalJSON() ([]byte, error) {
	type Alias ProcessPDFMessage
	return json.Marshal(&struct {
		PDFBuffer string `json:"pdfBuffer"`
		Alias
	}{
		PDFBuffer: base64.StdEncoding.EncodeToString(m.PDFBuffer),
		Alias:     Alias(m),
	})
}

func decodeBuffer(v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(b)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 pdfBuffer: %w", err)
		}
		return decoded, nil

	case map[string]interface{}:
		if bufferType, ok := b["type"].(string); !ok || bufferType != "Buffer" {
			return nil, fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := b["data"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("Buffer object missing 'data' array")
		}
		out := make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok || byteVal < 0 || byteVal > 255 || byteVal != float64(int(byteVal)) {
				return nil, fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			out[i] = byte(byteVal)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("pdfBuffer must be either base64 string or Buffer object, got %T", v)
	}
}

// ParseMessage decodes and validates an inbound message. A missing job id
// is replaced by a fresh UUID.
func ParseMessage(data []byte) (*ProcessPDFMessage, error) {
	msg, err := decodeMessage(data)
	if err != nil {
		return nil, err
	}
	if msg.JobID == "" {
		msg.JobID = uuid.New().String()
	}
	return msg, nil
}

func decodeMessage(data []byte) (*ProcessPDFMessage, error) {
	var msg ProcessPDFMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type != "" && msg.Type != TaskTypeProcessPDF {
		return nil, fmt.Errorf("unsupported message type %q", msg.Type)
	}
	if len(msg.PDFBuffer) == 0 {
		return nil, fmt.Errorf("pdfBuffer is required")
	}
	msg.Type = TaskTypeProcessPDF
	return &msg, nil
}

// peekJobID recovers the job id of a message that failed validation
func peekJobID(data []byte) string {
	var head struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ""
	}
	return head.JobID
}

// StatusMessage is an outbound progress checkpoint
type StatusMessage struct {
	Type string `json:"type"`
	processor.ProcessingStatus
}

// ResultMessage is the terminal outbound message of a job
type ResultMessage struct {
	Type string `json:"type"`
	*processor.Result
}

// NewStatusMessage wraps a status snapshot for the wire
func NewStatusMessage(status processor.ProcessingStatus) *StatusMessage {
	return &StatusMessage{Type: MessageTypeStatus, ProcessingStatus: status}
}

// NewResultMessage wraps a terminal result for the wire
func NewResultMessage(result *processor.Result) *ResultMessage {
	return &ResultMessage{Type: MessageTypeResult, Result: result}
}
