/**
 * Job handler shared by both queue consumers
 *
 * Turns one raw process-pdf message into exactly one terminal result:
 * host guards (malformed message, size limit) answer with a failure
 * result without running the pipeline; everything else goes through the
 * processor with its status snapshots forwarded to the event publisher.
 */

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/pdfextract-worker/internal/errors"
	"github.com/adverant/nexus/pdfextract-worker/internal/logging"
	"github.com/adverant/nexus/pdfextract-worker/internal/processor"
	"github.com/adverant/nexus/pdfextract-worker/internal/storage"
)

// JobRecorder persists terminal job summaries
type JobRecorder interface {
	RecordJob(ctx context.Context, rec *storage.JobRecord) error
}

// HandlerConfig holds job handler configuration
type HandlerConfig struct {
	Processor   processor.DocumentProcessorInterface
	Publisher   EventPublisher
	Recorder    JobRecorder // optional
	MaxFileSize int64
	Logger      *logging.Logger
}

// JobHandler runs process-pdf messages
type JobHandler struct {
	processor   processor.DocumentProcessorInterface
	publisher   EventPublisher
	recorder    JobRecorder
	maxFileSize int64
	logger      *logging.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(cfg *HandlerConfig) (*JobHandler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("Publisher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("queue")
	}
	return &JobHandler{
		processor:   cfg.Processor,
		publisher:   cfg.Publisher,
		recorder:    cfg.Recorder,
		maxFileSize: cfg.MaxFileSize,
		logger:      logger,
	}, nil
}

// Handle decodes a raw message and runs it. The returned result is never nil.
func (h *JobHandler) Handle(ctx context.Context, raw []byte) *processor.Result {
	return h.HandleJob(ctx, "", raw)
}

// HandleJob is Handle with the id the producer queued the message under,
// used when the message itself carries no job id
func (h *JobHandler) HandleJob(ctx context.Context, queuedID string, raw []byte) *processor.Result {
	msg, err := decodeMessage(raw)
	if err != nil {
		jobID := firstNonEmpty(peekJobID(raw), queuedID, uuid.New().String())
		perr := errors.NewInvalidMessageError(jobID, err)
		h.logger.Warn("Rejected process-pdf message", "job_id", jobID, "details", perr.ToMap())
		return h.finish(ctx, jobID, nil, failure(jobID, perr))
	}
	msg.JobID = firstNonEmpty(msg.JobID, queuedID, uuid.New().String())
	return h.Run(ctx, msg)
}

// Run executes a decoded message
func (h *JobHandler) Run(ctx context.Context, msg *ProcessPDFMessage) *processor.Result {
	size := int64(len(msg.PDFBuffer))
	if h.maxFileSize > 0 && size > h.maxFileSize {
		perr := errors.NewFileTooLargeError(msg.JobID, size, h.maxFileSize)
		h.logger.Warn("Rejected oversized document", "job_id", msg.JobID, "details", perr.ToMap())
		return h.finish(ctx, msg.JobID, msg.Config, failure(msg.JobID, perr))
	}

	h.logger.Info("Processing document", "job_id", msg.JobID, "bytes", size)
	result := h.processor.Process(ctx, &processor.ProcessRequest{
		JobID:     msg.JobID,
		PDFBuffer: msg.PDFBuffer,
		Config:    msg.Config,
		OnStatus: func(status processor.ProcessingStatus) {
			if err := h.publisher.PublishStatus(ctx, status); err != nil {
				h.logger.Warn("Failed to publish status", "job_id", msg.JobID, "stage", status.Stage, "error", err)
			}
		},
	})
	return h.finish(ctx, msg.JobID, msg.Config, result)
}

// finish publishes the terminal result and records it in the ledger
func (h *JobHandler) finish(ctx context.Context, jobID string, config map[string]interface{}, result *processor.Result) *processor.Result {
	if result.JobID == "" {
		result.JobID = jobID
	}
	if err := h.publisher.PublishResult(ctx, jobID, result); err != nil {
		h.logger.Error("Failed to publish result", "job_id", jobID, "error", err)
	}

	if h.recorder != nil {
		if err := h.recorder.RecordJob(ctx, ledgerRecord(jobID, config, result)); err != nil {
			h.logger.Warn("Failed to record job in ledger", "job_id", jobID, "error", err)
		}
	}

	if result.Success {
		h.logger.Info("Job completed", "job_id", jobID, "pages", result.Metadata.PageCount, "confidence", result.Metadata.Confidence)
	} else {
		h.logger.Warn("Job failed", "job_id", jobID, "error", result.Error)
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func failure(jobID string, err error) *processor.Result {
	return &processor.Result{JobID: jobID, Success: false, Error: err.Error()}
}

// ledgerRecord summarizes a result for the job ledger
func ledgerRecord(jobID string, config map[string]interface{}, result *processor.Result) *storage.JobRecord {
	rec := &storage.JobRecord{
		JobID:       jobID,
		Status:      storage.JobStatusFailed,
		Config:      config,
		CompletedAt: time.Now().UTC(),
	}
	if !result.Success || result.Data == nil {
		rec.ErrorMessage = result.Error
		return rec
	}

	rec.Status = storage.JobStatusCompleted
	rec.QuestionCount = len(result.Data.Questions)
	rec.FormulaCount = len(result.Data.Formulas)
	rec.Confidence = result.Data.Confidence
	if result.Metadata != nil {
		rec.PageCount = result.Metadata.PageCount
		rec.ProcessingTimeMs = result.Metadata.ProcessingTimeMs
	}
	for _, img := range result.Data.Images {
		if img.Kind == processor.ImageKindError {
			rec.FailedPages = append(rec.FailedPages, int64(img.PageNumber))
		}
	}
	return rec
}
