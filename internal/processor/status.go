package processor

import (
	"sync"
	"time"
)

// Stage names a pipeline phase as reported to the host
type Stage string

const (
	StageIdle       Stage = "idle"
	StageParsing    Stage = "parsing"
	StageExtracting Stage = "extracting"
	StageRendering  Stage = "rendering"
	StageOCR        Stage = "ocr"
	StageAnalyzing  Stage = "analyzing"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// Progress checkpoints. Each per-page stage interpolates inside its span.
const (
	progressParsing     = 10.0
	progressExtractBase = 20.0
	progressExtractSpan = 15.0
	progressRenderBase  = 40.0
	progressRenderSpan  = 15.0
	progressOCRBase     = 60.0
	progressOCRSpan     = 20.0
	progressFusing      = 80.0
	progressAnalyzing   = 90.0
	progressComplete    = 100.0
)

// ProcessingStatus is an immutable progress snapshot
type ProcessingStatus struct {
	JobID     string    `json:"jobId,omitempty"`
	Stage     Stage     `json:"stage"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusFunc receives status snapshots. It must not block the pipeline for long.
type StatusFunc func(ProcessingStatus)

// progressReporter enforces non-decreasing progress within one job and
// forwards snapshots to the host callback
type progressReporter struct {
	mu       sync.Mutex
	jobID    string
	last     float64
	stage    Stage
	onStatus StatusFunc
}

func newProgressReporter(jobID string, onStatus StatusFunc) *progressReporter {
	return &progressReporter{jobID: jobID, stage: StageIdle, onStatus: onStatus}
}

// report emits a snapshot; progress below the last reported value is raised to it
func (r *progressReporter) report(stage Stage, progress float64, message string) ProcessingStatus {
	r.mu.Lock()
	progress = clampProgress(progress)
	if progress < r.last {
		progress = r.last
	}
	r.last = progress
	r.stage = stage
	status := ProcessingStatus{
		JobID:     r.jobID,
		Stage:     stage,
		Progress:  progress,
		Message:   message,
		Timestamp: time.Now(),
	}
	r.mu.Unlock()

	if r.onStatus != nil {
		r.onStatus(status)
	}
	return status
}

// fail reports the error stage at the last progress value
func (r *progressReporter) fail(message string) ProcessingStatus {
	r.mu.Lock()
	last := r.last
	r.mu.Unlock()
	return r.report(StageError, last, message)
}

// span maps a fraction of a stage's work into its reserved progress range
func span(base, width float64, done, total int) float64 {
	if total <= 0 {
		return base + width
	}
	return base + width*float64(done)/float64(total)
}

func clampProgress(p float64) float64 {
	switch {
	case p != p:
		return 0
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
