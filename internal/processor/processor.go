/**
 * Document Processor for the PDF extraction worker
 *
 * Orchestrates one exam document through a strictly sequential pipeline:
 * - parse the PDF
 * - extract the embedded text layer per page
 * - render every page at 2x
 * - OCR every rendered page (one engine per job, disposed on exit)
 * - fuse text layer and OCR per page
 * - analyze questions, formulas and structure
 *
 * Only a document that cannot be loaded fails the job. Every per-page
 * failure is recorded on its entity and the job continues.
 */

package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/adverant/nexus/pdfextract-worker/internal/analyzer"
	"github.com/adverant/nexus/pdfextract-worker/internal/document"
	"github.com/adverant/nexus/pdfextract-worker/internal/errors"
	"github.com/adverant/nexus/pdfextract-worker/internal/logging"
)

// DocumentProcessorInterface defines the interface for document processing
type DocumentProcessorInterface interface {
	Process(ctx context.Context, req *ProcessRequest) *Result
}

// PipelineConfig holds processor configuration
type PipelineConfig struct {
	Loader        document.Loader
	EngineFactory EngineFactory
	// RenderScale defaults to RenderScale when zero
	RenderScale float64
	Logger      *logging.Logger
}

// ProcessRequest represents one process-pdf job
type ProcessRequest struct {
	JobID     string
	PDFBuffer []byte
	// Config is carried through untouched; no stage reads it
	Config   map[string]interface{}
	OnStatus StatusFunc
}

// Metadata accompanies a successful result
type Metadata struct {
	PageCount        int       `json:"pageCount"`
	ProcessingTime   time.Time `json:"processingTime"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	Confidence       float64   `json:"confidence"`
}

// StructuredResult is the analyzer-level output of a job
type StructuredResult struct {
	FusedPages           []FusedPage         `json:"fusedPages"`
	Questions            []analyzer.Question `json:"questions"`
	Formulas             []analyzer.Formula  `json:"formulas"`
	Images               []ImageSummary      `json:"images"`
	Structure            analyzer.Structure  `json:"structure"`
	Confidence           float64             `json:"confidence"`
	ExtractionConfidence float64             `json:"extractionConfidence"`
}

// Result is the terminal envelope of a job
type Result struct {
	JobID    string            `json:"jobId,omitempty"`
	Success  bool              `json:"success"`
	Data     *StructuredResult `json:"data"`
	Metadata *Metadata         `json:"metadata,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Pipeline runs documents through the extraction stages
type Pipeline struct {
	loader        document.Loader
	engineFactory EngineFactory
	analyzer      *analyzer.Analyzer
	scale         float64
	logger        *logging.Logger
}

// NewPipeline creates a new pipeline
func NewPipeline(cfg *PipelineConfig) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Loader == nil {
		return nil, fmt.Errorf("document loader is required")
	}
	if cfg.EngineFactory == nil {
		return nil, fmt.Errorf("OCR engine factory is required")
	}

	scale := cfg.RenderScale
	if scale <= 0 {
		scale = RenderScale
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("processor")
	}

	return &Pipeline{
		loader:        cfg.Loader,
		engineFactory: cfg.EngineFactory,
		analyzer:      analyzer.New(),
		scale:         scale,
		logger:        logger,
	}, nil
}

// Process runs one job to completion and returns its terminal result.
// The job's OCR engine is disposed before Process returns.
func (p *Pipeline) Process(ctx context.Context, req *ProcessRequest) (result *Result) {
	start := time.Now()
	logger := p.logger.With("job_id", req.JobID)
	progress := newProgressReporter(req.JobID, req.OnStatus)

	handle := NewEngineHandle(p.engineFactory)
	defer func() {
		if err := handle.Close(); err != nil {
			logger.Warn("failed to dispose OCR engine", "error", err)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("pipeline panic: %v", r)
			logger.Error("Processing pipeline aborted", "error", msg)
			progress.fail(msg)
			result = &Result{JobID: req.JobID, Success: false, Error: msg}
		}
	}()

	logger.Info("Starting document processing pipeline", "bytes", len(req.PDFBuffer), "config_keys", len(req.Config))
	step := func(n int, msg string, keysAndValues ...interface{}) {
		logger.Info(fmt.Sprintf("[Job %s] Step %d: %s", req.JobID, n, msg), keysAndValues...)
	}

	// Step 1: Parse
	step(1, "Loading PDF document")
	progress.report(StageParsing, progressParsing, "Loading PDF document")
	doc, err := p.loader.Load(ctx, req.PDFBuffer)
	if err != nil {
		perr := errors.NewDocumentLoadError(req.JobID, err)
		logger.Error("Document load failed", "error", perr)
		progress.fail(errors.Describe(perr))
		return &Result{JobID: req.JobID, Success: false, Error: errors.Describe(perr)}
	}
	defer doc.Close()
	pageCount := doc.NumPages()
	logger.Info("Document loaded", "pages", pageCount)

	j := &job{
		id:       req.JobID,
		doc:      doc,
		engine:   handle,
		progress: progress,
		logger:   logger,
		scale:    p.scale,
	}

	// Step 2: Text layer
	step(2, "Extracting text layer")
	progress.report(StageExtracting, progressExtractBase, "Extracting text")
	texts := j.extractText(ctx)

	// Step 3: Rasterize
	step(3, "Rendering pages", "scale", p.scale)
	progress.report(StageRendering, progressRenderBase, "Rendering pages")
	images := j.renderImages(ctx)

	// Step 4: OCR
	step(4, "Running OCR", "images", len(images))
	progress.report(StageOCR, progressOCRBase, "Running OCR")
	ocr := j.runOCR(ctx, images)
	extractionConfidence := OverallConfidence(texts, ocr)
	logger.Info("OCR complete", "overall_confidence", extractionConfidence)

	// Step 5: Fuse
	step(5, "Fusing text sources")
	progress.report(StageAnalyzing, progressFusing, "Combining extracted and recognized text")
	fused := FusePages(texts, ocr)

	// Step 6: Analyze
	step(6, "Analyzing content")
	progress.report(StageAnalyzing, progressAnalyzing, "Detecting questions and formulas")
	pages := make([]analyzer.Page, len(fused))
	for i, f := range fused {
		pages[i] = analyzer.Page{Number: f.PageNumber, Text: f.Text, OCRConfidence: f.Sources.OCRConfidence}
	}
	analysis := p.analyzer.Analyze(pages)

	data := &StructuredResult{
		FusedPages:           fused,
		Questions:            nonNil(analysis.Questions),
		Formulas:             nonNil(analysis.Formulas),
		Images:               Summarize(images),
		Structure:            analysis.Structure,
		Confidence:           analysis.Confidence,
		ExtractionConfidence: extractionConfidence,
	}

	elapsed := time.Since(start)
	progress.report(StageComplete, progressComplete, "Processing complete")
	logger.Info("Processing pipeline complete",
		"questions", len(data.Questions),
		"formulas", len(data.Formulas),
		"confidence", data.Confidence,
		"duration_ms", elapsed.Milliseconds())

	return &Result{
		JobID:   req.JobID,
		Success: true,
		Data:    data,
		Metadata: &Metadata{
			PageCount:        pageCount,
			ProcessingTime:   time.Now().UTC(),
			ProcessingTimeMs: elapsed.Milliseconds(),
			Confidence:       data.Confidence,
		},
	}
}

// Stream runs Process in its own goroutine and exposes the job as a stream
// of status snapshots followed by exactly one result. The status channel is
// closed before the result is delivered. Snapshots are dropped rather than
// stalling the pipeline when the reader falls behind, except the terminal
// complete or error snapshot, which is always delivered.
func (p *Pipeline) Stream(ctx context.Context, req *ProcessRequest) (<-chan ProcessingStatus, <-chan *Result) {
	events := make(chan ProcessingStatus, 64)
	results := make(chan *Result, 1)

	r := *req
	onStatus := req.OnStatus
	r.OnStatus = func(s ProcessingStatus) {
		if onStatus != nil {
			onStatus(s)
		}
		select {
		case events <- s:
			return
		default:
		}
		if s.Stage != StageComplete && s.Stage != StageError {
			return
		}
		// the terminal snapshot evicts the oldest queued one
		select {
		case <-events:
		default:
		}
		events <- s
	}

	go func() {
		res := p.Process(ctx, &r)
		close(events)
		results <- res
		close(results)
	}()

	return events, results
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
