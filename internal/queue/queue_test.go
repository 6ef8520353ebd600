package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/pdfextract-worker/internal/logging"
	"github.com/adverant/nexus/pdfextract-worker/internal/processor"
	"github.com/adverant/nexus/pdfextract-worker/internal/storage"
)

type fakeProcessor struct {
	mu       sync.Mutex
	requests []*processor.ProcessRequest
	ctxErrs  []error
	statuses []processor.ProcessingStatus
	result   processor.Result
}

func (f *fakeProcessor) Process(ctx context.Context, req *processor.ProcessRequest) *processor.Result {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()

	for _, s := range f.statuses {
		s.JobID = req.JobID
		req.OnStatus(s)
	}
	r := f.result
	r.JobID = req.JobID
	return &r
}

func (f *fakeProcessor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type capturePublisher struct {
	mu       sync.Mutex
	statuses []processor.ProcessingStatus
	results  map[string]*processor.Result
}

func (p *capturePublisher) PublishStatus(ctx context.Context, status processor.ProcessingStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status)
	return nil
}

func (p *capturePublisher) PublishResult(ctx context.Context, jobID string, result *processor.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.results == nil {
		p.results = map[string]*processor.Result{}
	}
	p.results[jobID] = result
	return nil
}

type captureRecorder struct {
	records []*storage.JobRecord
}

func (r *captureRecorder) RecordJob(ctx context.Context, rec *storage.JobRecord) error {
	r.records = append(r.records, rec)
	return nil
}

func successProcessor() *fakeProcessor {
	return &fakeProcessor{
		statuses: []processor.ProcessingStatus{
			{Stage: processor.StageParsing, Progress: 10, Message: "Loading PDF document"},
			{Stage: processor.StageComplete, Progress: 100, Message: "Processing complete"},
		},
		result: processor.Result{
			Success: true,
			Data: &processor.StructuredResult{
				Images: []processor.ImageSummary{
					{PageNumber: 1, Kind: processor.ImageKindPageRender, ByteLength: 10},
					{PageNumber: 2, Kind: processor.ImageKindError, Error: "boom"},
				},
				Confidence: 55.5,
			},
			Metadata: &processor.Metadata{PageCount: 2, ProcessingTimeMs: 12, Confidence: 55.5},
		},
	}
}

func newTestHandler(t *testing.T, proc *fakeProcessor, pub EventPublisher, rec JobRecorder, maxSize int64) *JobHandler {
	t.Helper()
	h, err := NewJobHandler(&HandlerConfig{
		Processor:   proc,
		Publisher:   pub,
		Recorder:    rec,
		MaxFileSize: maxSize,
		Logger:      logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewJobHandler() error = %v", err)
	}
	return h
}

func TestParseMessage(t *testing.T) {
	pdf := []byte("%PDF-1.4 test")
	b64 := base64.StdEncoding.EncodeToString(pdf)

	tests := []struct {
		name    string
		raw     string
		wantErr string
		wantBuf []byte
		wantID  string
	}{
		{name: "base64", raw: `{"type":"process-pdf","jobId":"j1","pdfBuffer":"` + b64 + `","config":{"lang":"eng"}}`, wantBuf: pdf, wantID: "j1"},
		{name: "node buffer", raw: `{"jobId":"j2","pdfBuffer":{"type":"Buffer","data":[37,80,68,70]}}`, wantBuf: []byte("%PDF"), wantID: "j2"},
		{name: "missing buffer", raw: `{"jobId":"j3"}`, wantErr: "pdfBuffer is required"},
		{name: "wrong type", raw: `{"type":"ping","pdfBuffer":"` + b64 + `"}`, wantErr: "unsupported message type"},
		{name: "bad base64", raw: `{"pdfBuffer":"!!!"}`, wantErr: "base64"},
		{name: "bad buffer object", raw: `{"pdfBuffer":{"type":"Blob","data":[1]}}`, wantErr: "Buffer object"},
		{name: "byte out of range", raw: `{"pdfBuffer":{"type":"Buffer","data":[300]}}`, wantErr: "index 0"},
		{name: "not json", raw: `nope`, wantErr: "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.raw))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMessage() error = %v", err)
			}
			if string(msg.PDFBuffer) != string(tt.wantBuf) || msg.JobID != tt.wantID || msg.Type != TaskTypeProcessPDF {
				t.Errorf("unexpected message %+v", msg)
			}
		})
	}
}

func TestParseMessageAssignsJobID(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"pdfBuffer":"JVBERg=="}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.JobID) != 36 {
		t.Errorf("expected a generated UUID, got %q", msg.JobID)
	}
}

func TestMessageMarshalWritesBase64(t *testing.T) {
	raw, err := json.Marshal(&ProcessPDFMessage{JobID: "j", PDFBuffer: []byte("%PDF")})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"pdfBuffer":"JVBERg=="`) {
		t.Errorf("unexpected encoding %s", raw)
	}
	back, err := ParseMessage(raw)
	if err != nil || string(back.PDFBuffer) != "%PDF" {
		t.Errorf("re-parse failed: %v %+v", err, back)
	}
}

func TestJobHandlerForwardsStatusAndResult(t *testing.T) {
	proc := successProcessor()
	pub := &capturePublisher{}
	rec := &captureRecorder{}
	h := newTestHandler(t, proc, pub, rec, 1024)

	raw := `{"jobId":"job-1","pdfBuffer":"JVBERg==","config":{"scale":2}}`
	res := h.Handle(context.Background(), []byte(raw))

	if !res.Success || res.JobID != "job-1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(pub.statuses) != 2 || pub.statuses[1].Stage != processor.StageComplete {
		t.Errorf("statuses not forwarded: %+v", pub.statuses)
	}
	if pub.results["job-1"] != res {
		t.Errorf("terminal result not published")
	}
	if got := proc.requests[0].Config["scale"]; got != float64(2) {
		t.Errorf("config should pass through untouched, got %v", got)
	}

	if len(rec.records) != 1 {
		t.Fatalf("expected one ledger record, got %d", len(rec.records))
	}
	r := rec.records[0]
	if r.Status != storage.JobStatusCompleted || r.PageCount != 2 || r.Confidence != 55.5 {
		t.Errorf("unexpected record %+v", r)
	}
	if len(r.FailedPages) != 1 || r.FailedPages[0] != 2 {
		t.Errorf("expected failed page 2, got %v", r.FailedPages)
	}
}

func TestJobHandlerGuards(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		queuedID string
		wantID   string
		wantErr  string
	}{
		{name: "oversized", raw: `{"jobId":"big","pdfBuffer":"` + base64.StdEncoding.EncodeToString(make([]byte, 64)) + `"}`, wantID: "big", wantErr: "FILE_TOO_LARGE"},
		{name: "malformed with id", raw: `{"jobId":"bad"}`, wantID: "bad", wantErr: "INVALID_MESSAGE"},
		{name: "malformed uses queued id", raw: `garbage`, queuedID: "list-7", wantID: "list-7", wantErr: "INVALID_MESSAGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := successProcessor()
			pub := &capturePublisher{}
			rec := &captureRecorder{}
			h := newTestHandler(t, proc, pub, rec, 32)

			res := h.HandleJob(context.Background(), tt.queuedID, []byte(tt.raw))

			if res.Success || res.Data != nil {
				t.Fatalf("expected failure, got %+v", res)
			}
			if res.JobID != tt.wantID || !strings.Contains(res.Error, tt.wantErr) {
				t.Errorf("unexpected result %+v", res)
			}
			if proc.calls() != 0 {
				t.Errorf("pipeline must not run for rejected messages")
			}
			if pub.results[tt.wantID] == nil {
				t.Errorf("terminal result not published")
			}
			if len(rec.records) != 1 || rec.records[0].Status != storage.JobStatusFailed {
				t.Errorf("expected failed ledger record, got %+v", rec.records)
			}
		})
	}
}

func TestJobHandlerUsesQueuedIDWhenMessageHasNone(t *testing.T) {
	proc := successProcessor()
	h := newTestHandler(t, proc, &capturePublisher{}, nil, 0)

	res := h.HandleJob(context.Background(), "list-id", []byte(`{"pdfBuffer":"JVBERg=="}`))
	if res.JobID != "list-id" || proc.requests[0].JobID != "list-id" {
		t.Errorf("expected queued id, got %q", res.JobID)
	}
}

func TestRedisEventPublisher(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	pub := NewRedisEventPublisher(rdb, "pdfextract:events")
	ctx := context.Background()

	if err := pub.PublishStatus(ctx, processor.ProcessingStatus{JobID: "j1", Stage: processor.StageOCR, Progress: 62, Message: "Recognizing page 1 of 3"}); err != nil {
		t.Fatalf("PublishStatus() error = %v", err)
	}
	if err := pub.PublishResult(ctx, "j1", &processor.Result{JobID: "j1", Success: false, Error: "bad"}); err != nil {
		t.Fatalf("PublishResult() error = %v", err)
	}
	if err := pub.PublishStatus(ctx, processor.ProcessingStatus{}); err == nil {
		t.Errorf("status without job id should be rejected")
	}

	if pub.StreamKey("j1") != "pdfextract:events:j1" {
		t.Errorf("unexpected stream key %q", pub.StreamKey("j1"))
	}

	events, err := pub.ReadEvents(ctx, "j1")
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	var status map[string]interface{}
	if err := json.Unmarshal([]byte(events[0]), &status); err != nil {
		t.Fatal(err)
	}
	if status["type"] != MessageTypeStatus || status["stage"] != "ocr" || status["progress"] != float64(62) {
		t.Errorf("unexpected status payload %v", status)
	}

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(events[1]), &result); err != nil {
		t.Fatal(err)
	}
	if result["type"] != MessageTypeResult || result["success"] != false || result["error"] != "bad" {
		t.Errorf("unexpected result payload %v", result)
	}
	if v, ok := result["data"]; !ok || v != nil {
		t.Errorf("failure result should carry data:null, got %v", result)
	}
}

func TestRedisConsumerProcessesJobs(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	pub := NewRedisEventPublisher(rdb, "pdfextract:events")
	h := newTestHandler(t, successProcessor(), pub, nil, 1024)

	consumer, err := NewRedisConsumer(&RedisConsumerConfig{
		RedisURL:    "redis://" + mr.Addr(),
		QueueName:   "pdfextract:jobs",
		Concurrency: 2,
		Handler:     h,
		PollTimeout: time.Second,
		Logger:      logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewRedisConsumer() error = %v", err)
	}

	ctx := context.Background()
	if _, err := consumer.Submit(ctx, &ProcessPDFMessage{JobID: "good", PDFBuffer: []byte("%PDF")}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := rdb.LPush(ctx, "pdfextract:jobs", "orphan").Err(); err != nil {
		t.Fatal(err)
	}

	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		stats, err := consumer.GetStats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if stats["completed"] == 1 && stats["failed"] == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("jobs not finished in time: %v", stats)
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err := consumer.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	if ok, _ := rdb.SIsMember(ctx, "pdfextract:jobs:completed", "good").Result(); !ok {
		t.Errorf("job should be in completed set")
	}
	if ok, _ := rdb.SIsMember(ctx, "pdfextract:jobs:failed", "orphan").Result(); !ok {
		t.Errorf("job without data should be in failed set")
	}
	if n, _ := rdb.SCard(ctx, "pdfextract:jobs:processing").Result(); n != 0 {
		t.Errorf("processing set should be empty, has %d", n)
	}

	stored, err := rdb.HGet(ctx, "pdfextract:jobs:results", "good").Result()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stored, `"success":true`) || !strings.Contains(stored, `"type":"result"`) {
		t.Errorf("unexpected stored result %s", stored)
	}

	events, err := pub.ReadEvents(ctx, "good")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 || !strings.Contains(events[2], `"type":"result"`) {
		t.Errorf("expected two statuses and a result, got %v", events)
	}
}

func TestAsynqHandlerSkipsRetryOnFailure(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	h := newTestHandler(t, successProcessor(), &capturePublisher{}, nil, 1024)
	consumer, err := NewConsumer(&ConsumerConfig{
		RedisURL:    "redis://" + mr.Addr(),
		QueueName:   "pdfextract",
		Concurrency: 1,
		Handler:     h,
		Logger:      logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewConsumer() error = %v", err)
	}
	defer consumer.client.Close()

	ctx := context.Background()
	err = consumer.handleProcessPDF(ctx, asynq.NewTask(TaskTypeProcessPDF, []byte(`{"jobId":"x"}`)))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("failed job should skip retry, got %v", err)
	}

	err = consumer.handleProcessPDF(ctx, asynq.NewTask(TaskTypeProcessPDF, []byte(`{"jobId":"y","pdfBuffer":"JVBERg=="}`)))
	if err != nil {
		t.Errorf("successful job returned %v", err)
	}
}

func TestAsynqHandlerIgnoresTaskCancellation(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	proc := successProcessor()
	pub := &capturePublisher{}
	consumer, err := NewConsumer(&ConsumerConfig{
		RedisURL:    "redis://" + mr.Addr(),
		QueueName:   "pdfextract",
		Concurrency: 1,
		Handler:     newTestHandler(t, proc, pub, nil, 1024),
		Logger:      logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewConsumer() error = %v", err)
	}
	defer consumer.client.Close()

	tests := []struct {
		name string
		ctx  func() context.Context
	}{
		{name: "cancelled", ctx: func() context.Context {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return ctx
		}},
		{name: "deadline exceeded", ctx: func() context.Context {
			ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Minute))
			t.Cleanup(cancel)
			return ctx
		}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobID := fmt.Sprintf("job-%d", i)
			payload := []byte(`{"jobId":"` + jobID + `","pdfBuffer":"JVBERg=="}`)
			if err := consumer.handleProcessPDF(tt.ctx(), asynq.NewTask(TaskTypeProcessPDF, payload)); err != nil {
				t.Fatalf("handleProcessPDF() error = %v", err)
			}

			proc.mu.Lock()
			ctxErr := proc.ctxErrs[len(proc.ctxErrs)-1]
			proc.mu.Unlock()
			if ctxErr != nil {
				t.Errorf("pipeline saw a done context: %v", ctxErr)
			}

			pub.mu.Lock()
			res := pub.results[jobID]
			pub.mu.Unlock()
			if res == nil || !res.Success {
				t.Errorf("expected a successful result for %s, got %+v", jobID, res)
			}
		})
	}
}

func TestNewConsumerValidation(t *testing.T) {
	h := newTestHandler(t, successProcessor(), &capturePublisher{}, nil, 0)
	tests := []struct {
		name string
		cfg  *ConsumerConfig
	}{
		{name: "missing url", cfg: &ConsumerConfig{QueueName: "q", Handler: h}},
		{name: "missing queue", cfg: &ConsumerConfig{RedisURL: "redis://localhost:6379", Handler: h}},
		{name: "missing handler", cfg: &ConsumerConfig{RedisURL: "redis://localhost:6379", QueueName: "q"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewConsumer(tt.cfg); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}

func TestProducerSubmitsToList(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	p, err := NewProducer(&ProducerConfig{
		RedisURL:  "redis://" + mr.Addr(),
		QueueName: "pdfextract:jobs",
		Backend:   BackendList,
	})
	if err != nil {
		t.Fatalf("NewProducer() error = %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	id, err := p.Submit(ctx, &ProcessPDFMessage{PDFBuffer: []byte("%PDF")})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if id == "" {
		t.Fatal("Submit() should assign a job id")
	}

	queued, err := mr.List("pdfextract:jobs")
	if err != nil {
		t.Fatal(err)
	}
	if len(queued) != 1 || queued[0] != id {
		t.Errorf("queue = %v, want [%s]", queued, id)
	}

	var envelope RedisJobData
	if err := json.Unmarshal([]byte(mr.HGet("pdfextract:jobs:data", id)), &envelope); err != nil {
		t.Fatalf("stored envelope is not JSON: %v", err)
	}
	if envelope.ID != id || envelope.Type != TaskTypeProcessPDF {
		t.Errorf("unexpected envelope %+v", envelope)
	}
	msg, err := ParseMessage(envelope.Payload)
	if err != nil {
		t.Fatalf("stored payload does not parse: %v", err)
	}
	if msg.JobID != id || string(msg.PDFBuffer) != "%PDF" {
		t.Errorf("payload round trip lost data: %+v", msg)
	}
}

func TestNewProducerValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *ProducerConfig
	}{
		{name: "missing url", cfg: &ProducerConfig{QueueName: "q"}},
		{name: "missing queue", cfg: &ProducerConfig{RedisURL: "redis://localhost:6379"}},
		{name: "unknown backend", cfg: &ProducerConfig{RedisURL: "redis://localhost:6379", QueueName: "q", Backend: "kafka"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProducer(tt.cfg); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}
