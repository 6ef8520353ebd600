/**
 * PostgreSQL job ledger for the PDF extraction worker
 *
 * Records one row per finished job: outcome, counts, confidence and
 * timing. Extracted content is never stored here; it only travels in the
 * terminal result message.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"
)

// Job ledger statuses
const (
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

const schemaDDL = `
	CREATE SCHEMA IF NOT EXISTS pdfextract;
	CREATE TABLE IF NOT EXISTS pdfextract.jobs (
		id                 TEXT PRIMARY KEY,
		status             TEXT NOT NULL,
		page_count         INTEGER NOT NULL DEFAULT 0,
		question_count     INTEGER NOT NULL DEFAULT 0,
		formula_count      INTEGER NOT NULL DEFAULT 0,
		confidence         NUMERIC(5,2),
		processing_time_ms BIGINT,
		failed_pages       INTEGER[] NOT NULL DEFAULT '{}',
		error_message      TEXT,
		config             JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at       TIMESTAMPTZ NOT NULL
	);
`

// JobLedger handles database operations
type JobLedger struct {
	db *sql.DB
}

// JobRecord is the terminal summary of one job
type JobRecord struct {
	JobID            string                 `json:"jobId"`
	Status           string                 `json:"status"`
	PageCount        int                    `json:"pageCount"`
	QuestionCount    int                    `json:"questionCount"`
	FormulaCount     int                    `json:"formulaCount"`
	Confidence       float64                `json:"confidence"`
	ProcessingTimeMs int64                  `json:"processingTimeMs"`
	FailedPages      []int64                `json:"failedPages"`
	ErrorMessage     string                 `json:"errorMessage,omitempty"`
	Config           map[string]interface{} `json:"config,omitempty"`
	CompletedAt      time.Time              `json:"completedAt"`
}

// ErrJobNotFound is returned by GetJob for an unknown job id
var ErrJobNotFound = errors.New("job not found")

// sanitizeConfidence clamps a score to [0,100] and rounds it to two
// decimals to fit NUMERIC(5,2). NaN is stored as 0.
func sanitizeConfidence(confidence float64) float64 {
	if math.IsNaN(confidence) || confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return math.Round(confidence*100) / 100
}

// NewJobLedger creates a new PostgreSQL job ledger
func NewJobLedger(databaseURL string) (*JobLedger, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ledger := &JobLedger{db: db}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ledger.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return ledger, nil
}

// EnsureSchema creates the ledger table when missing
func (l *JobLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return nil
}

// RecordJob upserts the terminal record of a job
func (l *JobLedger) RecordJob(ctx context.Context, rec *JobRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal job config: %w", err)
	}
	if rec.Config == nil {
		configJSON = []byte("{}")
	}
	failedPages := rec.FailedPages
	if failedPages == nil {
		failedPages = []int64{}
	}
	completedAt := rec.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO pdfextract.jobs (
			id, status, page_count, question_count, formula_count,
			confidence, processing_time_ms, failed_pages, error_message,
			config, completed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6::NUMERIC(5,2), NULLIF($7, 0), $8, NULLIF($9, ''),
			$10::jsonb, $11
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			page_count = EXCLUDED.page_count,
			question_count = EXCLUDED.question_count,
			formula_count = EXCLUDED.formula_count,
			confidence = EXCLUDED.confidence,
			processing_time_ms = EXCLUDED.processing_time_ms,
			failed_pages = EXCLUDED.failed_pages,
			error_message = EXCLUDED.error_message,
			config = EXCLUDED.config,
			completed_at = EXCLUDED.completed_at
	`

	_, err = l.db.ExecContext(ctx, query,
		rec.JobID,
		rec.Status,
		rec.PageCount,
		rec.QuestionCount,
		rec.FormulaCount,
		sanitizeConfidence(rec.Confidence),
		rec.ProcessingTimeMs,
		pq.Array(failedPages),
		rec.ErrorMessage,
		string(configJSON),
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record job %s: %w", rec.JobID, err)
	}
	return nil
}

// GetJob loads the ledger row of a job
func (l *JobLedger) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	query := `
		SELECT id, status, page_count, question_count, formula_count,
			COALESCE(confidence, 0), COALESCE(processing_time_ms, 0), failed_pages,
			COALESCE(error_message, ''), config, completed_at
		FROM pdfextract.jobs
		WHERE id = $1
	`

	var rec JobRecord
	var configJSON []byte
	err := l.db.QueryRowContext(ctx, query, jobID).Scan(
		&rec.JobID,
		&rec.Status,
		&rec.PageCount,
		&rec.QuestionCount,
		&rec.FormulaCount,
		&rec.Confidence,
		&rec.ProcessingTimeMs,
		pq.Array(&rec.FailedPages),
		&rec.ErrorMessage,
		&configJSON,
		&rec.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &rec.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job config: %w", err)
		}
	}
	return &rec, nil
}

// Ping checks the database connection
func (l *JobLedger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close closes the database connection
func (l *JobLedger) Close() error {
	return l.db.Close()
}

// GetStats returns database connection pool statistics
func (l *JobLedger) GetStats() sql.DBStats {
	return l.db.Stats()
}

func validateRecord(rec *JobRecord) error {
	if rec == nil {
		return fmt.Errorf("job record is required")
	}
	if rec.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	switch rec.Status {
	case JobStatusCompleted, JobStatusFailed:
	default:
		return fmt.Errorf("invalid job status %q", rec.Status)
	}
	return nil
}
