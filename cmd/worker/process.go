package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/adverant/nexus/pdfextract-worker/internal/config"
	"github.com/adverant/nexus/pdfextract-worker/internal/logging"
	"github.com/adverant/nexus/pdfextract-worker/internal/processor"
)

func processCmd() *cobra.Command {
	var jobID string
	var pretty bool

	cmd := &cobra.Command{
		Use:   "process <file.pdf>",
		Short: "Run one document through the pipeline locally",
		Long: "Runs one document through the pipeline without a queue. Status lines are " +
			"written to stderr and the result JSON to stdout.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			if cfg.MaxFileSize > 0 && int64(len(data)) > cfg.MaxFileSize {
				return fmt.Errorf("%s is %d bytes, limit is %d", args[0], len(data), cfg.MaxFileSize)
			}
			if jobID == "" {
				jobID = uuid.New().String()
			}

			pipeline, err := newPipeline(cfg, logging.Discard())
			if err != nil {
				return fmt.Errorf("failed to initialize pipeline: %w", err)
			}

			events, results := pipeline.Stream(cmd.Context(), &processor.ProcessRequest{
				JobID:     jobID,
				PDFBuffer: data,
				Config:    map[string]interface{}{"source": filepath.Base(args[0])},
			})
			for status := range events {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%5.1f%%] %-10s %s\n", status.Progress, status.Stage, status.Message)
			}
			result := <-results

			if err := writeResult(cmd.OutOrStdout(), result, pretty); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("job %s failed: %s", result.JobID, strings.TrimSpace(result.Error))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jobID, "job-id", "", "job id to report (random UUID when empty)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the result JSON")
	return cmd
}

func writeResult(w io.Writer, result *processor.Result, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
