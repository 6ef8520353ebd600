package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/adverant/nexus/pdfextract-worker/internal/config"
	"github.com/adverant/nexus/pdfextract-worker/internal/queue"
)

func submitCmd() *cobra.Command {
	var jobID string

	cmd := &cobra.Command{
		Use:   "submit <file.pdf>",
		Short: "Queue a document for the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			if jobID == "" {
				jobID = uuid.New().String()
			}
			msg := &queue.ProcessPDFMessage{
				Type:      queue.TaskTypeProcessPDF,
				JobID:     jobID,
				PDFBuffer: data,
				Config:    map[string]interface{}{"source": filepath.Base(args[0])},
			}

			if err := submit(cmd.Context(), cfg, msg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg.JobID)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobID, "job-id", "", "job id to submit under (random UUID when empty)")
	return cmd
}

func submit(ctx context.Context, cfg *config.Config, msg *queue.ProcessPDFMessage) error {
	producer, err := queue.NewProducer(&queue.ProducerConfig{
		RedisURL:  cfg.RedisURL,
		QueueName: cfg.QueueName,
		Backend:   cfg.QueueBackend,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize producer: %w", err)
	}
	defer producer.Close()

	if _, err := producer.Submit(ctx, msg); err != nil {
		return err
	}
	return nil
}
