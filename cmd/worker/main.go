/**
 * PDF Extraction Worker - Main Entry Point
 *
 * Consumes process-pdf jobs from Redis, runs the extraction pipeline
 * (text extraction, page rendering, OCR, fusion, question and formula
 * analysis) and publishes status and result messages per job.
 */

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/adverant/nexus/pdfextract-worker/internal/config"
	"github.com/adverant/nexus/pdfextract-worker/internal/document"
	"github.com/adverant/nexus/pdfextract-worker/internal/logging"
	"github.com/adverant/nexus/pdfextract-worker/internal/processor"
)

func main() {
	root := &cobra.Command{
		Use:           "pdfextract-worker",
		Short:         "Extract questions and formulas from exam PDFs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load environment variables from .env if present
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
			}
		},
	}

	root.AddCommand(workerCmd())
	root.AddCommand(processCmd())
	root.AddCommand(submitCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newPipeline builds the extraction pipeline from worker configuration
func newPipeline(cfg *config.Config, logger *logging.Logger) (*processor.Pipeline, error) {
	return processor.NewPipeline(&processor.PipelineConfig{
		Loader: document.NewPDFLoader(),
		EngineFactory: processor.NewTesseractEngineFactory(processor.TesseractConfig{
			TessdataPrefix: cfg.TesseractPath,
			Languages:      cfg.OCRLanguages,
		}),
		RenderScale: processor.RenderScale,
		Logger:      logger,
	})
}
