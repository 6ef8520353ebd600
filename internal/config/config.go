/**
 * Configuration for the PDF extraction worker
 *
 * Defaults, then an optional YAML file named by CONFIG_FILE, then
 * environment variables (which always win).
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Queue backends understood by the worker
const (
	QueueBackendAsynq = "asynq"
	QueueBackendList  = "list"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL          string `yaml:"redis_url"`
	QueueBackend      string `yaml:"queue_backend"`
	QueueName         string `yaml:"queue_name"`
	EventStreamPrefix string `yaml:"event_stream_prefix"`

	// PostgreSQL job ledger (optional)
	DatabaseURL string `yaml:"database_url"`

	// Worker configuration
	WorkerConcurrency int   `yaml:"worker_concurrency"`
	MaxFileSize       int64 `yaml:"max_file_size"`

	// Tesseract configuration
	TesseractPath string   `yaml:"tesseract_path"`
	OCRLanguages  []string `yaml:"ocr_languages"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		RedisURL:          "redis://localhost:6379",
		QueueBackend:      QueueBackendAsynq,
		QueueName:         "pdfextract:jobs",
		EventStreamPrefix: "pdfextract:events",
		WorkerConcurrency: 4,
		MaxFileSize:       104857600, // 100MB
		OCRLanguages:      []string{"eng"},
	}
}

// LoadConfig loads configuration from the optional YAML file and environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.RedisURL = getEnvOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.QueueBackend = strings.ToLower(getEnvOrDefault("QUEUE_BACKEND", cfg.QueueBackend))
	cfg.QueueName = getEnvOrDefault("QUEUE_NAME", cfg.QueueName)
	cfg.EventStreamPrefix = getEnvOrDefault("EVENT_STREAM_PREFIX", cfg.EventStreamPrefix)
	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.WorkerConcurrency = getEnvAsIntOrDefault("WORKER_CONCURRENCY", cfg.WorkerConcurrency)
	cfg.MaxFileSize = getEnvAsInt64OrDefault("MAX_FILE_SIZE", cfg.MaxFileSize)
	cfg.TesseractPath = getEnvOrDefault("TESSERACT_PATH", cfg.TesseractPath)
	cfg.OCRLanguages = getEnvAsListOrDefault("OCR_LANGUAGES", cfg.OCRLanguages)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.QueueBackend != QueueBackendAsynq && c.QueueBackend != QueueBackendList {
		return fmt.Errorf("QUEUE_BACKEND must be %q or %q, got %q", QueueBackendAsynq, QueueBackendList, c.QueueBackend)
	}

	if c.QueueName == "" {
		return fmt.Errorf("QUEUE_NAME is required")
	}

	if c.EventStreamPrefix == "" {
		return fmt.Errorf("EVENT_STREAM_PREFIX is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 1073741824 { // 1KB to 1GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 1GB, got %d", c.MaxFileSize)
	}

	if len(c.OCRLanguages) == 0 {
		return fmt.Errorf("OCR_LANGUAGES must name at least one language")
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsListOrDefault splits a comma- or plus-separated variable ("eng+deu")
func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.FieldsFunc(valueStr, func(r rune) bool { return r == ',' || r == '+' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
