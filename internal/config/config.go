package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"studyforge-uploads"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Ingestion pipeline tuning.
	AllowedExtensions    []string      `envconfig:"ALLOWED_EXTENSIONS" default:"pdf,docx,doc,txt,rtf,md"`
	ChunkSize            int           `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap         int           `envconfig:"CHUNK_OVERLAP" default:"200"`
	EmbeddingBatchSize   int           `envconfig:"EMBEDDING_BATCH_SIZE" default:"20"`
	EmbeddingDimensions  int           `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbeddingMaxRetries  int           `envconfig:"EMBEDDING_MAX_RETRIES" default:"5"`
	EmbeddingBackoff     time.Duration `envconfig:"EMBEDDING_BACKOFF_BASE" default:"5s"`
	BatchPacingDelay     time.Duration `envconfig:"BATCH_PACING_DELAY" default:"1s"`
	PipelinePollInterval time.Duration `envconfig:"PIPELINE_POLL_INTERVAL" default:"2s"`
	PipelineConcurrency  int           `envconfig:"PIPELINE_CONCURRENCY" default:"4"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("STUDYFORGE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

// ExtensionAllowed reports whether ext (without the dot) is accepted for upload.
func (c *Config) ExtensionAllowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range c.AllowedExtensions {
		if ext == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}
