package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/studyforge/studyforge/internal/api/handlers"
	"github.com/studyforge/studyforge/internal/config"
	"github.com/studyforge/studyforge/internal/database"
	"github.com/studyforge/studyforge/internal/extract"
	"github.com/studyforge/studyforge/internal/jobs"
	"github.com/studyforge/studyforge/internal/openai"
	"github.com/studyforge/studyforge/internal/repository"
	"github.com/studyforge/studyforge/internal/server"
	"github.com/studyforge/studyforge/internal/service"
	"github.com/studyforge/studyforge/internal/storage"
	"github.com/studyforge/studyforge/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the studyforge API server and the document processing worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.HasSentry() {
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if !cfg.HasS3() {
		return fmt.Errorf("S3 storage is required: set STUDYFORGE_S3_ENDPOINT, STUDYFORGE_S3_ACCESS_KEY_ID, STUDYFORGE_S3_SECRET_ACCESS_KEY")
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("embedding provider is required: set STUDYFORGE_OPENAI_API_KEY")
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

	openaiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})

	documentRepo := repository.NewDocumentRepository(pool)
	segmentRepo := repository.NewSegmentRepository(pool)
	projectRepo := repository.NewProjectRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	extractor := extract.New(openaiClient)
	embeddingSvc := service.NewEmbeddingService(openaiClient, segmentRepo, service.EmbeddingConfig{
		BatchSize:   cfg.EmbeddingBatchSize,
		MaxRetries:  cfg.EmbeddingMaxRetries,
		BackoffBase: cfg.EmbeddingBackoff,
		PacingDelay: cfg.BatchPacingDelay,
	})

	documentSvc := service.NewDocumentService(
		documentRepo,
		projectRepo,
		txRunner,
		s3Client,
		extractor,
		embeddingSvc,
		cfg,
		service.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
	)
	projectSvc := service.NewProjectService(projectRepo)
	retrievalSvc := service.NewRetrievalService(openaiClient, segmentRepo, documentRepo)
	authSvc := service.NewAuthService(apiKeyRepo, &service.DefaultUUIDGenerator{})

	pipeline := jobs.NewPipelineProcessor(documentRepo, documentSvc, cfg.PipelineConcurrency)
	worker := jobs.NewWorker(pipeline, cfg.PipelinePollInterval)
	go worker.Start(ctx)
	log.Println("document pipeline worker started")

	routerCfg := server.RouterConfig{
		AuthValidator:   authSvc,
		DocumentHandler: handlers.NewDocumentHandler(documentSvc),
		SearchHandler:   handlers.NewSearchHandler(retrievalSvc, projectSvc, documentSvc),
		ProjectHandler:  handlers.NewProjectHandler(projectSvc),
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.NewRouter(routerCfg),
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else {
		log.Printf("migrations: database at version %d", version)
	}

	return nil
}
