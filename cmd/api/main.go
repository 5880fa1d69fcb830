package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/database/migration"
	handlers "docvault/internal/http/handler"
	"docvault/internal/http/middleware"
	"docvault/internal/otel"
	"docvault/internal/repository/postgres"
	"docvault/internal/service"
	"docvault/internal/storage"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	ctx := context.Background()

	// Tracing degrades to noop when no OTLP endpoint is reachable
	shutdownTracing, err := otel.Init(ctx, time.UTC)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, time.UTC, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	blobStore, err := newBlobStore(cfg.Blob)
	if err != nil {
		log.Fatalf("failed to initialize blob storage: %v", err)
	}

	// Initialize repository and service
	docRepo := postgres.NewDocumentPostgres(db)
	docSvc := service.NewDocumentService(blobStore, docRepo, cfg.Upload)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(cfg.Upload.MaxUploadBytes) + 1<<20, // form overhead headroom
	})

	// Register global middleware
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	promMW, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}
	app.Use(promMW.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, db, docSvc)

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// newBlobStore picks the blob backend from config: a local directory by
// default, or an S3-compatible object store.
func newBlobStore(cfg config.BlobConfig) (storage.Storage, error) {
	switch cfg.Driver {
	case "minio":
		return storage.NewMinIO(cfg.MinIO)
	default:
		return storage.NewFS(cfg.Dir)
	}
}
