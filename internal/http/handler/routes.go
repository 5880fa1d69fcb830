package handler

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin: request/response mapping only, no business logic.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService) {
	// Serve the OpenAPI document and a Swagger UI page for it
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api")
	api.Post("/documents/file", UploadDocument(docSvc))
	api.Get("/documents", ListDocuments(docSvc))
	api.Get("/documents/:key", GetDocument(docSvc))
	api.Get("/documents/:key/download", DownloadDocument(docSvc))
}

// HealthCheck reports readiness; it fails when the database is unreachable.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness check with no dependencies.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// UploadDocument handles multipart uploads: a `key` form field plus one
// `file` field. Responds 201 with the stored record.
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.FormValue("key")
		if key == "" {
			return writeError(c, fiber.StatusBadRequest, "KEY_REQUIRED", "key is required")
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")

		doc, err := docSvc.Upload(c.UserContext(), key, fh.Filename, ct, fh.Size, f)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// ListDocuments returns all records as a JSON array, newest first.
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := docSvc.List(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(docs)
	}
}

// GetDocument returns the metadata record for a key.
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, err := docSvc.GetMetadata(c.UserContext(), c.Params("key"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// DownloadDocument streams the raw blob bytes with attachment headers.
// The body is handed to the response as a stream, so large files are never
// buffered whole in memory and the reader is released when the response
// finishes, including on client disconnect.
func DownloadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, rc, err := docSvc.Download(c.UserContext(), c.Params("key"))
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.OriginalName))
		c.Set(fiber.HeaderContentType, doc.ContentType)
		c.Set(fiber.HeaderContentLength, strconv.FormatInt(doc.SizeBytes, 10))

		// fasthttp closes the stream reader once the body has been sent.
		return c.SendStream(rc, int(doc.SizeBytes))
	}
}
