package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/http/middleware"
	"docvault/internal/repository"
	"docvault/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "DUPLICATE_KEY", "NOT_FOUND")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps document service errors onto HTTP statuses:
// validation failures are 400, a duplicate key is 409, missing records and
// missing blobs are both 404 (with distinct codes), anything else is 500.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrKeyRequired):
		return writeError(c, fiber.StatusBadRequest, "KEY_REQUIRED", "key is required")
	case errors.Is(err, service.ErrReaderNil), errors.Is(err, service.ErrEmptyFile):
		return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
	case errors.Is(err, service.ErrFileTooLarge):
		return writeError(c, fiber.StatusBadRequest, "FILE_TOO_LARGE", "file exceeds the maximum allowed size")
	case errors.Is(err, service.ErrTypeNotAllowed):
		return writeError(c, fiber.StatusBadRequest, "TYPE_NOT_ALLOWED", "only document files are allowed")
	case errors.Is(err, repository.ErrDuplicateKey):
		return writeError(c, fiber.StatusConflict, "DUPLICATE_KEY", "a document with this key already exists")
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.Is(err, service.ErrBlobMissing):
		return writeError(c, fiber.StatusNotFound, "FILE_MISSING", "file not found on server")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
