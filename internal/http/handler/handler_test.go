package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/service"
	serviceMocks "docvault/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func multipartUpload(t *testing.T, key, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if key != "" {
		require.NoError(t, writer.WriteField("key", key))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Post("/api/documents/file", UploadDocument(mockSvc))

	t.Run("created", func(t *testing.T) {
		body, ct := multipartUpload(t, "doc1", "report.pdf", "application/pdf", bytes.Repeat([]byte("x"), 2048))

		expectedDoc := &model.Document{
			ID:           "gen-id",
			Key:          "doc1",
			OriginalName: "report.pdf",
			SizeBytes:    2048,
			ContentType:  "application/pdf",
			CreatedAt:    time.Now().UTC(),
		}
		mockSvc.On("Upload", mock.Anything, "doc1", "report.pdf", "application/pdf", int64(2048), mock.Anything).
			Return(expectedDoc, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/documents/file", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result model.Document
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, "doc1", result.Key)
		assert.Equal(t, "report.pdf", result.OriginalName)
		assert.Equal(t, int64(2048), result.SizeBytes)
		assert.Equal(t, "application/pdf", result.ContentType)
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing key", func(t *testing.T) {
		body, ct := multipartUpload(t, "", "report.pdf", "application/pdf", []byte("x"))

		req := httptest.NewRequest(http.MethodPost, "/api/documents/file", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "KEY_REQUIRED", res.Error.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		body, ct := multipartUpload(t, "doc1", "", "", nil)

		req := httptest.NewRequest(http.MethodPost, "/api/documents/file", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "FILE_REQUIRED", res.Error.Code)
	})

	t.Run("duplicate key", func(t *testing.T) {
		body, ct := multipartUpload(t, "doc1", "report.pdf", "application/pdf", []byte("x"))

		mockSvc.On("Upload", mock.Anything, "doc1", "report.pdf", "application/pdf", int64(1), mock.Anything).
			Return(nil, repository.ErrDuplicateKey).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/documents/file", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "DUPLICATE_KEY", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("file too large", func(t *testing.T) {
		body, ct := multipartUpload(t, "doc1", "report.pdf", "application/pdf", []byte("x"))

		mockSvc.On("Upload", mock.Anything, "doc1", "report.pdf", "application/pdf", int64(1), mock.Anything).
			Return(nil, service.ErrFileTooLarge).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/documents/file", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "FILE_TOO_LARGE", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		body, ct := multipartUpload(t, "doc1", "report.pdf", "application/pdf", []byte("x"))

		mockSvc.On("Upload", mock.Anything, "doc1", "report.pdf", "application/pdf", int64(1), mock.Anything).
			Return(nil, errors.New("upload failed")).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/documents/file", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestListDocuments(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/api/documents", ListDocuments(mockSvc))

	t.Run("success returns array newest first", func(t *testing.T) {
		docs := []model.Document{
			{Key: "newer"},
			{Key: "older"},
		}
		mockSvc.On("List", mock.Anything).Return(docs, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result []model.Document
		json.NewDecoder(resp.Body).Decode(&result)
		require.Len(t, result, 2)
		assert.Equal(t, "newer", result[0].Key)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything).Return(nil, errors.New("db fail")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/api/documents/:key", GetDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		expectedDoc := &model.Document{Key: "doc1", OriginalName: "report.pdf"}
		mockSvc.On("GetMetadata", mock.Anything, "doc1").Return(expectedDoc, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents/doc1", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.Document
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, "doc1", result.Key)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("GetMetadata", mock.Anything, "missing").Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents/missing", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("GetMetadata", mock.Anything, "doc1").Return(nil, errors.New("db error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents/doc1", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestDownloadDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/api/documents/:key/download", DownloadDocument(mockSvc))

	t.Run("streams bytes with attachment headers", func(t *testing.T) {
		content := []byte("pdf-bytes-here")
		doc := &model.Document{
			Key:          "doc1",
			OriginalName: "report.pdf",
			SizeBytes:    int64(len(content)),
			ContentType:  "application/pdf",
		}
		mockSvc.On("Download", mock.Anything, "doc1").
			Return(doc, io.NopCloser(bytes.NewReader(content)), nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents/doc1/download", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, `attachment; filename="report.pdf"`, resp.Header.Get("Content-Disposition"))
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, content, body)
		mockSvc.AssertExpectations(t)
	})

	t.Run("record not found", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "missing").
			Return(nil, nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents/missing/download", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("blob missing is 404 with a distinct code", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "doc1").
			Return(nil, nil, service.ErrBlobMissing).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents/doc1/download", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "FILE_MISSING", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("storage error", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "doc1").
			Return(nil, nil, errors.New("io fail")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents/doc1/download", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	mockSvc := new(serviceMocks.MockDocumentService)
	RegisterRoutes(app, nil, mockSvc)

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "METHOD_NOT_ALLOWED", res.Error.Code)
	})
}
