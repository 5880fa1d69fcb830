package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docvault/internal/config"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

var (
	ErrKeyRequired    = errors.New("key is required")
	ErrReaderNil      = errors.New("file content is required")
	ErrEmptyFile      = errors.New("file is empty")
	ErrFileTooLarge   = errors.New("file exceeds the maximum allowed size")
	ErrTypeNotAllowed = errors.New("file type is not allowed")
	ErrNotFound       = errors.New("document not found")
	// ErrBlobMissing means metadata exists but the blob does not. It is a
	// data-integrity anomaly, deliberately distinct from ErrNotFound.
	ErrBlobMissing = errors.New("document content missing from storage")
)

// mimesByExtension lists the declared MIME types accepted for each extension
// in the allow-list. The first entry is the canonical type, used when the
// client declares none.
var mimesByExtension = map[string][]string{
	"pdf":  {"application/pdf"},
	"doc":  {"application/msword"},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	"txt":  {"text/plain"},
	"rtf":  {"application/rtf", "text/rtf"},
	"odt":  {"application/vnd.oasis.opendocument.text"},
	"jpeg": {"image/jpeg"},
	"jpg":  {"image/jpeg"},
	"png":  {"image/png"},
	"gif":  {"image/gif"},
}

// DocumentService defines the use cases for keyed document storage.
type DocumentService interface {
	// Upload validates the request, writes the blob, then inserts the
	// metadata record; if the insert fails the blob is rolled back so no
	// orphan is left behind. Returns repository.ErrDuplicateKey when the
	// key is already taken.
	Upload(ctx context.Context, key, originalName, contentType string, size int64, r io.Reader) (*model.Document, error)

	// GetMetadata returns the record for a key, or ErrNotFound.
	GetMetadata(ctx context.Context, key string) (*model.Document, error)

	// Download returns the record together with a reader over the blob
	// bytes. The caller owns the reader and must close it. A record whose
	// blob is gone yields ErrBlobMissing.
	Download(ctx context.Context, key string) (*model.Document, io.ReadCloser, error)

	// List returns all records, newest first.
	List(ctx context.Context) ([]model.Document, error)
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store  storage.Storage
	repo   repository.DocumentRepository
	policy config.UploadPolicy
}

// NewDocumentService constructs a new DocumentService with the given upload policy.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, policy config.UploadPolicy) DocumentService {
	return &documentService{store: store, repo: repo, policy: policy}
}

func (s *documentService) Upload(ctx context.Context, key, originalName, contentType string, size int64, r io.Reader) (*model.Document, error) {
	// Validation happens before any store interaction: a rejected upload
	// leaves zero writes behind.
	if strings.TrimSpace(key) == "" {
		return nil, ErrKeyRequired
	}
	if r == nil {
		return nil, ErrReaderNil
	}
	if size <= 0 {
		return nil, ErrEmptyFile
	}
	if s.policy.MaxUploadBytes > 0 && size > s.policy.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	ct, err := s.resolveContentType(ext, contentType)
	if err != nil {
		return nil, err
	}

	// Stored name is UUID + original extension: non-colliding by
	// construction and never reused across records.
	storedName := uuid.New().String()
	if ext != "" {
		storedName += "." + ext
	}

	objInfo, err := s.store.Put(ctx, storedName, r, storage.PutObjectOptions{
		Size:        size,
		ContentType: ct,
		Metadata: map[string]string{
			"original-filename": originalName,
			"document-key":      key,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	doc := &model.Document{
		ID:           uuid.New().String(),
		Key:          key,
		StoredName:   storedName,
		OriginalName: originalName,
		SizeBytes:    objInfo.Size,
		ContentType:  ct,
		CreatedAt:    time.Now().UTC(),
	}
	stored, err := s.repo.Insert(ctx, doc)
	if err != nil {
		// Roll back the orphaned blob. The delete is best effort: a failed
		// rollback is logged, never re-raised, so it cannot mask the
		// original insert error.
		if delErr := s.store.Delete(ctx, storedName); delErr != nil {
			logJSON(map[string]any{
				"level":       "error",
				"component":   "service",
				"event":       "blob_rollback_failed",
				"stored_name": storedName,
				"key":         key,
				"error":       delErr.Error(),
			})
		}
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, err
		}
		return nil, fmt.Errorf("save metadata: %w", err)
	}
	return stored, nil
}

// GetMetadata returns a document record by its key.
func (s *documentService) GetMetadata(ctx context.Context, key string) (*model.Document, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	doc, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// Download looks up the record and opens its blob for streaming.
func (s *documentService) Download(ctx context.Context, key string) (*model.Document, io.ReadCloser, error) {
	doc, err := s.GetMetadata(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	rc, _, err := s.store.Get(ctx, doc.StoredName)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			// Metadata without bytes: out-of-band deletion or corruption.
			logJSON(map[string]any{
				"level":       "error",
				"component":   "service",
				"event":       "blob_integrity_anomaly",
				"stored_name": doc.StoredName,
				"key":         key,
			})
			return nil, nil, ErrBlobMissing
		}
		return nil, nil, fmt.Errorf("open blob: %w", err)
	}
	return doc, rc, nil
}

// List returns a full snapshot of all documents, newest first.
func (s *documentService) List(ctx context.Context) ([]model.Document, error) {
	return s.repo.ListAll(ctx)
}

func (s *documentService) resolveContentType(ext, declared string) (string, error) {
	if !s.extensionAllowed(ext) {
		return "", ErrTypeNotAllowed
	}
	mimes := mimesByExtension[ext]
	if declared == "" || declared == "application/octet-stream" {
		// Client declared nothing useful; fall back to the canonical type.
		if len(mimes) > 0 {
			return mimes[0], nil
		}
		return "", ErrTypeNotAllowed
	}
	base := declared
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	for _, m := range mimes {
		if strings.EqualFold(base, m) {
			return m, nil
		}
	}
	return "", ErrTypeNotAllowed
}

func (s *documentService) extensionAllowed(ext string) bool {
	if ext == "" {
		return false
	}
	for _, allowed := range s.policy.AllowedExtensions {
		if ext == allowed {
			// Extensions outside the known MIME table cannot be validated.
			_, known := mimesByExtension[ext]
			return known
		}
	}
	return false
}

func logJSON(data map[string]any) {
	data["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	if b, err := json.Marshal(data); err == nil {
		log.SetFlags(0)
		log.Println(string(b))
	}
}
