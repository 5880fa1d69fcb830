package repository

import (
	"context"
	"errors"

	"docvault/internal/model"
)

// ErrDuplicateKey is returned by Insert when a record with the same key
// already exists. Implementations must derive it from the storage layer's
// own uniqueness enforcement (a unique constraint), never from a
// read-then-write check.
var ErrDuplicateKey = errors.New("duplicate document key")

// DocumentRepository defines data access for document records using SQL queries only.
// No business logic here — strictly persistence operations.
type DocumentRepository interface {
	// Insert persists a new document record. The check-and-write against the
	// unique key is a single indivisible operation: of two racing inserts
	// with the same key at most one succeeds, the other gets ErrDuplicateKey.
	// Returns the stored record (may include values set by the DB).
	Insert(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByKey returns the record for a caller-supplied key, or sql.ErrNoRows.
	FindByKey(ctx context.Context, key string) (*model.Document, error)

	// ListAll returns a full snapshot of all records, most recently created first.
	ListAll(ctx context.Context) ([]model.Document, error)
}
