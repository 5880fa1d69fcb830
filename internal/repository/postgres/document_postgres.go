package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

// Insert writes a new document row and returns the stored record.
// A unique violation on the key column is reported as repository.ErrDuplicateKey;
// the constraint itself decides the winner between concurrent inserts.
func (r *DocumentPostgres) Insert(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, key, stored_name, original_name, size_bytes, content_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, key, stored_name, original_name, size_bytes, content_type, created_at
	`
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.Key,
		doc.StoredName,
		doc.OriginalName,
		doc.SizeBytes,
		doc.ContentType,
		doc.CreatedAt,
	)
	var out model.Document
	if err := row.Scan(
		&out.ID,
		&out.Key,
		&out.StoredName,
		&out.OriginalName,
		&out.SizeBytes,
		&out.ContentType,
		&out.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicateKey
		}
		return nil, err
	}
	return &out, nil
}

// FindByKey fetches a single document by its caller-supplied key.
func (r *DocumentPostgres) FindByKey(ctx context.Context, key string) (*model.Document, error) {
	const q = `
		SELECT id, key, stored_name, original_name, size_bytes, content_type, created_at
		FROM documents
		WHERE key = $1
	`
	row := r.db.QueryRowContext(ctx, q, key)
	var d model.Document
	if err := row.Scan(
		&d.ID,
		&d.Key,
		&d.StoredName,
		&d.OriginalName,
		&d.SizeBytes,
		&d.ContentType,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListAll returns every document, newest first.
func (r *DocumentPostgres) ListAll(ctx context.Context) ([]model.Document, error) {
	const q = `
		SELECT id, key, stored_name, original_name, size_bytes, content_type, created_at
		FROM documents
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(
			&d.ID,
			&d.Key,
			&d.StoredName,
			&d.OriginalName,
			&d.SizeBytes,
			&d.ContentType,
			&d.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
