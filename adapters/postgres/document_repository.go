package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"dataportal/domain/document"
	"dataportal/internal/errors"
	"dataportal/ports"

	"github.com/jmoiron/sqlx"
)

// documentRepository implements the DocumentRepository interface
type documentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sqlx.DB) ports.DocumentRepository {
	return &documentRepository{db: db}
}

const documentColumns = `id, category, title, original_name, storage_path, size_bytes, created_at, updated_at`

// Create inserts document metadata
func (r *documentRepository) Create(ctx context.Context, doc *document.Document) error {
	query := r.db.Rebind(`INSERT INTO documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		doc.ID, string(doc.Category), doc.Title, doc.OriginalName, doc.StoragePath,
		doc.SizeBytes, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID retrieves a document by its ID
func (r *documentRepository) GetByID(ctx context.Context, id string) (*document.Document, error) {
	query := r.db.Rebind(`SELECT ` + documentColumns + ` FROM documents WHERE id = ?`)

	var doc document.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("document " + id)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// ListByCategory returns the documents of one category, newest first
func (r *documentRepository) ListByCategory(ctx context.Context, category document.Category) ([]*document.Document, error) {
	query := r.db.Rebind(`SELECT ` + documentColumns + ` FROM documents
		WHERE category = ?
		ORDER BY created_at DESC, id DESC`)

	docs := []*document.Document{}
	if err := r.db.SelectContext(ctx, &docs, query, string(category)); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Delete removes document metadata
func (r *documentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM documents WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NotFound("document " + id)
	}
	return nil
}
