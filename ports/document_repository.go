package ports

import (
	"context"

	"dataportal/domain/document"
	"dataportal/domain/table"
)

// DocumentRepository persists PDF document metadata
type DocumentRepository interface {
	Create(ctx context.Context, doc *document.Document) error
	GetByID(ctx context.Context, id string) (*document.Document, error)
	ListByCategory(ctx context.Context, category document.Category) ([]*document.Document, error)
	Delete(ctx context.Context, id string) error
}

// ImportRunRepository records the history of spreadsheet imports
type ImportRunRepository interface {
	Create(ctx context.Context, run *table.ImportRun) error
	ListByTable(ctx context.Context, tableName string, limit int) ([]*table.ImportRun, error)
}
