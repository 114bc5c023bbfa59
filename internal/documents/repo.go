package documents

import "context"

// Filter narrows a document listing. Zero-value fields are ignored. Text is
// matched case-insensitively against filename, product name and full text.
type Filter struct {
	CompanyCode string
	ProductName string
	Department  string
	Site        string
	Tag         string
	Text        string
	Offset      int
	Limit       int
}

// Repo defines persistence operations for documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	List(ctx context.Context, f Filter) ([]Document, int, error)
	ListByIDs(ctx context.Context, ids []string) ([]Document, error)
	Update(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id string) error
}
