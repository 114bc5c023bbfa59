package documents

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo for development and tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Document
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Document)}
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[doc.ID] = cloneDocument(doc)
	return nil
}

// GetByID returns a document by id.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDocument(doc), nil
}

// List returns matching documents newest-first plus the total match count.
func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Document, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	var matched []Document
	for _, doc := range r.data {
		if matchesFilter(doc, f) {
			matched = append(matched, cloneDocument(doc))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)

	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []Document{}, total, nil
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// ListByIDs returns documents for the given ids, preserving order.
func (r *MemoryRepo) ListByIDs(ctx context.Context, ids []string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := r.data[id]; ok {
			out = append(out, cloneDocument(doc))
		}
	}
	return out, nil
}

// Update replaces the stored document.
func (r *MemoryRepo) Update(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[doc.ID]; !ok {
		return ErrNotFound
	}
	r.data[doc.ID] = cloneDocument(doc)
	return nil
}

// Delete removes a document.
func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}

func matchesFilter(doc Document, f Filter) bool {
	if f.CompanyCode != "" && doc.CompanyCode != f.CompanyCode {
		return false
	}
	if f.ProductName != "" && doc.ProductName != f.ProductName {
		return false
	}
	if f.Department != "" && doc.Department != f.Department {
		return false
	}
	if f.Site != "" && doc.Site != f.Site {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, tag := range doc.Tags {
			if tag == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		if !strings.Contains(strings.ToLower(doc.Filename), needle) &&
			!strings.Contains(strings.ToLower(doc.ProductName), needle) &&
			!strings.Contains(strings.ToLower(doc.FullText), needle) {
			return false
		}
	}
	return true
}

func cloneDocument(doc Document) Document {
	doc.Tags = append([]string(nil), doc.Tags...)
	return doc
}

var _ Repo = (*MemoryRepo)(nil)
