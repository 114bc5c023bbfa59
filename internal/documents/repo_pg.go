package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PGRepo implements Repo using Postgres. Tags are stored as a JSON text
// column so the set round-trips exactly.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = "id, company_code, filename, blob_path, product_name, department, site, tags, full_text, created_at"

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    company_code,
    filename,
    blob_path,
    product_name,
    department,
    site,
    tags,
    full_text,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	tags, err := encodeTags(doc.Tags)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.CompanyCode,
		doc.Filename,
		doc.BlobPath,
		doc.ProductName,
		doc.Department,
		doc.Site,
		tags,
		doc.FullText,
		doc.CreatedAt,
	)
	return err
}

// GetByID fetches a single document.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1 LIMIT 1`, documentColumns)
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// List returns a page of documents matching the filter plus the total count.
func (r *PGRepo) List(ctx context.Context, f Filter) ([]Document, int, error) {
	where, args := buildWhere(f)

	countQuery := "SELECT COUNT(*) FROM documents" + where
	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(
		"SELECT %s FROM documents%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		documentColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, doc)
	}
	return out, total, rows.Err()
}

// ListByIDs fetches documents for the given ids, in the order requested.
// Unknown ids are silently skipped.
func (r *PGRepo) ListByIDs(ctx context.Context, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT %s FROM documents WHERE id IN (%s)", documentColumns, strings.Join(placeholders, ", "))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]Document, len(ids))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		byID[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Document, 0, len(byID))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Update rewrites the mutable columns of a document.
func (r *PGRepo) Update(ctx context.Context, doc Document) error {
	const query = `
UPDATE documents
SET product_name = $1, department = $2, site = $3, tags = $4, full_text = $5
WHERE id = $6`

	tags, err := encodeTags(doc.Tags)
	if err != nil {
		return err
	}

	res, err := r.DB.ExecContext(ctx, query, doc.ProductName, doc.Department, doc.Site, tags, doc.FullText, doc.ID)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document row.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func buildWhere(f Filter) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, val any) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.CompanyCode != "" {
		add("company_code = $%d", f.CompanyCode)
	}
	if f.ProductName != "" {
		add("product_name = $%d", f.ProductName)
	}
	if f.Department != "" {
		add("department = $%d", f.Department)
	}
	if f.Site != "" {
		add("site = $%d", f.Site)
	}
	if f.Tag != "" {
		// Tags column holds a JSON array of strings.
		add("tags::jsonb ? $%d", f.Tag)
	}
	if f.Text != "" {
		args = append(args, "%"+strings.ToLower(f.Text)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(filename) LIKE $%d OR LOWER(product_name) LIKE $%d OR LOWER(full_text) LIKE $%d)", n, n, n))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var productName, department, site, tags, fullText sql.NullString
	if err := row.Scan(
		&doc.ID,
		&doc.CompanyCode,
		&doc.Filename,
		&doc.BlobPath,
		&productName,
		&department,
		&site,
		&tags,
		&fullText,
		&doc.CreatedAt,
	); err != nil {
		return Document{}, err
	}
	doc.ProductName = productName.String
	doc.Department = department.String
	doc.Site = site.String
	doc.FullText = fullText.String
	doc.Tags = decodeTags(tags.String)
	return doc, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeTags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}

var _ Repo = (*PGRepo)(nil)
