package documents

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"sds-backend/internal/extract"
	"sds-backend/internal/search"
	"sds-backend/internal/shared/metrics"
	"sds-backend/internal/shared/storage/object"
	"sds-backend/internal/shared/telemetry"
)

// Service contains business logic for safety documents.
type Service struct {
	Repo   Repo
	Store  object.ObjectStore
	Search *search.Client

	DownloadExpiry   time.Duration
	ShareDefaultDays int
}

// SearchParams describes a document search.
type SearchParams struct {
	Query       string
	CompanyCode string
	Department  string
	Site        string
	Page        int
	Limit       int
}

// SearchResult is one page of documents plus the total match count.
type SearchResult struct {
	Items []Document
	Total int
	Page  int
	Limit int
}

// UploadParams carries one file upload with its metadata.
type UploadParams struct {
	CompanyCode string
	Filename    string
	ProductName string
	Department  string
	Site        string
	Tags        []string
	Body        io.Reader
}

// BulkResult reports per-file outcomes of a bulk upload. Errors holds one
// "filename: message" entry per failed file.
type BulkResult struct {
	Uploaded int
	Failed   int
	Errors   []string
}

// UpdateError names one document that failed during a bulk metadata update.
type UpdateError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ShareLink is an anonymous, time-limited download link. It cannot be revoked
// before it expires.
type ShareLink struct {
	URL       string
	ExpiresAt time.Time
}

// LabelData is the printable label projection of a document.
type LabelData struct {
	ProductName string `json:"productName"`
	CompanyCode string `json:"companyCode"`
	Department  string `json:"department"`
	Site        string `json:"site"`
	Filename    string `json:"filename"`
}

// Find searches documents. When the search index is configured it serves
// full-text queries with filters and pagination; otherwise the database is
// queried with equality filters, newest first.
func (s *Service) Find(ctx context.Context, p SearchParams) (SearchResult, error) {
	metrics.IncSearch()

	page := p.Page
	if page < 1 {
		page = 1
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	if s.Search.Configured() {
		res, err := s.Search.Search(ctx, search.Query{
			Text: p.Query,
			Filters: map[string]string{
				"companyCode": p.CompanyCode,
				"department":  p.Department,
				"site":        p.Site,
			},
			Skip: offset,
			Top:  limit,
		})
		if err == nil {
			items, err := s.Repo.ListByIDs(ctx, res.IDs)
			if err != nil {
				return SearchResult{}, err
			}
			return SearchResult{Items: items, Total: res.Total, Page: page, Limit: limit}, nil
		}
		telemetry.Warn("search.index_unavailable", map[string]any{"error": err.Error()})
	}

	items, total, err := s.Repo.List(ctx, Filter{
		CompanyCode: p.CompanyCode,
		Department:  p.Department,
		Site:        p.Site,
		Text:        p.Query,
		Offset:      offset,
		Limit:       limit,
	})
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Upload stores the binary, extracts text best-effort, records the metadata
// row and pushes the document into the search index.
func (s *Service) Upload(ctx context.Context, p UploadParams) (Document, error) {
	if p.Filename == "" || p.CompanyCode == "" {
		return Document{}, fmt.Errorf("%w: filename and companyCode are required", ErrInvalidInput)
	}

	blobPath, size, mimeType, err := s.Store.Save(ctx, p.CompanyCode, p.Filename, p.Body)
	if err != nil {
		metrics.IncUploadFailed()
		return Document{}, err
	}
	metrics.IncUpload()
	metrics.ObserveUploadSize(float64(size))

	doc := Document{
		ID:          uuid.NewString(),
		CompanyCode: p.CompanyCode,
		Filename:    p.Filename,
		BlobPath:    blobPath,
		ProductName: p.ProductName,
		Department:  p.Department,
		Site:        p.Site,
		Tags:        normalizeTags(p.Tags),
		CreatedAt:   time.Now().UTC(),
	}
	doc.FullText = s.extractText(ctx, blobPath, mimeType, p.Filename)

	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}

	s.index(ctx, doc)
	return doc, nil
}

// BulkUpload uploads each file independently. One bad file never aborts the
// batch; failures are reported per file.
func (s *Service) BulkUpload(ctx context.Context, uploads []UploadParams) BulkResult {
	var res BulkResult
	for _, p := range uploads {
		if _, err := s.Upload(ctx, p); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", p.Filename, err.Error()))
			continue
		}
		res.Uploaded++
	}
	return res
}

// Get returns a document's metadata.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	return s.Repo.GetByID(ctx, id)
}

// UpdateMetadata patches the whitelisted metadata fields and re-indexes.
func (s *Service) UpdateMetadata(ctx context.Context, id string, patch Metadata) (Document, error) {
	if patch.Empty() {
		return Document{}, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}

	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Document{}, err
	}
	patch.Apply(&doc)
	doc.Tags = normalizeTags(doc.Tags)

	if err := s.Repo.Update(ctx, doc); err != nil {
		return Document{}, err
	}
	s.index(ctx, doc)
	return doc, nil
}

// BulkUpdateMetadata applies one patch to many documents, isolating failures.
// Returns the number of documents updated plus per-id errors.
func (s *Service) BulkUpdateMetadata(ctx context.Context, ids []string, patch Metadata) (int, []UpdateError, error) {
	if patch.Empty() {
		return 0, nil, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}

	updated := 0
	var errs []UpdateError
	for _, id := range ids {
		if _, err := s.UpdateMetadata(ctx, id, patch); err != nil {
			errs = append(errs, UpdateError{ID: id, Message: err.Error()})
			continue
		}
		updated++
	}
	return updated, errs, nil
}

// Delete removes the metadata row and the search index entry. The blob is
// left behind; storage lifecycle rules reap orphans.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.Search.Configured() {
		if err := s.Search.DeleteDocument(ctx, id); err != nil {
			telemetry.Warn("search.delete_failed", map[string]any{"document_id": id, "error": err.Error()})
		}
	}
	return nil
}

// DownloadURL returns a presigned read URL for the document binary.
func (s *Service) DownloadURL(ctx context.Context, id string) (string, Document, error) {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return "", Document{}, err
	}

	expiry := s.DownloadExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	url, err := s.Store.SignedURL(ctx, doc.BlobPath, expiry)
	if err != nil {
		return "", Document{}, err
	}
	return url, doc, nil
}

// CreateShareLink issues an anonymous presigned URL valid for the given number
// of days.
func (s *Service) CreateShareLink(ctx context.Context, id string, days int) (ShareLink, error) {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return ShareLink{}, err
	}

	if days <= 0 {
		days = s.ShareDefaultDays
	}
	if days <= 0 {
		days = 7
	}
	expiry := time.Duration(days) * 24 * time.Hour

	url, err := s.Store.SignedURL(ctx, doc.BlobPath, expiry)
	if err != nil {
		return ShareLink{}, err
	}
	return ShareLink{URL: url, ExpiresAt: time.Now().UTC().Add(expiry)}, nil
}

// Label returns the printable label projection. Product name falls back to
// the filename.
func (s *Service) Label(ctx context.Context, id string) (LabelData, error) {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return LabelData{}, err
	}

	name := doc.ProductName
	if name == "" {
		name = doc.Filename
	}
	return LabelData{
		ProductName: name,
		CompanyCode: doc.CompanyCode,
		Department:  doc.Department,
		Site:        doc.Site,
		Filename:    doc.Filename,
	}, nil
}

// extractText reads the stored blob back and extracts its text. Extraction is
// best effort; failures leave the full text empty.
func (s *Service) extractText(ctx context.Context, blobPath, mimeType, fileName string) string {
	body, err := s.Store.Open(ctx, blobPath)
	if err != nil {
		return ""
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return ""
	}

	text, err := extract.Text(ctx, raw, mimeType, fileName)
	if err != nil {
		telemetry.Warn("extract.failed", map[string]any{"blob_path": blobPath, "error": err.Error()})
		return ""
	}
	return text
}

func (s *Service) index(ctx context.Context, doc Document) {
	if !s.Search.Configured() {
		return
	}
	metrics.IncSearchIndex()
	err := s.Search.IndexDocument(ctx, search.Document{
		ID:          doc.ID,
		CompanyCode: doc.CompanyCode,
		Filename:    doc.Filename,
		ProductName: doc.ProductName,
		Department:  doc.Department,
		Site:        doc.Site,
		Tags:        strings.Join(doc.Tags, ","),
		Content:     doc.FullText,
	})
	if err != nil {
		telemetry.Warn("search.index_failed", map[string]any{"document_id": doc.ID, "error": err.Error()})
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
