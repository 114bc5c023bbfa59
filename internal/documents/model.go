package documents

import "time"

// Document is a safety document record. The binary lives in object storage
// under BlobPath; FullText holds text extracted at upload time for search.
type Document struct {
	ID          string
	CompanyCode string
	Filename    string
	BlobPath    string
	ProductName string
	Department  string
	Site        string
	Tags        []string
	FullText    string
	CreatedAt   time.Time
}

// Metadata is the caller-editable subset of a document. Nil fields on a patch
// leave the stored value untouched.
type Metadata struct {
	ProductName *string
	Department  *string
	Site        *string
	Tags        *[]string
}

// Apply overlays the patch onto a document.
func (m Metadata) Apply(doc *Document) {
	if m.ProductName != nil {
		doc.ProductName = *m.ProductName
	}
	if m.Department != nil {
		doc.Department = *m.Department
	}
	if m.Site != nil {
		doc.Site = *m.Site
	}
	if m.Tags != nil {
		doc.Tags = append([]string(nil), (*m.Tags)...)
	}
}

// Empty reports whether the patch changes nothing.
func (m Metadata) Empty() bool {
	return m.ProductName == nil && m.Department == nil && m.Site == nil && m.Tags == nil
}
