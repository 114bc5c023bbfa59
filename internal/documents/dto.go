package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	ID          string    `json:"id"`
	CompanyCode string    `json:"companyCode"`
	Filename    string    `json:"filename"`
	ProductName string    `json:"productName"`
	Department  string    `json:"department"`
	Site        string    `json:"site"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toResponse(doc Document) DocumentResponse {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return DocumentResponse{
		ID:          doc.ID,
		CompanyCode: doc.CompanyCode,
		Filename:    doc.Filename,
		ProductName: doc.ProductName,
		Department:  doc.Department,
		Site:        doc.Site,
		Tags:        tags,
		CreatedAt:   doc.CreatedAt,
	}
}

func toResponses(docs []Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toResponse(doc))
	}
	return out
}
