// Package search provides a thin REST client for an Azure Cognitive Search
// index holding document metadata and extracted text.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const apiVersion = "2023-11-01"

// ErrNotConfigured indicates the search endpoint settings are incomplete.
var ErrNotConfigured = errors.New("search not configured")

// Config holds the search service connection settings.
type Config struct {
	Endpoint string
	APIKey   string
	Index    string
}

// Document is the shape stored in the search index. Tags are flattened to a
// comma-separated string so they remain filterable as plain text.
type Document struct {
	ID          string `json:"id"`
	CompanyCode string `json:"companyCode"`
	Filename    string `json:"filename"`
	ProductName string `json:"productName"`
	Department  string `json:"department"`
	Site        string `json:"site"`
	Tags        string `json:"tags"`
	Content     string `json:"content"`
}

// Query describes a search request. Filters are combined with AND using
// OData equality; empty filter values are skipped.
type Query struct {
	Text    string
	Filters map[string]string
	Skip    int
	Top     int
}

// Result carries one page of hits plus the total match count.
type Result struct {
	IDs   []string
	Total int
}

// Client calls the search service REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New builds a Client. A nil-safe zero value reports unconfigured.
func New(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewWithHTTPClient builds a Client with an injected HTTP client for tests.
func NewWithHTTPClient(cfg Config, httpClient *http.Client) *Client {
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Configured reports whether the endpoint, key and index name are all set.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.Endpoint != "" && c.cfg.APIKey != "" && c.cfg.Index != ""
}

// Search runs a full-text query with optional field filters and pagination,
// returning matching document ids and the total count.
func (c *Client) Search(ctx context.Context, q Query) (Result, error) {
	if !c.Configured() {
		return Result{}, ErrNotConfigured
	}

	text := strings.TrimSpace(q.Text)
	if text == "" {
		text = "*"
	}

	payload := map[string]any{
		"search":    text,
		"count":     true,
		"select":    "id",
		"queryType": "simple",
	}
	if filter := buildFilter(q.Filters); filter != "" {
		payload["filter"] = filter
	}
	if q.Skip > 0 {
		payload["skip"] = q.Skip
	}
	if q.Top > 0 {
		payload["top"] = q.Top
	}

	endpoint := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", c.baseURL(), c.cfg.Index, apiVersion)
	var body struct {
		Count int `json:"@odata.count"`
		Value []struct {
			ID string `json:"id"`
		} `json:"value"`
	}
	if err := c.post(ctx, endpoint, payload, &body); err != nil {
		return Result{}, err
	}

	ids := make([]string, 0, len(body.Value))
	for _, hit := range body.Value {
		ids = append(ids, hit.ID)
	}
	return Result{IDs: ids, Total: body.Count}, nil
}

// IndexDocument upserts one document into the index.
func (c *Client) IndexDocument(ctx context.Context, doc Document) error {
	return c.IndexDocuments(ctx, []Document{doc})
}

// IndexDocuments upserts a batch of documents using mergeOrUpload actions.
func (c *Client) IndexDocuments(ctx context.Context, docs []Document) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if len(docs) == 0 {
		return nil
	}

	actions := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		action := map[string]any{
			"@search.action": "mergeOrUpload",
			"id":             doc.ID,
			"companyCode":    doc.CompanyCode,
			"filename":       doc.Filename,
			"productName":    doc.ProductName,
			"department":     doc.Department,
			"site":           doc.Site,
			"tags":           doc.Tags,
			"content":        doc.Content,
		}
		actions = append(actions, action)
	}

	endpoint := fmt.Sprintf("%s/indexes/%s/docs/index?api-version=%s", c.baseURL(), c.cfg.Index, apiVersion)
	return c.post(ctx, endpoint, map[string]any{"value": actions}, nil)
}

// DeleteDocument removes one document from the index. A missing key is not
// an error on the service side.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	endpoint := fmt.Sprintf("%s/indexes/%s/docs/index?api-version=%s", c.baseURL(), c.cfg.Index, apiVersion)
	payload := map[string]any{
		"value": []map[string]any{{"@search.action": "delete", "id": id}},
	}
	return c.post(ctx, endpoint, payload, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("search request: status %d %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("search decode: %w", err)
		}
	}
	return nil
}

func (c *Client) baseURL() string {
	return strings.TrimRight(c.cfg.Endpoint, "/")
}

// buildFilter renders field filters as ANDed OData equality expressions in a
// stable field order.
func buildFilter(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}
	order := []string{"companyCode", "department", "site", "productName", "tags"}
	parts := make([]string, 0, len(filters))
	seen := make(map[string]bool, len(filters))
	for _, field := range order {
		if val := strings.TrimSpace(filters[field]); val != "" {
			parts = append(parts, fmt.Sprintf("%s eq '%s'", field, escapeOData(val)))
			seen[field] = true
		}
	}
	for field, val := range filters {
		if seen[field] {
			continue
		}
		if val = strings.TrimSpace(val); val != "" {
			parts = append(parts, fmt.Sprintf("%s eq '%s'", field, escapeOData(val)))
		}
	}
	return strings.Join(parts, " and ")
}

func escapeOData(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
