package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewWithHTTPClient(Config{Endpoint: srv.URL, APIKey: "key", Index: "safety-documents"}, srv.Client())
	return client, srv
}

func TestSearchBuildsRequestAndParsesHits(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"@odata.count": 42,
			"value":        []map[string]any{{"id": "d-1"}, {"id": "d-2"}},
		})
	})

	res, err := client.Search(context.Background(), Query{
		Text:    "acetone",
		Filters: map[string]string{"companyCode": "ACME", "site": "Plant 1"},
		Skip:    10,
		Top:     5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotPath != "/indexes/safety-documents/docs/search" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotKey != "key" {
		t.Fatalf("missing api-key header")
	}
	if gotBody["search"] != "acetone" || gotBody["count"] != true {
		t.Fatalf("unexpected body: %v", gotBody)
	}
	if gotBody["filter"] != "companyCode eq 'ACME' and site eq 'Plant 1'" {
		t.Fatalf("unexpected filter: %v", gotBody["filter"])
	}
	if gotBody["skip"] != float64(10) || gotBody["top"] != float64(5) {
		t.Fatalf("unexpected pagination: %v", gotBody)
	}

	if res.Total != 42 || len(res.IDs) != 2 || res.IDs[0] != "d-1" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSearchEmptyTextMatchesAll(t *testing.T) {
	var gotBody map[string]any
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"@odata.count": 0, "value": []any{}})
	})

	if _, err := client.Search(context.Background(), Query{Text: "  "}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotBody["search"] != "*" {
		t.Fatalf("expected wildcard search, got %v", gotBody["search"])
	}
}

func TestIndexDocumentSendsMergeOrUpload(t *testing.T) {
	var gotPath string
	var gotBody struct {
		Value []map[string]any `json:"value"`
	}
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	doc := Document{ID: "d-1", CompanyCode: "ACME", Filename: "acetone.pdf", Content: "flammable"}
	if err := client.IndexDocument(context.Background(), doc); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	if gotPath != "/indexes/safety-documents/docs/index" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if len(gotBody.Value) != 1 {
		t.Fatalf("expected 1 action, got %d", len(gotBody.Value))
	}
	action := gotBody.Value[0]
	if action["@search.action"] != "mergeOrUpload" || action["id"] != "d-1" {
		t.Fatalf("unexpected action: %v", action)
	}
}

func TestUnconfiguredClient(t *testing.T) {
	client := New(Config{})
	if client.Configured() {
		t.Fatalf("expected unconfigured")
	}
	if _, err := client.Search(context.Background(), Query{}); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := client.IndexDocument(context.Background(), Document{ID: "x"}); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSearchSurfacesServiceErrors(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index not found", http.StatusNotFound)
	})

	if _, err := client.Search(context.Background(), Query{Text: "x"}); err == nil {
		t.Fatalf("expected error on 404")
	}
}
