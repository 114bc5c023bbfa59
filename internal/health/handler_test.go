package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"sds-backend/internal/crm"
)

func newHealthRouter(client *crm.Client) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(NewService(client)).RegisterRoutes(router.Group("/api"))
	return router
}

func TestHealthStatus(t *testing.T) {
	router := newHealthRouter(crm.New(crm.Config{}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["timestamp"] == "" {
		t.Fatalf("unexpected payload: %v", body)
	}
}

func TestCRMHealthUnconfigured(t *testing.T) {
	router := newHealthRouter(crm.New(crm.Config{}))

	req := httptest.NewRequest(http.MethodGet, "/api/health/crm", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["configured"] != false {
		t.Fatalf("expected configured=false, got %v", body)
	}
}

func TestCRMHealthReachableOnNotFound(t *testing.T) {
	// The sentinel contact does not exist; an empty result still counts as
	// reachable.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"value": []any{}})
	}))
	defer srv.Close()

	client := crm.NewWithHTTPClient(crm.Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret", TenantID: "tenant"}, srv.Client())
	router := newHealthRouter(client)

	req := httptest.NewRequest(http.MethodGet, "/api/health/crm", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["reachable"] != true {
		t.Fatalf("expected reachable=true, got %v", body)
	}
}
