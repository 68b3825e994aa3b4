package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rickgao/market-gateway/internal/dispatch"
	"github.com/rickgao/market-gateway/internal/model"
	"github.com/rickgao/market-gateway/internal/provider"
	"github.com/rickgao/market-gateway/internal/registry"
	"github.com/rickgao/market-gateway/internal/store"
)

// stubAdapter serves one fixed asset for every operation.
type stubAdapter struct {
	id    string
	asset model.Asset
}

func (a *stubAdapter) ID() string { return a.id }
func (a *stubAdapter) FetchAsset(context.Context, string) (model.Asset, error) {
	return a.asset, nil
}
func (a *stubAdapter) FetchTopAssets(context.Context, int) ([]model.Asset, error) {
	return []model.Asset{a.asset}, nil
}
func (a *stubAdapter) FetchHistory(context.Context, string, int) (model.History, error) {
	return model.History{AssetID: a.asset.ID, Source: a.id}, nil
}
func (a *stubAdapter) SearchAssets(context.Context, string) ([]model.Asset, error) {
	return []model.Asset{a.asset}, nil
}

func newTestServer(t *testing.T, factory dispatch.AdapterFactory) (*Server, registry.Registry) {
	t.Helper()

	reg, err := registry.New(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("registry.New failed: %v", err)
	}
	cache := store.New(store.Config{}, nil, nil)
	d := dispatch.New(dispatch.Config{}, cache, reg, factory, nil)

	s := New(Config{Port: 0, InstanceID: "test"}, d, reg, cache, nil, nil, nil)
	return s, reg
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func stubFactory(asset model.Asset) dispatch.AdapterFactory {
	return func(cfg registry.ProviderConfig) provider.Adapter {
		return &stubAdapter{id: cfg.ID, asset: asset}
	}
}

func nilFactory(registry.ProviderConfig) provider.Adapter { return nil }

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nilFactory)

	rec := doRequest(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("status = %q, want %q", health.Status, "healthy")
	}
}

func TestGetAsset(t *testing.T) {
	s, _ := newTestServer(t, stubFactory(model.Asset{ID: "bitcoin", PriceUSD: 100}))

	rec := doRequest(t, s, http.MethodGet, "/api/v1/assets/bitcoin", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}

	var resp struct {
		Data     model.Asset `json:"data"`
		Provider string      `json:"provider"`
		Cached   bool        `json:"cached"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Data.ID != "bitcoin" {
		t.Errorf("asset id = %q, want %q", resp.Data.ID, "bitcoin")
	}
	if resp.Provider != registry.ProviderCoinGecko {
		t.Errorf("provider = %q, want %q", resp.Provider, registry.ProviderCoinGecko)
	}
	if resp.Cached {
		t.Error("first read reported as cached")
	}

	// Second read comes from the cache.
	rec = doRequest(t, s, http.MethodGet, "/api/v1/assets/bitcoin", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !resp.Cached {
		t.Error("second read not served from cache")
	}
}

func TestGetAssetUpstreamExhausted(t *testing.T) {
	s, _ := newTestServer(t, nilFactory)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/assets/bitcoin", "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	s, _ := newTestServer(t, nilFactory)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/search", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestProviderCRUD(t *testing.T) {
	s, _ := newTestServer(t, nilFactory)

	// List the built-in set.
	rec := doRequest(t, s, http.MethodGet, "/api/v1/providers", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", rec.Code, http.StatusOK)
	}
	var providers []registry.ProviderConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &providers); err != nil {
		t.Fatalf("decode providers: %v", err)
	}
	if len(providers) != 3 {
		t.Fatalf("listed %d providers, want 3", len(providers))
	}

	// Add a custom one.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/providers",
		`{"id":"custom","name":"Custom","enabled":true,"priority":9}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}

	// Duplicate id conflicts.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/providers", `{"id":"custom"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate add status = %d, want %d", rec.Code, http.StatusConflict)
	}

	// Unknown provider is a 404.
	rec = doRequest(t, s, http.MethodGet, "/api/v1/providers/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get unknown status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	// Built-ins cannot be deleted.
	rec = doRequest(t, s, http.MethodDelete, "/api/v1/providers/coingecko", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("delete builtin status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	// Custom providers can.
	rec = doRequest(t, s, http.MethodDelete, "/api/v1/providers/custom", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete custom status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestToggleProvider(t *testing.T) {
	s, _ := newTestServer(t, nilFactory)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/providers/coincap/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode toggle body: %v", err)
	}
	if body["enabled"] {
		t.Error("enabled = true after toggling an enabled provider, want false")
	}
}

func TestCredentialIsRedacted(t *testing.T) {
	s, reg := newTestServer(t, nilFactory)

	rec := doRequest(t, s, http.MethodPut, "/api/v1/providers/coingecko/credential",
		`{"api_key":"super-secret"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set credential status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	// The registry holds the real key.
	p, err := reg.Get(registry.ProviderCoinGecko)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.APIKey != "super-secret" {
		t.Errorf("stored APIKey = %q, want %q", p.APIKey, "super-secret")
	}

	// The admin API never echoes it back.
	rec = doRequest(t, s, http.MethodGet, "/api/v1/providers/coingecko", "")
	if strings.Contains(rec.Body.String(), "super-secret") {
		t.Error("credential leaked through the admin API")
	}
}
