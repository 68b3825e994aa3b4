package coinpaprika

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rickgao/market-gateway/internal/registry"
)

func testAdapter(t *testing.T, routes map[string]string) *Adapter {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	cfg := registry.ProviderConfig{
		ID:      registry.ProviderCoinPaprika,
		BaseURL: srv.URL,
		Endpoints: map[string]string{
			registry.EndpointTopAssets: "/tickers",
			registry.EndpointAsset:     "/tickers/{id}",
			registry.EndpointHistory:   "/tickers/{id}/historical",
			registry.EndpointSearch:    "/search",
		},
	}
	return New(cfg)
}

func TestFetchAssetTranslatesID(t *testing.T) {
	a := testAdapter(t, map[string]string{
		// The canonical id "bitcoin" resolves to the compound native id.
		"/tickers/btc-bitcoin": `{
			"id": "btc-bitcoin", "name": "Bitcoin", "symbol": "BTC", "rank": 1,
			"circulating_supply": 19700000,
			"last_updated": "2025-06-01T12:00:00Z",
			"quotes": {
				"USD": {
					"price": 64523.12,
					"volume_24h": 35000000000,
					"market_cap": 1280000000000,
					"percent_change_24h": -1.23,
					"ath_price": 73750,
					"ath_date": "2024-03-14T07:10:36Z"
				}
			}
		}`,
	})

	asset, err := a.FetchAsset(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("FetchAsset failed: %v", err)
	}

	// The compound id is translated back to the canonical one.
	if asset.ID != "bitcoin" {
		t.Errorf("ID = %q, want %q", asset.ID, "bitcoin")
	}
	if asset.Symbol != "btc" {
		t.Errorf("Symbol = %q, want %q", asset.Symbol, "btc")
	}
	if asset.PriceUSD != 64523.12 {
		t.Errorf("PriceUSD = %v, want 64523.12", asset.PriceUSD)
	}
	if asset.ATH == nil || *asset.ATH != 73750 {
		t.Errorf("ATH = %v, want 73750", asset.ATH)
	}
}

func TestFetchTopAssetsAppliesLimit(t *testing.T) {
	a := testAdapter(t, map[string]string{
		"/tickers": `[
			{"id": "btc-bitcoin", "name": "Bitcoin", "symbol": "BTC", "rank": 1,
			 "quotes": {"USD": {"price": 64523.12}}},
			{"id": "eth-ethereum", "name": "Ethereum", "symbol": "ETH", "rank": 2,
			 "quotes": {"USD": {"price": 3200}}},
			{"id": "usdt-tether", "name": "Tether", "symbol": "USDT", "rank": 3,
			 "quotes": {"USD": {"price": 1}}}
		]`,
	})

	assets, err := a.FetchTopAssets(context.Background(), 2)
	if err != nil {
		t.Fatalf("FetchTopAssets failed: %v", err)
	}

	// The upstream ignored the limit; the adapter enforces it client-side.
	if len(assets) != 2 {
		t.Fatalf("got %d assets, want 2", len(assets))
	}
	if assets[0].ID != "bitcoin" || assets[1].ID != "ethereum" {
		t.Errorf("ids = %q, %q, want bitcoin, ethereum", assets[0].ID, assets[1].ID)
	}
}

func TestFetchAssetWithoutUSDQuote(t *testing.T) {
	a := testAdapter(t, map[string]string{
		"/tickers/obscure-coin": `{
			"id": "obscure-coin", "name": "Obscure", "symbol": "OBS", "rank": 900,
			"quotes": {}
		}`,
	})

	asset, err := a.FetchAsset(context.Background(), "obscure-coin")
	if err != nil {
		t.Fatalf("FetchAsset failed: %v", err)
	}
	if asset.PriceUSD != 0 {
		t.Errorf("PriceUSD = %v without USD quote, want 0", asset.PriceUSD)
	}
	if asset.MarketCap != nil {
		t.Error("MarketCap present without USD quote, want nil")
	}
}

func TestSearchAssets(t *testing.T) {
	a := testAdapter(t, map[string]string{
		"/search": `{
			"currencies": [
				{"id": "btc-bitcoin", "name": "Bitcoin", "symbol": "BTC", "rank": 1}
			]
		}`,
	})

	assets, err := a.SearchAssets(context.Background(), "bit")
	if err != nil {
		t.Fatalf("SearchAssets failed: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("got %d results, want 1", len(assets))
	}
	if assets[0].ID != "bitcoin" {
		t.Errorf("ID = %q, want %q", assets[0].ID, "bitcoin")
	}
}

func TestIDTranslation(t *testing.T) {
	tests := []struct {
		nativeID string
		name     string
		want     string
	}{
		{"btc-bitcoin", "Bitcoin", "bitcoin"},
		{"sol-solana", "Solana", "solana"},
		{"nocompound", "Plain Name", "plain-name"},
	}
	for _, tt := range tests {
		if got := toCanonicalID(tt.nativeID, tt.name); got != tt.want {
			t.Errorf("toCanonicalID(%q, %q) = %q, want %q", tt.nativeID, tt.name, got, tt.want)
		}
	}

	a := &Adapter{}
	if got := a.toNativeID("bitcoin"); got != "btc-bitcoin" {
		t.Errorf("toNativeID(bitcoin) = %q, want btc-bitcoin", got)
	}
	if got := a.toNativeID("xyz-unknown"); got != "xyz-unknown" {
		t.Errorf("toNativeID passthrough = %q, want xyz-unknown", got)
	}
}
