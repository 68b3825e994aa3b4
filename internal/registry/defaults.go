package registry

import "time"

// Endpoint names shared by all providers. Adapters look up their path
// templates under these keys; "{id}" is substituted with the asset id.
const (
	EndpointTopAssets = "top_assets"
	EndpointAsset     = "asset"
	EndpointHistory   = "history"
	EndpointSearch    = "search"
)

// Built-in provider IDs.
const (
	ProviderCoinGecko   = "coingecko"
	ProviderCoinCap     = "coincap"
	ProviderCoinPaprika = "coinpaprika"
)

// DefaultQuotaWindow is the rolling window quota counters reset over.
const DefaultQuotaWindow = 24 * time.Hour

// Defaults returns the built-in provider set. CoinGecko is the protected
// provider and is always present; the others can be deleted.
func Defaults() []ProviderConfig {
	return []ProviderConfig{
		{
			ID:       ProviderCoinGecko,
			Name:     "CoinGecko",
			BaseURL:  "https://api.coingecko.com/api/v3",
			Enabled:  true,
			Priority: 1,
			Builtin:  true,
			Endpoints: map[string]string{
				EndpointTopAssets: "/coins/markets",
				EndpointAsset:     "/coins/{id}",
				EndpointHistory:   "/coins/{id}/market_chart",
				EndpointSearch:    "/search",
			},
			RequiresAuth:         false,
			AuthMethod:           AuthHeader,
			AuthParam:            "x-cg-demo-api-key",
			MaxRequestsPerMinute: 30,
			Burst:                5,
			Quota:                Quota{Max: 10000, Window: DefaultQuotaWindow},
		},
		{
			ID:       ProviderCoinCap,
			Name:     "CoinCap",
			BaseURL:  "https://api.coincap.io/v2",
			Enabled:  true,
			Priority: 2,
			Endpoints: map[string]string{
				EndpointTopAssets: "/assets",
				EndpointAsset:     "/assets/{id}",
				EndpointHistory:   "/assets/{id}/history",
				EndpointSearch:    "/assets",
			},
			RequiresAuth:         false,
			AuthMethod:           AuthHeader,
			AuthParam:            "Authorization",
			MaxRequestsPerMinute: 100,
			Burst:                10,
			Quota:                Quota{Max: 0, Window: DefaultQuotaWindow},
		},
		{
			ID:       ProviderCoinPaprika,
			Name:     "CoinPaprika",
			BaseURL:  "https://api.coinpaprika.com/v1",
			Enabled:  true,
			Priority: 3,
			Endpoints: map[string]string{
				EndpointTopAssets: "/tickers",
				EndpointAsset:     "/tickers/{id}",
				EndpointHistory:   "/tickers/{id}/historical",
				EndpointSearch:    "/search",
			},
			RequiresAuth:         false,
			MaxRequestsPerMinute: 50,
			Burst:                10,
			Quota:                Quota{Max: 20000, Window: DefaultQuotaWindow},
		},
	}
}
