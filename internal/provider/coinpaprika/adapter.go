// Package coinpaprika adapts the CoinPaprika v1 REST API to canonical
// records.
//
// CoinPaprika uses compound ids ("btc-bitcoin") while the canonical id space
// follows the plain-slug convention ("bitcoin"); the adapter translates in
// both directions.
package coinpaprika

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/market-gateway/internal/model"
	"github.com/rickgao/market-gateway/internal/provider"
	"github.com/rickgao/market-gateway/internal/registry"
)

// Adapter implements provider.Adapter for CoinPaprika.
type Adapter struct {
	cfg    registry.ProviderConfig
	client *provider.Client
}

// New creates a CoinPaprika adapter from its provider configuration.
func New(cfg registry.ProviderConfig, opts ...provider.ClientOption) *Adapter {
	return &Adapter{
		cfg:    cfg,
		client: provider.NewClient(cfg, opts...),
	}
}

func (a *Adapter) ID() string { return a.cfg.ID }

// tickerRow is one element of the /tickers response.
type tickerRow struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Symbol            string   `json:"symbol"`
	Rank              int      `json:"rank"`
	CirculatingSupply *float64 `json:"circulating_supply"`
	TotalSupply       *float64 `json:"total_supply"`
	MaxSupply         *float64 `json:"max_supply"`
	LastUpdated       string   `json:"last_updated"`
	Quotes            map[string]struct {
		Price            float64  `json:"price"`
		Volume24h        *float64 `json:"volume_24h"`
		MarketCap        *float64 `json:"market_cap"`
		PercentChange24h *float64 `json:"percent_change_24h"`
		ATHPrice         *float64 `json:"ath_price"`
		ATHDate          *string  `json:"ath_date"`
	} `json:"quotes"`
}

func (a *Adapter) FetchTopAssets(ctx context.Context, limit int) ([]model.Asset, error) {
	path, err := a.client.Endpoint(registry.EndpointTopAssets, "")
	if err != nil {
		return nil, err
	}

	var rows []tickerRow
	query := url.Values{"quotes": {"USD"}, "limit": {strconv.Itoa(limit)}}
	if err := a.client.Get(ctx, path, query, &rows); err != nil {
		return nil, err
	}

	// The endpoint may ignore the limit parameter and return everything.
	if len(rows) > limit {
		rows = rows[:limit]
	}

	assets := make([]model.Asset, 0, len(rows))
	for _, r := range rows {
		assets = append(assets, a.normalize(r))
	}
	return assets, nil
}

// historicalRow is one element of the /tickers/{id}/historical response.
type historicalRow struct {
	Timestamp string   `json:"timestamp"`
	Price     float64  `json:"price"`
	Volume24h *float64 `json:"volume_24h"`
	MarketCap *float64 `json:"market_cap"`
}

func (a *Adapter) FetchHistory(ctx context.Context, assetID string, rangeDays int) (model.History, error) {
	path, err := a.client.Endpoint(registry.EndpointHistory, a.toNativeID(assetID))
	if err != nil {
		return model.History{}, err
	}

	start := time.Now().AddDate(0, 0, -rangeDays)
	query := url.Values{
		"start":    {start.UTC().Format(time.RFC3339)},
		"interval": {intervalFor(rangeDays)},
	}

	var rows []historicalRow
	if err := a.client.Get(ctx, path, query, &rows); err != nil {
		return model.History{}, err
	}

	h := model.History{AssetID: assetID, Source: a.cfg.ID}
	for _, r := range rows {
		ts, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			continue
		}
		ts = ts.UTC()
		h.Prices = append(h.Prices, model.PricePoint{Timestamp: ts, Value: r.Price})
		if r.MarketCap != nil {
			h.MarketCaps = append(h.MarketCaps, model.PricePoint{Timestamp: ts, Value: *r.MarketCap})
		}
		if r.Volume24h != nil {
			h.Volumes = append(h.Volumes, model.PricePoint{Timestamp: ts, Value: *r.Volume24h})
		}
	}
	return h, nil
}

func (a *Adapter) FetchAsset(ctx context.Context, assetID string) (model.Asset, error) {
	path, err := a.client.Endpoint(registry.EndpointAsset, a.toNativeID(assetID))
	if err != nil {
		return model.Asset{}, err
	}

	var row tickerRow
	if err := a.client.Get(ctx, path, url.Values{"quotes": {"USD"}}, &row); err != nil {
		return model.Asset{}, err
	}
	return a.normalize(row), nil
}

// searchResult is the /search response, currencies section only.
type searchResult struct {
	Currencies []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
		Rank   int    `json:"rank"`
	} `json:"currencies"`
}

// SearchAssets returns identity-only records; the search endpoint carries
// no price data.
func (a *Adapter) SearchAssets(ctx context.Context, query string) ([]model.Asset, error) {
	path, err := a.client.Endpoint(registry.EndpointSearch, "")
	if err != nil {
		return nil, err
	}

	var res searchResult
	q := url.Values{"q": {query}, "c": {"currencies"}, "limit": {"25"}}
	if err := a.client.Get(ctx, path, q, &res); err != nil {
		return nil, err
	}

	assets := make([]model.Asset, 0, len(res.Currencies))
	for _, c := range res.Currencies {
		assets = append(assets, model.Asset{
			ID:     toCanonicalID(c.ID, c.Name),
			Name:   c.Name,
			Symbol: strings.ToLower(c.Symbol),
			Rank:   c.Rank,
			Source: a.cfg.ID,
		})
	}
	return assets, nil
}

// normalize maps one ticker row to the canonical record.
func (a *Adapter) normalize(r tickerRow) model.Asset {
	asset := model.Asset{
		ID:                toCanonicalID(r.ID, r.Name),
		Name:              r.Name,
		Symbol:            strings.ToLower(r.Symbol),
		Rank:              r.Rank,
		CirculatingSupply: r.CirculatingSupply,
		TotalSupply:       r.TotalSupply,
		MaxSupply:         r.MaxSupply,
		Source:            a.cfg.ID,
	}
	if t, err := time.Parse(time.RFC3339, r.LastUpdated); err == nil {
		asset.UpdatedAt = t.UTC()
	}

	q, ok := r.Quotes["USD"]
	if !ok {
		return asset
	}
	asset.PriceUSD = q.Price
	asset.MarketCap = q.MarketCap
	asset.Change24h = q.PercentChange24h
	asset.Volume24h = q.Volume24h
	asset.ATH = q.ATHPrice
	if q.ATHDate != nil {
		if t, err := time.Parse(time.RFC3339, *q.ATHDate); err == nil {
			t = t.UTC()
			asset.ATHDate = &t
		}
	}
	return asset
}

// nativeIDs maps canonical ids to CoinPaprika's compound ids for assets
// whose name slug does not round-trip cleanly.
var nativeIDs = map[string]string{
	"bitcoin":      "btc-bitcoin",
	"ethereum":     "eth-ethereum",
	"tether":       "usdt-tether",
	"binance-coin": "bnb-binance-coin",
	"solana":       "sol-solana",
	"ripple":       "xrp-xrp",
	"cardano":      "ada-cardano",
	"dogecoin":     "doge-dogecoin",
	"polkadot":     "dot-polkadot",
	"litecoin":     "ltc-litecoin",
}

// toNativeID converts a canonical id to CoinPaprika's id scheme. Unknown
// ids pass through unchanged so explicit native ids keep working.
func (a *Adapter) toNativeID(id string) string {
	if native, ok := nativeIDs[id]; ok {
		return native
	}
	return id
}

// toCanonicalID strips the symbol prefix from a compound CoinPaprika id,
// falling back to a slug of the display name.
func toCanonicalID(nativeID, name string) string {
	if _, rest, ok := strings.Cut(nativeID, "-"); ok && rest != "" {
		return rest
	}
	slug := strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(slug, " ", "-")
}

// intervalFor picks a history interval that keeps the series a manageable
// size for the requested range.
func intervalFor(rangeDays int) string {
	switch {
	case rangeDays <= 1:
		return "1h"
	case rangeDays <= 30:
		return "6h"
	default:
		return "1d"
	}
}
