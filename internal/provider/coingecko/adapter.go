// Package coingecko adapts the CoinGecko v3 REST API to canonical records.
package coingecko

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/market-gateway/internal/model"
	"github.com/rickgao/market-gateway/internal/provider"
	"github.com/rickgao/market-gateway/internal/registry"
)

// Adapter implements provider.Adapter for CoinGecko.
type Adapter struct {
	cfg    registry.ProviderConfig
	client *provider.Client
	logger *slog.Logger
}

// New creates a CoinGecko adapter from its provider configuration.
func New(cfg registry.ProviderConfig, opts ...provider.ClientOption) *Adapter {
	return &Adapter{
		cfg:    cfg,
		client: provider.NewClient(cfg, opts...),
		logger: slog.Default(),
	}
}

func (a *Adapter) ID() string { return a.cfg.ID }

// marketRow is one element of the /coins/markets response.
type marketRow struct {
	ID                string   `json:"id"`
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	Image             string   `json:"image"`
	CurrentPrice      float64  `json:"current_price"`
	MarketCap         *float64 `json:"market_cap"`
	MarketCapRank     int      `json:"market_cap_rank"`
	TotalVolume       *float64 `json:"total_volume"`
	PriceChange24h    *float64 `json:"price_change_percentage_24h"`
	CirculatingSupply *float64 `json:"circulating_supply"`
	TotalSupply       *float64 `json:"total_supply"`
	MaxSupply         *float64 `json:"max_supply"`
	ATH               *float64 `json:"ath"`
	ATHDate           *string  `json:"ath_date"`
	LastUpdated       string   `json:"last_updated"`
}

func (a *Adapter) FetchTopAssets(ctx context.Context, limit int) ([]model.Asset, error) {
	path, err := a.client.Endpoint(registry.EndpointTopAssets, "")
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"vs_currency": {"usd"},
		"order":       {"market_cap_desc"},
		"per_page":    {strconv.Itoa(limit)},
		"page":        {"1"},
		"sparkline":   {"false"},
	}

	var rows []marketRow
	if err := a.client.Get(ctx, path, query, &rows); err != nil {
		return nil, err
	}

	assets := make([]model.Asset, 0, len(rows))
	for _, r := range rows {
		assets = append(assets, a.normalize(r))
	}
	return assets, nil
}

// chart is the /coins/{id}/market_chart response: parallel [ms, value] pairs.
type chart struct {
	Prices       [][]float64 `json:"prices"`
	MarketCaps   [][]float64 `json:"market_caps"`
	TotalVolumes [][]float64 `json:"total_volumes"`
}

func (a *Adapter) FetchHistory(ctx context.Context, assetID string, rangeDays int) (model.History, error) {
	path, err := a.client.Endpoint(registry.EndpointHistory, assetID)
	if err != nil {
		return model.History{}, err
	}

	query := url.Values{
		"vs_currency": {"usd"},
		"days":        {strconv.Itoa(rangeDays)},
	}

	var c chart
	if err := a.client.Get(ctx, path, query, &c); err != nil {
		return model.History{}, err
	}

	return model.History{
		AssetID:    assetID,
		Prices:     pairsToPoints(c.Prices),
		MarketCaps: pairsToPoints(c.MarketCaps),
		Volumes:    pairsToPoints(c.TotalVolumes),
		Source:     a.cfg.ID,
	}, nil
}

// coinDetail is the /coins/{id} response, trimmed to the fields we map.
type coinDetail struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Image  struct {
		Small string `json:"small"`
	} `json:"image"`
	MarketCapRank int `json:"market_cap_rank"`
	MarketData    struct {
		CurrentPrice      map[string]float64  `json:"current_price"`
		MarketCap         map[string]float64  `json:"market_cap"`
		TotalVolume       map[string]float64  `json:"total_volume"`
		PriceChange24h    *float64            `json:"price_change_percentage_24h"`
		CirculatingSupply *float64            `json:"circulating_supply"`
		TotalSupply       *float64            `json:"total_supply"`
		MaxSupply         *float64            `json:"max_supply"`
		ATH               map[string]float64  `json:"ath"`
		ATHDate           map[string]string   `json:"ath_date"`
	} `json:"market_data"`
	LastUpdated string `json:"last_updated"`
}

func (a *Adapter) FetchAsset(ctx context.Context, assetID string) (model.Asset, error) {
	path, err := a.client.Endpoint(registry.EndpointAsset, assetID)
	if err != nil {
		return model.Asset{}, err
	}

	query := url.Values{
		"localization":   {"false"},
		"tickers":        {"false"},
		"community_data": {"false"},
		"developer_data": {"false"},
	}

	var d coinDetail
	if err := a.client.Get(ctx, path, query, &d); err != nil {
		return model.Asset{}, err
	}
	if d.ID == "" {
		return model.Asset{}, &provider.MalformedError{
			Provider: a.cfg.ID,
			Cause:    fmt.Errorf("coin detail missing id"),
		}
	}

	asset := model.Asset{
		ID:                d.ID,
		Name:              d.Name,
		Symbol:            d.Symbol,
		Rank:              d.MarketCapRank,
		PriceUSD:          d.MarketData.CurrentPrice["usd"],
		Change24h:         d.MarketData.PriceChange24h,
		CirculatingSupply: d.MarketData.CirculatingSupply,
		TotalSupply:       d.MarketData.TotalSupply,
		MaxSupply:         d.MarketData.MaxSupply,
		IconURL:           d.Image.Small,
		UpdatedAt:         parseTime(d.LastUpdated),
		Source:            a.cfg.ID,
	}
	if v, ok := d.MarketData.MarketCap["usd"]; ok {
		asset.MarketCap = model.Float(v)
	}
	if v, ok := d.MarketData.TotalVolume["usd"]; ok {
		asset.Volume24h = model.Float(v)
	}
	if v, ok := d.MarketData.ATH["usd"]; ok {
		asset.ATH = model.Float(v)
	}
	if s, ok := d.MarketData.ATHDate["usd"]; ok {
		if t := parseTime(s); !t.IsZero() {
			asset.ATHDate = &t
		}
	}
	return asset, nil
}

// searchResult is the /search response, coins section only.
type searchResult struct {
	Coins []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Symbol        string `json:"symbol"`
		MarketCapRank int    `json:"market_cap_rank"`
		Thumb         string `json:"thumb"`
	} `json:"coins"`
}

// SearchAssets returns identity-only records: CoinGecko's search endpoint
// carries no prices, so PriceUSD is zero and all optional fields are absent.
func (a *Adapter) SearchAssets(ctx context.Context, query string) ([]model.Asset, error) {
	path, err := a.client.Endpoint(registry.EndpointSearch, "")
	if err != nil {
		return nil, err
	}

	var res searchResult
	if err := a.client.Get(ctx, path, url.Values{"query": {query}}, &res); err != nil {
		return nil, err
	}

	assets := make([]model.Asset, 0, len(res.Coins))
	for _, c := range res.Coins {
		assets = append(assets, model.Asset{
			ID:      c.ID,
			Name:    c.Name,
			Symbol:  c.Symbol,
			Rank:    c.MarketCapRank,
			IconURL: c.Thumb,
			Source:  a.cfg.ID,
		})
	}
	return assets, nil
}

// normalize maps one market row to the canonical record.
func (a *Adapter) normalize(r marketRow) model.Asset {
	asset := model.Asset{
		ID:                r.ID,
		Name:              r.Name,
		Symbol:            r.Symbol,
		Rank:              r.MarketCapRank,
		PriceUSD:          r.CurrentPrice,
		MarketCap:         r.MarketCap,
		Change24h:         r.PriceChange24h,
		Volume24h:         r.TotalVolume,
		CirculatingSupply: r.CirculatingSupply,
		TotalSupply:       r.TotalSupply,
		MaxSupply:         r.MaxSupply,
		ATH:               r.ATH,
		IconURL:           r.Image,
		UpdatedAt:         parseTime(r.LastUpdated),
		Source:            a.cfg.ID,
	}
	if r.ATHDate != nil {
		if t := parseTime(*r.ATHDate); !t.IsZero() {
			asset.ATHDate = &t
		}
	}
	return asset
}

// pairsToPoints converts CoinGecko's [ms, value] pairs to PricePoints.
func pairsToPoints(pairs [][]float64) []model.PricePoint {
	points := make([]model.PricePoint, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 {
			continue
		}
		points = append(points, model.PricePoint{
			Timestamp: time.UnixMilli(int64(p[0])).UTC(),
			Value:     p[1],
		})
	}
	return points
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
