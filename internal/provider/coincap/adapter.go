// Package coincap adapts the CoinCap v2 REST API to canonical records.
//
// CoinCap encodes every numeric field as a decimal string and exposes no
// all-time-high, total supply, or icon data; those canonical fields are
// explicitly absent (nil) in its output.
package coincap

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/market-gateway/internal/model"
	"github.com/rickgao/market-gateway/internal/provider"
	"github.com/rickgao/market-gateway/internal/registry"
)

// Adapter implements provider.Adapter for CoinCap.
type Adapter struct {
	cfg    registry.ProviderConfig
	client *provider.Client
}

// New creates a CoinCap adapter from its provider configuration.
func New(cfg registry.ProviderConfig, opts ...provider.ClientOption) *Adapter {
	return &Adapter{
		cfg:    cfg,
		client: provider.NewClient(cfg, opts...),
	}
}

func (a *Adapter) ID() string { return a.cfg.ID }

// assetRow is one element of the /assets response. All numerics arrive as
// decimal strings; null fields arrive as JSON null.
type assetRow struct {
	ID                string  `json:"id"`
	Rank              string  `json:"rank"`
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Supply            *string `json:"supply"`
	MaxSupply         *string `json:"maxSupply"`
	MarketCapUSD      *string `json:"marketCapUsd"`
	VolumeUSD24Hr     *string `json:"volumeUsd24Hr"`
	PriceUSD          string  `json:"priceUsd"`
	ChangePercent24Hr *string `json:"changePercent24Hr"`
}

type assetsEnvelope struct {
	Data      []assetRow `json:"data"`
	Timestamp int64      `json:"timestamp"`
}

type assetEnvelope struct {
	Data      assetRow `json:"data"`
	Timestamp int64    `json:"timestamp"`
}

func (a *Adapter) FetchTopAssets(ctx context.Context, limit int) ([]model.Asset, error) {
	path, err := a.client.Endpoint(registry.EndpointTopAssets, "")
	if err != nil {
		return nil, err
	}

	var env assetsEnvelope
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := a.client.Get(ctx, path, query, &env); err != nil {
		return nil, err
	}

	assets := make([]model.Asset, 0, len(env.Data))
	for i, r := range env.Data {
		assets = append(assets, a.normalize(r, env.Timestamp, i+1))
	}
	return assets, nil
}

// historyRow is one element of the /assets/{id}/history response.
type historyRow struct {
	PriceUSD string `json:"priceUsd"`
	Time     int64  `json:"time"`
}

type historyEnvelope struct {
	Data []historyRow `json:"data"`
}

// FetchHistory returns the price series only: CoinCap's history endpoint
// exposes neither market caps nor volumes, so those series stay empty.
func (a *Adapter) FetchHistory(ctx context.Context, assetID string, rangeDays int) (model.History, error) {
	path, err := a.client.Endpoint(registry.EndpointHistory, assetID)
	if err != nil {
		return model.History{}, err
	}

	end := time.Now()
	start := end.AddDate(0, 0, -rangeDays)
	query := url.Values{
		"interval": {intervalFor(rangeDays)},
		"start":    {strconv.FormatInt(start.UnixMilli(), 10)},
		"end":      {strconv.FormatInt(end.UnixMilli(), 10)},
	}

	var env historyEnvelope
	if err := a.client.Get(ctx, path, query, &env); err != nil {
		return model.History{}, err
	}

	prices := make([]model.PricePoint, 0, len(env.Data))
	for _, r := range env.Data {
		v, ok := parseFloat(r.PriceUSD)
		if !ok {
			continue
		}
		prices = append(prices, model.PricePoint{
			Timestamp: time.UnixMilli(r.Time).UTC(),
			Value:     v,
		})
	}

	return model.History{
		AssetID: assetID,
		Prices:  prices,
		Source:  a.cfg.ID,
	}, nil
}

func (a *Adapter) FetchAsset(ctx context.Context, assetID string) (model.Asset, error) {
	path, err := a.client.Endpoint(registry.EndpointAsset, assetID)
	if err != nil {
		return model.Asset{}, err
	}

	var env assetEnvelope
	if err := a.client.Get(ctx, path, nil, &env); err != nil {
		return model.Asset{}, err
	}
	return a.normalize(env.Data, env.Timestamp, 0), nil
}

func (a *Adapter) SearchAssets(ctx context.Context, query string) ([]model.Asset, error) {
	path, err := a.client.Endpoint(registry.EndpointSearch, "")
	if err != nil {
		return nil, err
	}

	var env assetsEnvelope
	q := url.Values{"search": {query}, "limit": {"25"}}
	if err := a.client.Get(ctx, path, q, &env); err != nil {
		return nil, err
	}

	assets := make([]model.Asset, 0, len(env.Data))
	for _, r := range env.Data {
		assets = append(assets, a.normalize(r, env.Timestamp, 0))
	}
	return assets, nil
}

// normalize maps one wire row to the canonical record. fallbackRank is used
// when the row's own rank does not parse.
func (a *Adapter) normalize(r assetRow, tsMillis int64, fallbackRank int) model.Asset {
	rank := fallbackRank
	if v, err := strconv.Atoi(r.Rank); err == nil {
		rank = v
	}

	price, _ := parseFloat(r.PriceUSD)

	updatedAt := time.Time{}
	if tsMillis > 0 {
		updatedAt = time.UnixMilli(tsMillis).UTC()
	}

	return model.Asset{
		ID:                r.ID,
		Name:              r.Name,
		Symbol:            r.Symbol,
		Rank:              rank,
		PriceUSD:          price,
		MarketCap:         parseOptional(r.MarketCapUSD),
		Change24h:         parseOptional(r.ChangePercent24Hr),
		Volume24h:         parseOptional(r.VolumeUSD24Hr),
		CirculatingSupply: parseOptional(r.Supply),
		MaxSupply:         parseOptional(r.MaxSupply),
		UpdatedAt:         updatedAt,
		Source:            a.cfg.ID,
	}
}

// intervalFor picks a CoinCap history interval that keeps the series a
// manageable size for the requested range.
func intervalFor(rangeDays int) string {
	switch {
	case rangeDays <= 1:
		return "m5"
	case rangeDays <= 7:
		return "h1"
	case rangeDays <= 90:
		return "h12"
	default:
		return "d1"
	}
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseOptional(s *string) *float64 {
	if s == nil {
		return nil
	}
	v, ok := parseFloat(*s)
	if !ok {
		return nil
	}
	return &v
}
