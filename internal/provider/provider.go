package provider

import (
	"context"

	"github.com/rickgao/market-gateway/internal/model"
)

// Adapter translates one upstream provider's wire format into canonical
// records.
type Adapter interface {
	// ID returns the provider id this adapter serves.
	ID() string

	// FetchTopAssets returns up to limit assets ordered by market cap rank.
	FetchTopAssets(ctx context.Context, limit int) ([]model.Asset, error)

	// FetchHistory returns price/market-cap/volume series covering the
	// last rangeDays days.
	FetchHistory(ctx context.Context, assetID string, rangeDays int) (model.History, error)

	// FetchAsset returns a single asset by id.
	FetchAsset(ctx context.Context, assetID string) (model.Asset, error)

	// SearchAssets returns assets matching query.
	SearchAssets(ctx context.Context, query string) ([]model.Asset, error)
}
