package monitor

import (
	"time"

	"github.com/rickgao/market-gateway/internal/model"
)

// PlaceholderSource marks records that did not come from a live provider.
const PlaceholderSource = "placeholder"

// Placeholder returns a fixed synthetic dataset served only when no poll
// cycle has ever succeeded. Source is set so callers can distinguish it
// from live data.
func Placeholder() []model.Asset {
	now := time.Now().UTC()
	return []model.Asset{
		{
			ID: "bitcoin", Name: "Bitcoin", Symbol: "btc", Rank: 1,
			PriceUSD:  65000,
			MarketCap: model.Float(1.28e12),
			Change24h: model.Float(0),
			UpdatedAt: now,
			Source:    PlaceholderSource,
		},
		{
			ID: "ethereum", Name: "Ethereum", Symbol: "eth", Rank: 2,
			PriceUSD:  3200,
			MarketCap: model.Float(3.85e11),
			Change24h: model.Float(0),
			UpdatedAt: now,
			Source:    PlaceholderSource,
		},
		{
			ID: "tether", Name: "Tether", Symbol: "usdt", Rank: 3,
			PriceUSD:  1,
			MarketCap: model.Float(1.1e11),
			Change24h: model.Float(0),
			UpdatedAt: now,
			Source:    PlaceholderSource,
		},
		{
			ID: "solana", Name: "Solana", Symbol: "sol", Rank: 4,
			PriceUSD:  150,
			MarketCap: model.Float(7.0e10),
			Change24h: model.Float(0),
			UpdatedAt: now,
			Source:    PlaceholderSource,
		},
	}
}
