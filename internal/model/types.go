package model

import "time"

// -----------------------------------------------------------------------------
// Canonical Types
// -----------------------------------------------------------------------------

// Asset is the unified market-data record every adapter normalizes into.
type Asset struct {
	ID       string  `json:"id"`     // Stable identifier (e.g., "bitcoin")
	Name     string  `json:"name"`   // Display name (e.g., "Bitcoin")
	Symbol   string  `json:"symbol"` // Ticker symbol (e.g., "BTC")
	Rank     int     `json:"rank"`   // Market cap rank (0 = unknown)
	PriceUSD float64 `json:"price_usd"`

	MarketCap *float64 `json:"market_cap"` // nil when provider omits it
	Change24h *float64 `json:"change_24h"` // 24h percentage change
	Volume24h *float64 `json:"volume_24h"`

	CirculatingSupply *float64 `json:"circulating_supply"`
	TotalSupply       *float64 `json:"total_supply"`
	MaxSupply         *float64 `json:"max_supply"`

	ATH     *float64   `json:"ath"`      // All-time-high price
	ATHDate *time.Time `json:"ath_date"` // nil when ATH unknown

	IconURL   string    `json:"icon_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source"` // Provider ID that produced this record
}

// PricePoint is a single (timestamp, value) observation in a series.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// History holds three parallel time series for one asset.
// Each series is ascending by timestamp with no fixed interval.
type History struct {
	AssetID    string       `json:"asset_id"`
	Prices     []PricePoint `json:"prices"`
	MarketCaps []PricePoint `json:"market_caps"`
	Volumes    []PricePoint `json:"volumes"`
	Source     string       `json:"source"`
}

// Tick is a discrete live price event pushed by the upstream stream.
type Tick struct {
	AssetID    string    `json:"asset_id"`
	PriceUSD   float64   `json:"price_usd"`
	Change24h  *float64  `json:"change_24h,omitempty"`
	Volume24h  *float64  `json:"volume_24h,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Float returns a pointer to v. Convenience for building optional fields.
func Float(v float64) *float64 {
	return &v
}
