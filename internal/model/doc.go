// Package model defines the canonical data types shared across the gateway.
//
// Conventions:
//   - Prices: float64 in USD (the base unit all adapters normalize to)
//   - Timestamps: time.Time in UTC
//   - Optional numeric fields: *float64 — nil means the upstream provider
//     does not expose the field, which is distinct from a zero value
package model
