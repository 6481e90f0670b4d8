// Package model defines the shared domain types for the Kalshi core.
//
// Conventions:
//   - Prices: integer cents, valid range 1-99 for a contract price
//   - Money totals: Cents (int64, may be negative)
//   - Timestamps: time.Time in API types, nanoseconds on disk
//   - IDs: string tickers, uuid.UUID for orders and fills
package model
