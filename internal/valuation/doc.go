// Package valuation derives per-position and aggregate portfolio metrics from
// holdings and the latest known prices.
//
// Every function here is pure and total: a missing price is not an error, it
// propagates as an absent (decimal.NullDecimal{Valid: false}) result. The
// functions hold no state and take no locks, so they are safe to call on every
// price update.
package valuation
