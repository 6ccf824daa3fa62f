// Package model defines shared data types used across the price stream engine.
//
// Conventions:
//   - Prices, quantities and costs: shopspring decimal.Decimal (never float64)
//   - Optional derived values: decimal.NullDecimal (Valid=false means absent)
//   - Symbols: upper-case strings, unique within a portfolio
package model
