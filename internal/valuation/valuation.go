package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/rickgao/pricestream/internal/model"
)

// percentPrecision is the number of decimal places kept by DailyPnlPercent.
const percentPrecision = 8

var hundred = decimal.NewFromInt(100)

// TotalValue returns quantity × price, or absent when price is absent.
func TotalValue(quantity decimal.Decimal, price decimal.NullDecimal) decimal.NullDecimal {
	if !price.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(quantity.Mul(price.Decimal))
}

// DailyPnl returns quantity × (price − averageCost), or absent when price is absent.
func DailyPnl(quantity, averageCost decimal.Decimal, price decimal.NullDecimal) decimal.NullDecimal {
	if !price.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(quantity.Mul(price.Decimal.Sub(averageCost)))
}

// DailyPnlPercent returns ((price − averageCost) / averageCost) × 100.
// The result is absent when price is absent or averageCost is zero.
func DailyPnlPercent(averageCost decimal.Decimal, price decimal.NullDecimal) decimal.NullDecimal {
	if !price.Valid || averageCost.IsZero() {
		return decimal.NullDecimal{}
	}
	pct := price.Decimal.Sub(averageCost).Mul(hundred).DivRound(averageCost, percentPrecision)
	return decimal.NewNullDecimal(pct)
}

// ItemMetrics combines a holding with a possibly missing price.
func ItemMetrics(h model.Holding, price decimal.NullDecimal) model.ValuationResult {
	return model.ValuationResult{
		Symbol:          h.Symbol,
		Quantity:        h.Quantity,
		AverageCost:     h.AverageCost,
		CurrentPrice:    price,
		TotalValue:      TotalValue(h.Quantity, price),
		DailyPnl:        DailyPnl(h.Quantity, h.AverageCost, price),
		DailyPnlPercent: DailyPnlPercent(h.AverageCost, price),
	}
}

// PortfolioMetrics maps ItemMetrics over holdings, preserving input order.
// Symbols missing from prices yield results with all derived fields absent.
func PortfolioMetrics(holdings []model.Holding, prices model.PriceSnapshot) []model.ValuationResult {
	results := make([]model.ValuationResult, len(holdings))
	for i, h := range holdings {
		results[i] = ItemMetrics(h, prices.Lookup(h.Symbol))
	}
	return results
}

// TotalPortfolioValue sums quantity × price over holdings that have a price.
func TotalPortfolioValue(holdings []model.Holding, prices model.PriceSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holdings {
		if v := TotalValue(h.Quantity, prices.Lookup(h.Symbol)); v.Valid {
			total = total.Add(v.Decimal)
		}
	}
	return total
}

// TotalPortfolioPnl sums the daily P&L over holdings that have a price.
func TotalPortfolioPnl(holdings []model.Holding, prices model.PriceSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holdings {
		if v := DailyPnl(h.Quantity, h.AverageCost, prices.Lookup(h.Symbol)); v.Valid {
			total = total.Add(v.Decimal)
		}
	}
	return total
}
