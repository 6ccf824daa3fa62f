package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/rickgao/pricestream/internal/model"
)

// Summary is a complete valuation of a portfolio against one price snapshot.
type Summary struct {
	Items      []model.ValuationResult `json:"items"`
	TotalValue decimal.Decimal         `json:"totalValue"`
	TotalPnl   decimal.Decimal         `json:"totalPnl"`
	Priced     int                     `json:"priced"`
	Unpriced   int                     `json:"unpriced"`
}

// Summarize values every holding and the portfolio totals.
func Summarize(holdings []model.Holding, prices model.PriceSnapshot) Summary {
	items := PortfolioMetrics(holdings, prices)

	priced := 0
	for _, item := range items {
		if item.Priced() {
			priced++
		}
	}

	return Summary{
		Items:      items,
		TotalValue: TotalPortfolioValue(holdings, prices),
		TotalPnl:   TotalPortfolioPnl(holdings, prices),
		Priced:     priced,
		Unpriced:   len(items) - priced,
	}
}
