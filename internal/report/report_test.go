package report

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/pricestream/internal/model"
	"github.com/rickgao/pricestream/internal/valuation"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"17500", "USD", "$17,500.00"},
		{"0", "USD", "$0.00"},
		{"175.005", "USD", "$175.01"},
		{"-2500", "USD", "-$2,500.00"},
		{"12.5", "XYZ", "12.50 XYZ"},
	}

	for _, tt := range tests {
		t.Run(tt.amount+" "+tt.currency, func(t *testing.T) {
			assert.Equal(t, tt.want, Money(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
}

func TestOptionalValues(t *testing.T) {
	assert.Equal(t, "n/a", OptionalMoney(decimal.NullDecimal{}, "USD"))
	assert.Equal(t, "n/a", Percent(decimal.NullDecimal{}))
	assert.Equal(t, "16.67%", Percent(decimal.NewNullDecimal(decimal.RequireFromString("16.6667"))))
	assert.Equal(t, "+$1.00", Signed("$1.00", decimal.NewFromInt(1)))
	assert.Equal(t, "$0.00", Signed("$0.00", decimal.Zero))
}

func TestSummary(t *testing.T) {
	holdings := []model.Holding{
		{Symbol: "AAPL", Quantity: decimal.NewFromInt(100), AverageCost: decimal.NewFromInt(150)},
		{Symbol: "GOOGL", Quantity: decimal.NewFromInt(10), AverageCost: decimal.NewFromInt(2800)},
	}
	prices := model.PriceSnapshot{"AAPL": decimal.NewFromInt(175)}
	s := valuation.Summarize(holdings, prices)

	var b strings.Builder
	err := Summary(&b, s, Options{Favorite: func(sym string) bool { return sym == "AAPL" }})
	require.NoError(t, err)
	out := b.String()

	assert.Contains(t, out, "| * | AAPL | 100 | $150.00 | $175.00 | $17,500.00 | +$2,500.00 | 16.67% |")
	assert.Contains(t, out, "|   | GOOGL | 10 | $2,800.00 | n/a | n/a | n/a | n/a |")
	assert.Contains(t, out, "Total value: $17,500.00")
	assert.Contains(t, out, "Total P&L:   +$2,500.00")
	assert.Contains(t, out, "Awaiting prices for 1 of 2 holdings")
}

func TestPrices(t *testing.T) {
	prices := model.PriceSnapshot{"MSFT": decimal.RequireFromString("410.5")}

	var b strings.Builder
	require.NoError(t, Prices(&b, []string{"MSFT", "TSLA"}, prices, Options{}))

	assert.Contains(t, b.String(), "|   | MSFT | $410.50 |")
	assert.Contains(t, b.String(), "|   | TSLA | n/a |")
}
