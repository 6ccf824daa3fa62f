// Package report renders portfolio valuations as Markdown for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/rickgao/pricestream/internal/model"
	"github.com/rickgao/pricestream/internal/valuation"
)

// DefaultCurrency is used when no currency is configured.
const DefaultCurrency = money.USD

// absent is printed for values that cannot be computed.
const absent = "n/a"

// Options controls rendering.
type Options struct {
	Currency string                   // ISO 4217 code; empty means DefaultCurrency
	Favorite func(symbol string) bool // Marks watchlisted symbols; may be nil
}

func (o Options) currency() string {
	if o.Currency == "" {
		return DefaultCurrency
	}
	return o.Currency
}

// Money formats amount in currency, rounded to the currency's minor unit.
// Unknown currencies fall back to the plain amount followed by the code.
func Money(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}

// OptionalMoney formats v, or a placeholder when it is absent.
func OptionalMoney(v decimal.NullDecimal, currency string) string {
	if !v.Valid {
		return absent
	}
	return Money(v.Decimal, currency)
}

// Percent formats v with two decimals, or a placeholder when it is absent.
func Percent(v decimal.NullDecimal) string {
	if !v.Valid {
		return absent
	}
	return v.Decimal.StringFixed(2) + "%"
}

// Signed prefixes positive amounts with "+".
func Signed(s string, v decimal.Decimal) string {
	if v.IsPositive() {
		return "+" + s
	}
	return s
}

// Summary writes the valuation table followed by the portfolio totals.
func Summary(w io.Writer, s valuation.Summary, opts Options) error {
	var b strings.Builder
	cur := opts.currency()

	fmt.Fprintln(&b, "| | Symbol | Quantity | Avg Cost | Price | Value | P&L | P&L % |")
	fmt.Fprintln(&b, "|:---:|:---|---:|---:|---:|---:|---:|---:|")
	for _, item := range s.Items {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			marker(opts, item.Symbol),
			item.Symbol,
			item.Quantity.String(),
			Money(item.AverageCost, cur),
			OptionalMoney(item.CurrentPrice, cur),
			OptionalMoney(item.TotalValue, cur),
			signedOptional(item.DailyPnl, cur),
			Percent(item.DailyPnlPercent),
		)
	}

	fmt.Fprintf(&b, "\nTotal value: %s\n", Money(s.TotalValue, cur))
	fmt.Fprintf(&b, "Total P&L:   %s\n", Signed(Money(s.TotalPnl, cur), s.TotalPnl))
	if s.Unpriced > 0 {
		fmt.Fprintf(&b, "Awaiting prices for %d of %d holdings\n", s.Unpriced, len(s.Items))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Prices writes the latest price per symbol in the order given.
func Prices(w io.Writer, symbols []string, prices model.PriceSnapshot, opts Options) error {
	var b strings.Builder
	cur := opts.currency()

	fmt.Fprintln(&b, "| | Symbol | Price |")
	fmt.Fprintln(&b, "|:---:|:---|---:|")
	for _, sym := range symbols {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", marker(opts, sym), sym, OptionalMoney(prices.Lookup(sym), cur))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func signedOptional(v decimal.NullDecimal, currency string) string {
	if !v.Valid {
		return absent
	}
	return Signed(Money(v.Decimal, currency), v.Decimal)
}

func marker(opts Options, symbol string) string {
	if opts.Favorite != nil && opts.Favorite(symbol) {
		return "*"
	}
	return " "
}
