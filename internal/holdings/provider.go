package holdings

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rickgao/pricestream/internal/model"
)

// ErrDuplicateSymbol is returned when a portfolio lists a symbol twice.
var ErrDuplicateSymbol = errors.New("duplicate symbol")

// Provider fetches the current holdings.
type Provider interface {
	Fetch(ctx context.Context) ([]model.Holding, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) ([]model.Holding, error)

// Fetch calls f.
func (f ProviderFunc) Fetch(ctx context.Context) ([]model.Holding, error) {
	return f(ctx)
}

// StaticProvider returns a fixed list of holdings.
type StaticProvider struct {
	holdings []model.Holding
}

// NewStaticProvider creates a provider serving a copy of holdings.
func NewStaticProvider(holdings []model.Holding) *StaticProvider {
	return &StaticProvider{holdings: append([]model.Holding(nil), holdings...)}
}

// Fetch returns a copy of the configured holdings.
func (p *StaticProvider) Fetch(ctx context.Context) ([]model.Holding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]model.Holding(nil), p.holdings...), nil
}

// DemoHoldings is the portfolio served by the static source. Its symbols
// match the synthetic source's default symbol set.
func DemoHoldings() []model.Holding {
	return []model.Holding{
		{Symbol: "AAPL", Quantity: decimal.NewFromInt(100), AverageCost: decimal.NewFromInt(150)},
		{Symbol: "GOOGL", Quantity: decimal.NewFromInt(20), AverageCost: decimal.RequireFromString("140.50")},
		{Symbol: "MSFT", Quantity: decimal.NewFromInt(50), AverageCost: decimal.NewFromInt(380)},
		{Symbol: "AMZN", Quantity: decimal.NewFromInt(30), AverageCost: decimal.RequireFromString("172.25")},
		{Symbol: "TSLA", Quantity: decimal.NewFromInt(-10), AverageCost: decimal.NewFromInt(240)},
	}
}

// Validate checks every holding and rejects duplicate symbols.
func Validate(holdings []model.Holding) error {
	seen := make(map[string]struct{}, len(holdings))
	for i, h := range holdings {
		if err := h.Validate(); err != nil {
			return fmt.Errorf("holding %d (%s): %w", i, h.Symbol, err)
		}
		if _, dup := seen[h.Symbol]; dup {
			return fmt.Errorf("holding %d: %w: %s", i, ErrDuplicateSymbol, h.Symbol)
		}
		seen[h.Symbol] = struct{}{}
	}
	return nil
}

// record is the serialized form of a holding in files. Numbers are kept as
// strings so no precision is lost on the way to decimal.
type record struct {
	Symbol      string `yaml:"symbol"`
	Quantity    string `yaml:"quantity"`
	AverageCost string `yaml:"averageCost"`
}

func (r record) holding() (model.Holding, error) {
	qty, err := decimal.NewFromString(r.Quantity)
	if err != nil {
		return model.Holding{}, fmt.Errorf("%s: quantity %q: %w", r.Symbol, r.Quantity, err)
	}

	cost := decimal.Zero
	if r.AverageCost != "" {
		cost, err = decimal.NewFromString(r.AverageCost)
		if err != nil {
			return model.Holding{}, fmt.Errorf("%s: averageCost %q: %w", r.Symbol, r.AverageCost, err)
		}
	}

	return model.Holding{Symbol: r.Symbol, Quantity: qty, AverageCost: cost}, nil
}
