package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Validation errors.
var (
	ErrEmptySymbol      = errors.New("symbol is empty")
	ErrNegativeCost     = errors.New("average cost is negative")
	ErrNonPositivePrice = errors.New("price must be positive")
)

// -----------------------------------------------------------------------------
// Portfolio Types
// -----------------------------------------------------------------------------

// Holding is a static position in a portfolio. Holdings are loaded once by a
// holdings provider and only read afterwards.
type Holding struct {
	Symbol      string          `json:"symbol"`
	Quantity    decimal.Decimal `json:"quantity"`    // Signed; negative for short positions
	AverageCost decimal.Decimal `json:"averageCost"` // Non-negative
}

// Validate checks the holding invariants.
func (h Holding) Validate() error {
	if h.Symbol == "" {
		return ErrEmptySymbol
	}
	if h.AverageCost.IsNegative() {
		return ErrNegativeCost
	}
	return nil
}

// ValuationResult is the derived view of one holding against the latest price.
// CurrentPrice, TotalValue and DailyPnl are either all valid or all absent.
// DailyPnlPercent is additionally absent when AverageCost is zero.
type ValuationResult struct {
	Symbol          string              `json:"symbol"`
	Quantity        decimal.Decimal     `json:"quantity"`
	AverageCost     decimal.Decimal     `json:"averageCost"`
	CurrentPrice    decimal.NullDecimal `json:"currentPrice"`
	TotalValue      decimal.NullDecimal `json:"totalValue"`
	DailyPnl        decimal.NullDecimal `json:"dailyPnl"`
	DailyPnlPercent decimal.NullDecimal `json:"dailyPnlPercent"`
}

// Priced reports whether a current price was available for the holding.
func (v ValuationResult) Priced() bool {
	return v.CurrentPrice.Valid
}

// -----------------------------------------------------------------------------
// Stream Types
// -----------------------------------------------------------------------------

// Tick is one inbound price observation for a symbol.
type Tick struct {
	Symbol     string
	Price      decimal.Decimal
	ObservedAt time.Time // Local arrival time
}

// Validate checks the tick invariants.
func (t Tick) Validate() error {
	if t.Symbol == "" {
		return ErrEmptySymbol
	}
	if !t.Price.IsPositive() {
		return ErrNonPositivePrice
	}
	return nil
}

// PriceSnapshot maps a symbol to its latest known price.
type PriceSnapshot map[string]decimal.Decimal

// Clone returns an independent copy of the snapshot.
func (s PriceSnapshot) Clone() PriceSnapshot {
	out := make(PriceSnapshot, len(s))
	for sym, p := range s {
		out[sym] = p
	}
	return out
}

// Lookup returns the price for a symbol as an optional value.
func (s PriceSnapshot) Lookup(symbol string) decimal.NullDecimal {
	p, ok := s[symbol]
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(p)
}

// ConnectionStatus is the lifecycle state of the upstream price feed.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

// String returns the lower-case status name.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
