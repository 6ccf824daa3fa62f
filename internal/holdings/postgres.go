package holdings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/pricestream/internal/model"
)

// Querier is the subset of *pgxpool.Pool used by PostgresProvider.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresProvider reads holdings from a table with columns
// (symbol text, quantity numeric, average_cost numeric).
type PostgresProvider struct {
	db    Querier
	query string
}

// NewPostgresProvider creates a provider reading the given table.
func NewPostgresProvider(db Querier, table string) *PostgresProvider {
	return &PostgresProvider{
		db:    db,
		query: SelectQuery(table),
	}
}

// SelectQuery returns the statement used to read holdings from table.
func SelectQuery(table string) string {
	return fmt.Sprintf(
		"SELECT symbol, quantity::text, average_cost::text FROM %s ORDER BY symbol",
		pgx.Identifier{table}.Sanitize(),
	)
}

// Fetch runs the select and converts every row.
func (p *PostgresProvider) Fetch(ctx context.Context) ([]model.Holding, error) {
	rows, err := p.db.Query(ctx, p.query)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}

	holdings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Holding, error) {
		var r record
		if err := row.Scan(&r.Symbol, &r.Quantity, &r.AverageCost); err != nil {
			return model.Holding{}, err
		}
		return r.holding()
	})
	if err != nil {
		return nil, fmt.Errorf("scan holdings: %w", err)
	}

	return holdings, nil
}
