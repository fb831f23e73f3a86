package db

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

// Dialect builds Postgres statements. Datasets must be made Prepared so
// values travel as $n arguments rather than inline literals.
var Dialect = goqu.Dialect("postgres")

// SQLer is implemented by every goqu dataset.
type SQLer interface {
	ToSQL() (string, []interface{}, error)
}

// Build renders a dataset for pgx.
func Build(ds SQLer) (string, []interface{}, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return query, args, nil
}

// Count runs SELECT COUNT(*) over the filters of ds, ignoring its
// ordering and paging.
func Count(ctx context.Context, q Querier, ds *goqu.SelectDataset) (int, error) {
	query, args, err := Build(ds.ClearOrder().ClearLimit().ClearOffset().Select(goqu.COUNT(goqu.Star())))
	if err != nil {
		return 0, err
	}
	var total int
	if err := q.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return total, nil
}
