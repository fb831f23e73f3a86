package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visitmgr/visitmgr/internal/platform/db"
	"github.com/visitmgr/visitmgr/internal/platform/middleware"
	"github.com/visitmgr/visitmgr/pkg/pagination"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *repoPG) Insert(ctx context.Context, e *Entry) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO activity_log (actor, description, occurred_at) VALUES ($1, $2, $3) RETURNING id`,
		e.Actor, e.Description, e.OccurredAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, actor string, limit, offset int) ([]*Entry, int, error) {
	ds := db.Dialect.From("activity_log").Prepared(true)
	if actor != "" {
		ds = ds.Where(goqu.C("actor").Eq(actor))
	}

	total, err := db.Count(ctx, r.conn(ctx), ds)
	if err != nil {
		return nil, 0, err
	}

	page := pagination.Params{Limit: limit, Offset: offset}
	query, args, err := db.Build(page.Apply(ds.
		Select("id", "actor", "description", "occurred_at").
		Order(goqu.C("occurred_at").Desc(), goqu.C("id").Desc())))
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[Entry])
	if err != nil {
		return nil, 0, fmt.Errorf("scan activity: %w", err)
	}
	return items, total, nil
}

func (r *repoPG) InsertRequest(ctx context.Context, e middleware.RequestLogEntry) error {
	var rid *string
	if e.RequestID != "" {
		rid = &e.RequestID
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO request_log (user_id, message, start_utc, end_utc, date, request_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.UserID, e.Message, e.StartUTC, e.EndUTC, e.StartUTC.UTC().Truncate(24*time.Hour), rid)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}
