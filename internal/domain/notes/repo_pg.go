package notes

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visitmgr/visitmgr/internal/domain/scheduling"
	"github.com/visitmgr/visitmgr/internal/platform/db"
	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
	"github.com/visitmgr/visitmgr/pkg/pagination"
)

var noteCols = []interface{}{"notes_id", "visit_id", "visit_notes", "rule_id", "finalized"}

const noteColList = `notes_id, visit_id, visit_notes, rule_id, finalized`

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *repoPG) LockVisitStatus(ctx context.Context, visitID int) (scheduling.Status, error) {
	var status scheduling.Status
	err := r.conn(ctx).QueryRow(ctx, `SELECT status FROM visits WHERE visit_id = $1 FOR SHARE`, visitID).Scan(&status)
	if db.IsNoRows(err) {
		return "", apperrors.NewNotFoundError(msgVisitNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lock visit: %w", err)
	}
	return status, nil
}

func (r *repoPG) RuleExists(ctx context.Context, ruleID int) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rules WHERE id = $1)`, ruleID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check rule: %w", err)
	}
	return exists, nil
}

func (r *repoPG) Create(ctx context.Context, n *VisitNote) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visit_notes (visit_id, visit_notes, rule_id, finalized)
		VALUES ($1, $2, $3, FALSE)
		RETURNING notes_id`,
		n.VisitID, n.VisitNotes, n.RuleID).Scan(&n.NotesID)
	switch {
	case db.IsUniqueViolation(err):
		return apperrors.NewConflictError(msgNoteExists)
	case db.IsForeignKeyViolation(err):
		return apperrors.NewInvalidInputError(msgInvalidRule)
	case err != nil:
		return fmt.Errorf("insert visit note: %w", db.InputError(err))
	}
	n.Finalized = false
	return nil
}

func (r *repoPG) getOne(ctx context.Context, where string, arg int) (*VisitNote, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+noteColList+` FROM visit_notes WHERE `+where+` = $1`, arg)
	if err != nil {
		return nil, fmt.Errorf("get visit note: %w", err)
	}
	n, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[VisitNote])
	if db.IsNoRows(err) {
		return nil, apperrors.NewNotFoundError(msgNoteNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan visit note: %w", err)
	}
	return n, nil
}

func (r *repoPG) GetByID(ctx context.Context, id int) (*VisitNote, error) {
	return r.getOne(ctx, "notes_id", id)
}

func (r *repoPG) GetByVisit(ctx context.Context, visitID int) (*VisitNote, error) {
	return r.getOne(ctx, "visit_id", visitID)
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*VisitNote, int, error) {
	ds := db.Dialect.From("visit_notes").Prepared(true)
	if f.Finalized != nil {
		ds = ds.Where(goqu.C("finalized").Eq(*f.Finalized))
	}
	if f.VisitID > 0 {
		ds = ds.Where(goqu.C("visit_id").Eq(f.VisitID))
	}

	total, err := db.Count(ctx, r.conn(ctx), ds)
	if err != nil {
		return nil, 0, err
	}

	page := pagination.Params{Limit: limit, Offset: offset}
	query, args, err := db.Build(page.Apply(ds.Select(noteCols...).
		Order(goqu.C("notes_id").Desc())))
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list visit notes: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[VisitNote])
	if err != nil {
		return nil, 0, fmt.Errorf("scan visit notes: %w", err)
	}
	return items, total, nil
}

func (r *repoPG) UpdateDraft(ctx context.Context, n *VisitNote) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE visit_notes SET visit_notes = $2, rule_id = $3
		WHERE notes_id = $1 AND NOT finalized`,
		n.NotesID, n.VisitNotes, n.RuleID)
	if db.IsForeignKeyViolation(err) {
		return false, apperrors.NewInvalidInputError(msgInvalidRule)
	}
	if err != nil {
		return false, fmt.Errorf("update visit note: %w", db.InputError(err))
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) DeleteDraft(ctx context.Context, id int) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM visit_notes WHERE notes_id = $1 AND NOT finalized`, id)
	if err != nil {
		return false, fmt.Errorf("delete visit note: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
