package billing

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visitmgr/visitmgr/internal/platform/db"
	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
	"github.com/visitmgr/visitmgr/pkg/pagination"
)

// -- Rules --

type ruleRepoPG struct{ pool *pgxpool.Pool }

func NewRuleRepoPG(pool *pgxpool.Pool) RuleRepository { return &ruleRepoPG{pool: pool} }

func (r *ruleRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *ruleRepoPG) Create(ctx context.Context, rule *Rule) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO rules (rule_name, rule_price) VALUES ($1, $2) RETURNING id`,
		rule.RuleName, rule.RulePrice).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("insert rule: %w", db.InputError(err))
	}
	return nil
}

func (r *ruleRepoPG) GetByID(ctx context.Context, id int) (*Rule, error) {
	var rule Rule
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, rule_name, rule_price FROM rules WHERE id = $1`, id).
		Scan(&rule.ID, &rule.RuleName, &rule.RulePrice)
	if db.IsNoRows(err) {
		return nil, apperrors.NewNotFoundError(msgRuleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return &rule, nil
}

func (r *ruleRepoPG) Update(ctx context.Context, rule *Rule) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE rules SET rule_name = $2, rule_price = $3 WHERE id = $1`,
		rule.ID, rule.RuleName, rule.RulePrice)
	if err != nil {
		return fmt.Errorf("update rule: %w", db.InputError(err))
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError(msgRuleNotFound)
	}
	return nil
}

func (r *ruleRepoPG) Delete(ctx context.Context, id int) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return apperrors.NewConflictError(msgRuleReferenced)
	}
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError(msgRuleNotFound)
	}
	return nil
}

func (r *ruleRepoPG) List(ctx context.Context, name string, limit, offset int) ([]*Rule, int, error) {
	ds := db.Dialect.From("rules").Prepared(true)
	if name != "" {
		ds = ds.Where(goqu.C("rule_name").ILike("%" + name + "%"))
	}

	total, err := db.Count(ctx, r.conn(ctx), ds)
	if err != nil {
		return nil, 0, err
	}

	page := pagination.Params{Limit: limit, Offset: offset}
	query, args, err := db.Build(page.Apply(ds.Select("id", "rule_name", "rule_price").
		Order(goqu.C("id").Asc())))
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list rules: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[Rule])
	if err != nil {
		return nil, 0, fmt.Errorf("scan rules: %w", err)
	}
	return items, total, nil
}

// -- Billing --

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *repoPG) GetNote(ctx context.Context, notesID int) (*NoteState, error) {
	var n NoteState
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT notes_id, rule_id, finalized FROM visit_notes WHERE notes_id = $1`, notesID).
		Scan(&n.NotesID, &n.RuleID, &n.Finalized)
	if db.IsNoRows(err) {
		return nil, apperrors.NewNotFoundError(msgNoteNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get visit note: %w", err)
	}
	return &n, nil
}

func (r *repoPG) LockNoteFinalized(ctx context.Context, notesID int) (bool, error) {
	var finalized bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT finalized FROM visit_notes WHERE notes_id = $1 FOR UPDATE`, notesID).Scan(&finalized)
	if db.IsNoRows(err) {
		return false, apperrors.NewNotFoundError(msgNoteNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("lock visit note: %w", err)
	}
	return finalized, nil
}

func (r *repoPG) Insert(ctx context.Context, b *Billing) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO billing (notes_id, total_bill) VALUES ($1, $2) RETURNING billing_id, created_at`,
		b.NotesID, b.TotalBill).Scan(&b.BillingID, &b.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperrors.NewConflictError(msgAlreadyFinalized)
	}
	if err != nil {
		return fmt.Errorf("insert billing: %w", db.InputError(err))
	}
	return nil
}

func (r *repoPG) SetNoteFinalized(ctx context.Context, notesID int) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE visit_notes SET finalized = TRUE WHERE notes_id = $1 AND NOT finalized`, notesID)
	if err != nil {
		return fmt.Errorf("finalize visit note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewConflictError(msgAlreadyFinalized)
	}
	return nil
}

func (r *repoPG) getOne(ctx context.Context, col string, arg int) (*Billing, error) {
	var b Billing
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT billing_id, notes_id, total_bill, created_at FROM billing WHERE `+col+` = $1`, arg).
		Scan(&b.BillingID, &b.NotesID, &b.TotalBill, &b.CreatedAt)
	if db.IsNoRows(err) {
		return nil, apperrors.NewNotFoundError(msgBillingNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get billing: %w", err)
	}
	return &b, nil
}

func (r *repoPG) GetByID(ctx context.Context, id int) (*Billing, error) {
	return r.getOne(ctx, "billing_id", id)
}

func (r *repoPG) GetByNote(ctx context.Context, notesID int) (*Billing, error) {
	return r.getOne(ctx, "notes_id", notesID)
}
