package scheduling

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/visitmgr/visitmgr/internal/platform/db"
	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
	"github.com/visitmgr/visitmgr/pkg/pagination"
)

var visitCols = []interface{}{
	"visit_id", "visit_type", "visit_type_id", "visit_duration", "visit_date",
	"visit_fee", "patient_id", "doctor_id", "status",
}

const visitColList = `visit_id, visit_type, visit_type_id, visit_duration, visit_date,
	visit_fee, patient_id, doctor_id, status`

type visitRepoPG struct{ pool *pgxpool.Pool }

func NewVisitRepoPG(pool *pgxpool.Pool) VisitRepository { return &visitRepoPG{pool: pool} }

func (r *visitRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.VisitID, &v.VisitType, &v.VisitTypeID, &v.VisitDuration, &v.VisitDate,
		&v.VisitFee, &v.PatientID, &v.DoctorID, &v.Status)
	return &v, err
}

func translateWriteErr(err error) error {
	switch {
	case db.IsUniqueViolation(err):
		return apperrors.NewConflictError(msgVisitExists)
	case db.IsForeignKeyViolation(err):
		return apperrors.NewConflictError(msgUnknownParty)
	}
	return db.InputError(err)
}

func (r *visitRepoPG) Create(ctx context.Context, v *Visit) error {
	query, args, err := db.Build(db.Dialect.Insert("visits").Prepared(true).Rows(goqu.Record{
		"visit_id":       v.VisitID,
		"visit_type":     v.VisitType,
		"visit_type_id":  v.VisitTypeID,
		"visit_duration": v.VisitDuration,
		"visit_date":     v.VisitDate,
		"visit_fee":      v.VisitFee,
		"patient_id":     v.PatientID,
		"doctor_id":      v.DoctorID,
		"status":         string(v.Status),
	}))
	if err != nil {
		return err
	}
	if _, err := r.conn(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert visit: %w", translateWriteErr(err))
	}
	return nil
}

func (r *visitRepoPG) GetByID(ctx context.Context, id int) (*Visit, error) {
	v, err := scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitColList+` FROM visits WHERE visit_id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperrors.NewNotFoundError(msgVisitNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return v, nil
}

func (r *visitRepoPG) Update(ctx context.Context, v *Visit) error {
	updated, err := scanVisit(r.conn(ctx).QueryRow(ctx, `
		UPDATE visits SET visit_type = $2, visit_type_id = $3, visit_duration = $4,
			visit_date = $5, visit_fee = $6, patient_id = $7, doctor_id = $8,
			status = COALESCE(NULLIF($9, ''), status)
		WHERE visit_id = $1
		RETURNING `+visitColList,
		v.VisitID, v.VisitType, v.VisitTypeID, v.VisitDuration,
		v.VisitDate, v.VisitFee, v.PatientID, v.DoctorID, string(v.Status)))
	if db.IsNoRows(err) {
		return apperrors.NewNotFoundError(msgVisitNotFound)
	}
	if err != nil {
		return fmt.Errorf("update visit: %w", translateWriteErr(err))
	}
	*v = *updated
	return nil
}

func (r *visitRepoPG) Delete(ctx context.Context, id int) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM visits WHERE visit_id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return apperrors.NewConflictError(msgVisitReferenced)
	}
	if err != nil {
		return fmt.Errorf("delete visit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError(msgVisitNotFound)
	}
	return nil
}

func (r *visitRepoPG) List(ctx context.Context, f VisitFilter, limit, offset int) ([]*Visit, int, error) {
	ds := db.Dialect.From("visits").Prepared(true)
	if f.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(string(f.Status)))
	}
	if f.PatientID > 0 {
		ds = ds.Where(goqu.C("patient_id").Eq(f.PatientID))
	}
	if f.DoctorID > 0 {
		ds = ds.Where(goqu.C("doctor_id").Eq(f.DoctorID))
	}
	if f.From != nil {
		ds = ds.Where(goqu.C("visit_date").Gte(*f.From))
	}
	if f.To != nil {
		ds = ds.Where(goqu.C("visit_date").Lt(*f.To))
	}

	total, err := db.Count(ctx, r.conn(ctx), ds)
	if err != nil {
		return nil, 0, err
	}

	page := pagination.Params{Limit: limit, Offset: offset}
	query, args, err := db.Build(page.Apply(ds.Select(visitCols...).
		Order(goqu.C("visit_date").Asc(), goqu.C("visit_id").Asc())))
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var items []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

type feeScheduleRepoPG struct{ pool *pgxpool.Pool }

func NewFeeScheduleRepoPG(pool *pgxpool.Pool) FeeScheduleRepository {
	return &feeScheduleRepoPG{pool: pool}
}

func (r *feeScheduleRepoPG) List(ctx context.Context) ([]*FeeSchedule, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT fee_id, visit_type, fee_per_minute FROM fee_schedule ORDER BY fee_id`)
	if err != nil {
		return nil, fmt.Errorf("list fee schedule: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[FeeSchedule])
	if err != nil {
		return nil, fmt.Errorf("scan fee schedule: %w", err)
	}
	return items, nil
}

func (r *feeScheduleRepoPG) FeePerMinute(ctx context.Context, visitType string) (decimal.Decimal, error) {
	var rate decimal.Decimal
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT fee_per_minute FROM fee_schedule WHERE visit_type = $1 ORDER BY fee_id LIMIT 1`, visitType).Scan(&rate)
	if db.IsNoRows(err) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("fee per minute: %w", err)
	}
	return rate, nil
}
