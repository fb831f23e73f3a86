package identity

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

// writeErr maps constraint violations on a patient or doctor row.
func writeErr(err error, exists string) error {
	switch {
	case db.IsUniqueViolation(err):
		return apperrors.NewConflictError(exists)
	case db.IsForeignKeyViolation(err):
		return apperrors.NewInvalidInputError(msgUnknownVisit)
	}
	return db.InputError(err)
}

func exec(ctx context.Context, q db.Querier, ds db.SQLer) (int64, error) {
	query, args, err := db.Build(ds)
	if err != nil {
		return 0, err
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func listPage[T any](ctx context.Context, q db.Querier, ds *goqu.SelectDataset, cols []interface{}, orderBy string, limit, offset int) ([]*T, int, error) {
	total, err := db.Count(ctx, q, ds)
	if err != nil {
		return nil, 0, err
	}
	page := pagination.Params{Limit: limit, Offset: offset}
	query, args, err := db.Build(page.Apply(ds.Select(cols...).
		Order(goqu.C(orderBy).Asc())))
	if err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// -- Patients --

var patientCols = []interface{}{"patient_id", "visit_id", "name", "email", "phone", "description"}

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func patientRecord(p *Patient) goqu.Record {
	return goqu.Record{
		"visit_id":    p.VisitID,
		"name":        p.PatientName,
		"email":       p.PatientEmail,
		"phone":       p.PatientPhone,
		"description": p.PatientDescription,
	}
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	rec := patientRecord(p)
	rec["patient_id"] = p.PatientID
	if _, err := exec(ctx, r.conn(ctx), db.Dialect.Insert("patients").Prepared(true).Rows(rec)); err != nil {
		return fmt.Errorf("insert patient: %w", writeErr(err, msgPatientExists))
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int) (*Patient, error) {
	query, args, err := db.Build(db.Dialect.From("patients").Prepared(true).
		Select(patientCols...).Where(goqu.C("patient_id").Eq(id)))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[Patient])
	if db.IsNoRows(err) {
		return nil, apperrors.NewNotFoundError(msgPatientNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	n, err := exec(ctx, r.conn(ctx), db.Dialect.Update("patients").Prepared(true).
		Set(patientRecord(p)).Where(goqu.C("patient_id").Eq(p.PatientID)))
	if err != nil {
		return fmt.Errorf("update patient: %w", writeErr(err, msgPatientExists))
	}
	if n == 0 {
		return apperrors.NewNotFoundError(msgPatientNotFound)
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id int) error {
	n, err := exec(ctx, r.conn(ctx), db.Dialect.Delete("patients").Prepared(true).
		Where(goqu.C("patient_id").Eq(id)))
	if db.IsForeignKeyViolation(err) {
		return apperrors.NewConflictError(msgPatientReferenced)
	}
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError(msgPatientNotFound)
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	ds := db.Dialect.From("patients").Prepared(true)
	if name != "" {
		ds = ds.Where(goqu.C("name").ILike("%" + name + "%"))
	}
	items, total, err := listPage[Patient](ctx, r.conn(ctx), ds, patientCols, "patient_id", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	return items, total, nil
}

// -- Doctors --

var doctorCols = []interface{}{"doctor_id", "visit_id", "name", "email", "phone", "specialization"}

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func doctorRecord(d *Doctor) goqu.Record {
	return goqu.Record{
		"visit_id":       d.VisitID,
		"name":           d.DoctorName,
		"email":          d.DoctorEmail,
		"phone":          d.DoctorPhone,
		"specialization": d.Specialization,
	}
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	rec := doctorRecord(d)
	rec["doctor_id"] = d.DoctorID
	if _, err := exec(ctx, r.conn(ctx), db.Dialect.Insert("doctors").Prepared(true).Rows(rec)); err != nil {
		return fmt.Errorf("insert doctor: %w", writeErr(err, msgDoctorExists))
	}
	return nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id int) (*Doctor, error) {
	query, args, err := db.Build(db.Dialect.From("doctors").Prepared(true).
		Select(doctorCols...).Where(goqu.C("doctor_id").Eq(id)))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	d, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[Doctor])
	if db.IsNoRows(err) {
		return nil, apperrors.NewNotFoundError(msgDoctorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan doctor: %w", err)
	}
	return d, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	n, err := exec(ctx, r.conn(ctx), db.Dialect.Update("doctors").Prepared(true).
		Set(doctorRecord(d)).Where(goqu.C("doctor_id").Eq(d.DoctorID)))
	if err != nil {
		return fmt.Errorf("update doctor: %w", writeErr(err, msgDoctorExists))
	}
	if n == 0 {
		return apperrors.NewNotFoundError(msgDoctorNotFound)
	}
	return nil
}

func (r *doctorRepoPG) Delete(ctx context.Context, id int) error {
	n, err := exec(ctx, r.conn(ctx), db.Dialect.Delete("doctors").Prepared(true).
		Where(goqu.C("doctor_id").Eq(id)))
	if db.IsForeignKeyViolation(err) {
		return apperrors.NewConflictError(msgDoctorReferenced)
	}
	if err != nil {
		return fmt.Errorf("delete doctor: %w", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError(msgDoctorNotFound)
	}
	return nil
}

func (r *doctorRepoPG) List(ctx context.Context, specialization string, limit, offset int) ([]*Doctor, int, error) {
	ds := db.Dialect.From("doctors").Prepared(true)
	if specialization != "" {
		ds = ds.Where(goqu.C("specialization").ILike("%" + specialization + "%"))
	}
	items, total, err := listPage[Doctor](ctx, r.conn(ctx), ds, doctorCols, "doctor_id", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	return items, total, nil
}
