package account

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visitmgr/visitmgr/internal/platform/db"
	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
)

const userCols = `id, email, password_hash, password_salt, role, is_active, created_at`

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *repoPG) Create(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (email, password_hash, password_salt, role, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, is_active, created_at`,
		u.Email, u.PasswordHash, u.PasswordSalt, string(u.Role)).Scan(&u.ID, &u.IsActive, &u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperrors.NewConflictError(msgEmailExists)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *repoPG) getOne(ctx context.Context, where string, arg interface{}) (*User, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+userCols+` FROM users WHERE `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[User])
	if db.IsNoRows(err) {
		return nil, apperrors.NewNotFoundError(msgUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `lower(email) = lower($1)`, email)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *repoPG) UpdatePassword(ctx context.Context, id int64, hash, salt string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET password_hash = $2, password_salt = $3 WHERE id = $1`, id, hash, salt)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError(msgUserNotFound)
	}
	return nil
}
