package account

import (
	"time"

	"github.com/visitmgr/visitmgr/internal/platform/auth"
)

// User is a staff login. Passwords are stored as PBKDF2 hash and salt.
type User struct {
	ID           int64     `db:"id" json:"userId"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	PasswordSalt string    `db:"password_salt" json:"-"`
	Role         auth.Role `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	Role      auth.Role `json:"role"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}
