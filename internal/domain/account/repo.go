package account

import "context"

type Repository interface {
	// Create fails with Conflict when the email is taken, ignoring case.
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	UpdatePassword(ctx context.Context, id int64, hash, salt string) error
}

const (
	msgEmailExists   = "Email already exists."
	msgInvalidCreds  = "Invalid credentials."
	msgWrongPassword = "Current password incorrect."
	msgInvalidRole   = "Role must be Admin, Doctor, or Receptionist"
	msgUserNotFound  = "User not found."

	minPasswordLen = 8
	maxPasswordLen = 128
)
