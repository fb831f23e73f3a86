package auth

import "strings"

// Role is the single role carried by an access token.
type Role string

const (
	RoleAdmin        Role = "Admin"
	RoleDoctor       Role = "Doctor"
	RoleReceptionist Role = "Receptionist"
)

// NormalizeRole maps a case-insensitive role name onto its canonical form.
func NormalizeRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, true
	case "doctor":
		return RoleDoctor, true
	case "receptionist":
		return RoleReceptionist, true
	}
	return "", false
}

// Valid reports whether r is one of the canonical role names.
func (r Role) Valid() bool {
	n, ok := NormalizeRole(string(r))
	return ok && n == r
}
