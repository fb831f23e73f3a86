package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	passwordIterations = 100_000
	passwordSaltLen    = 16
	passwordKeyLen     = 32
)

// HashPassword derives a PBKDF2-SHA256 hash with a fresh random salt. Both
// values are returned base64 encoded.
func HashPassword(password string) (hash, salt string, err error) {
	saltBytes := make([]byte, passwordSaltLen)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), saltBytes, passwordIterations, passwordKeyLen, sha256.New)
	return base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(saltBytes), nil
}

// VerifyPassword reports whether password matches hash and salt.
func VerifyPassword(password, hash, salt string) bool {
	saltBytes, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(hash)
	if err != nil || len(want) != passwordKeyLen {
		return false
	}
	got := pbkdf2.Key([]byte(password), saltBytes, passwordIterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(want, got) == 1
}
