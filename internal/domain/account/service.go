package account

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/visitmgr/visitmgr/internal/domain/activity"
	"github.com/visitmgr/visitmgr/internal/platform/auth"
	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
	"github.com/visitmgr/visitmgr/pkg/validate"
)

type Service struct {
	repo        Repository
	issuer      *auth.TokenIssuer
	revocations auth.RevocationStore
	activity    activity.Recorder
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(repo Repository, issuer *auth.TokenIssuer, revocations auth.RevocationStore, rec activity.Recorder, logger zerolog.Logger) *Service {
	if rec == nil {
		rec = activity.Nop{}
	}
	return &Service{
		repo:        repo,
		issuer:      issuer,
		revocations: revocations,
		activity:    rec,
		logger:      logger,
		now:         time.Now,
	}
}

func checkPassword(field, pw string) error {
	switch {
	case len(pw) < minPasswordLen:
		return apperrors.NewInvalidInputError(field + " must be at least 8 characters")
	case len(pw) > maxPasswordLen:
		return apperrors.NewInvalidInputError(field + " must be at most 128 characters")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, email, password, role string) (*User, error) {
	r, ok := auth.NormalizeRole(role)
	if !ok {
		return nil, apperrors.NewInvalidInputError(msgInvalidRole)
	}
	email = normalizeEmail(email)
	if !validate.Email(email) {
		return nil, apperrors.NewInvalidInputError("email must be a valid email address")
	}
	if err := checkPassword("password", password); err != nil {
		return nil, err
	}

	hash, salt, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperrors.NewInternalError("hash password", err)
	}
	u := &User{Email: email, PasswordHash: hash, PasswordSalt: salt, Role: r}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, "registered user %s as %s", u.Email, u.Role)
	return u, nil
}

// Login returns the same error for unknown, inactive and wrong-password
// accounts.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if apperrors.IsNotFound(err) {
		return nil, apperrors.NewUnauthorizedError(msgInvalidCreds)
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive || !auth.VerifyPassword(password, u.PasswordHash, u.PasswordSalt) {
		s.logger.Warn().Int64("user_id", u.ID).Msg("login rejected")
		return nil, apperrors.NewUnauthorizedError(msgInvalidCreds)
	}

	token, exp, err := s.issuer.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, apperrors.NewInternalError("issue token", err)
	}
	return &LoginResult{Token: token, Role: u.Role, Email: u.Email, ExpiresAt: exp}, nil
}

// ChangePassword replaces the password and revokes every token the user
// was issued before now, including the caller's.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if err := checkPassword("newPassword", next); err != nil {
		return err
	}
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(current, u.PasswordHash, u.PasswordSalt) {
		return apperrors.NewInvalidInputError(msgWrongPassword)
	}

	hash, salt, err := auth.HashPassword(next)
	if err != nil {
		return apperrors.NewInternalError("hash password", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash, salt); err != nil {
		return err
	}
	if s.revocations != nil {
		if err := s.revocations.RevokeAllForUser(ctx, userID, s.now(), s.issuer.TTL()); err != nil {
			return apperrors.NewInternalError("revoke tokens", err)
		}
	}
	s.activity.Record(ctx, "changed password for user %d", userID)
	return nil
}

// Logout revokes the presented token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, p *auth.Principal) error {
	if s.revocations == nil || p.TokenID == "" {
		return nil
	}
	if err := s.revocations.Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return apperrors.NewInternalError("revoke token", err)
	}
	return nil
}
