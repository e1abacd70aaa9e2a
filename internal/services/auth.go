package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cinevault/apiserver/internal/store"
	"github.com/cinevault/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore is the subset of user persistence the auth flow needs.
type CredentialStore interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	ConfirmEmail(ctx context.Context, token string, now time.Time) (bool, error)
}

// AuthService verifies credentials and email confirmation tokens. It never
// issues tokens; callers pair it with a TokenService.
type AuthService struct {
	users     CredentialStore
	dummyHash []byte
	now       func() time.Time
}

// NewAuthService builds an AuthService. bcryptCost should match the cost
// used for stored hashes so failed lookups take as long as wrong passwords.
func NewAuthService(users CredentialStore, bcryptCost int) (*AuthService, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("cinevault-timing-equaliser"), normalizeCost(bcryptCost))
	if err != nil {
		return nil, err
	}
	return &AuthService{users: users, dummyHash: dummy, now: time.Now}, nil
}

// VerifyCredentials checks identifier (an email address) and password and
// returns the user's safe projection. Unknown users and wrong passwords
// both fail with ErrUnauthorized.
func (s *AuthService) VerifyCredentials(ctx context.Context, identifier, password string) (types.UserSafe, error) {
	identifier = normalizeEmail(identifier)
	if identifier == "" {
		return types.UserSafe{}, invalid("email", "email or username is required")
	}
	if password == "" {
		return types.UserSafe{}, invalid("password", "is required")
	}

	user, err := s.users.GetByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return types.UserSafe{}, ErrUnauthorized
		}
		return types.UserSafe{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.UserSafe{}, ErrUnauthorized
	}

	fresh, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.UserSafe{}, ErrUnauthorized
		}
		return types.UserSafe{}, err
	}
	return fresh.Safe(), nil
}

// ConfirmEmail consumes a confirmation token. An unknown or expired token
// yields false, not an error.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	return s.users.ConfirmEmail(ctx, token, s.now().UTC())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeCost(cost int) int {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}
