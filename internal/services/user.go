package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/cinevault/apiserver/internal/store"
	"github.com/cinevault/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultUserPageSize = 20
	defaultConfirmTTL   = 24 * time.Hour
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id string) error
}

// CreateUserInput is the signup payload.
type CreateUserInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// UpdateUserInput is a partial user update; nil fields are left unchanged.
type UpdateUserInput struct {
	Name     *string `json:"name" validate:"omitnil,min=1,max=200"`
	Email    *string `json:"email" validate:"omitnil,email"`
	Password *string `json:"password" validate:"omitnil,min=6,max=72"`
}

// UserOptions tunes hashing and confirmation tokens.
type UserOptions struct {
	BcryptCost int
	ConfirmTTL time.Duration
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo       UserRepository
	events     EventPublisher
	logger     *zap.Logger
	cost       int
	confirmTTL time.Duration
	now        func() time.Time
}

func NewUserService(repo UserRepository, events EventPublisher, opts UserOptions, logger *zap.Logger) *UserService {
	ttl := opts.ConfirmTTL
	if ttl <= 0 {
		ttl = defaultConfirmTTL
	}
	return &UserService{
		repo:       repo,
		events:     events,
		logger:     nopIfNil(logger),
		cost:       normalizeCost(opts.BcryptCost),
		confirmTTL: ttl,
		now:        time.Now,
	}
}

// Create registers a user with a pending email confirmation.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (types.UserSafe, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return types.UserSafe{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return types.UserSafe{}, err
	}
	token, err := newConfirmToken()
	if err != nil {
		return types.UserSafe{}, err
	}
	expires := s.now().UTC().Add(s.confirmTTL)

	user, err := s.repo.Create(ctx, types.User{
		Name:                in.Name,
		Email:               in.Email,
		PasswordHash:        string(hash),
		ConfirmToken:        &token,
		ConfirmTokenExpires: &expires,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.UserSafe{}, conflict("email already registered")
		}
		return types.UserSafe{}, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	publish(ctx, s.events, s.logger, EventUserRegistered, UserRegistered{
		UserID:       user.ID,
		Name:         user.Name,
		Email:        user.Email,
		ConfirmToken: token,
		ExpiresAt:    expires,
	})
	return user.Safe(), nil
}

func (s *UserService) Get(ctx context.Context, id string) (types.UserSafe, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.UserSafe{}, notFound("user")
		}
		return types.UserSafe{}, err
	}
	return user.Safe(), nil
}

// List returns users newest first.
func (s *UserService) List(ctx context.Context, page, pageSize int) (Page[types.UserSafe], error) {
	page, pageSize = normalizePage(page, pageSize, defaultUserPageSize)
	users, total, err := s.repo.List(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return Page[types.UserSafe]{}, err
	}
	items := make([]types.UserSafe, 0, len(users))
	for _, user := range users {
		items = append(items, user.Safe())
	}
	return Page[types.UserSafe]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// Update applies a partial update to the requester's own account.
// Authorize reports whether requesterID may modify the user account id.
func (s *UserService) Authorize(ctx context.Context, requesterID, id string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("user")
		}
		return err
	}
	return AssertOwnership(requesterID, user.ID)
}

func (s *UserService) Update(ctx context.Context, requesterID, id string, in UpdateUserInput) (types.UserSafe, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.UserSafe{}, notFound("user")
		}
		return types.UserSafe{}, err
	}
	if err := AssertOwnership(requesterID, user.ID); err != nil {
		return types.UserSafe{}, err
	}

	in.Name = trimPtr(in.Name)
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		in.Email = &email
	}
	if err := validateStruct(in); err != nil {
		return types.UserSafe{}, err
	}

	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.cost)
		if err != nil {
			return types.UserSafe{}, err
		}
		user.PasswordHash = string(hash)
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return types.UserSafe{}, conflict("email already registered")
		case errors.Is(err, store.ErrNotFound):
			return types.UserSafe{}, notFound("user")
		}
		return types.UserSafe{}, err
	}
	return updated.Safe(), nil
}

// Delete removes the requester's own account and, through the schema's
// cascades, the movies it owns.
func (s *UserService) Delete(ctx context.Context, requesterID, id string) (DeleteResult, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return DeleteResult{}, notFound("user")
		}
		return DeleteResult{}, err
	}
	if err := AssertOwnership(requesterID, user.ID); err != nil {
		return DeleteResult{}, err
	}
	if err := s.repo.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return DeleteResult{}, notFound("user")
		}
		return DeleteResult{}, err
	}
	s.logger.Info("user deleted", zap.String("user_id", user.ID))
	return DeleteResult{Deleted: true}, nil
}

func newConfirmToken() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}
