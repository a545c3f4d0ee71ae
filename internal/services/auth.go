package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/talenthub/apiserver/internal/auth"
	"github.com/talenthub/apiserver/internal/store"
	"github.com/talenthub/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// bcrypt ignores input past this length.
const maxPasswordBytes = 72

// RegisterInput is the registration payload.
type RegisterInput struct {
	Email          string     `json:"email" validate:"required,email,max=255"`
	Password       string     `json:"password" validate:"required,min=8"`
	Role           types.Role `json:"role" validate:"required"`
	OrganizationID *uuid.UUID `json:"organization_id"`
}

// AuthService implements registration, password login and token refresh.
type AuthService struct {
	users    UserRepository
	hasher   *auth.Hasher
	tokens   *auth.TokenService
	validate *validator.Validate
	now      func() time.Time
}

func NewAuthService(users UserRepository, hasher *auth.Hasher, tokens *auth.TokenService) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		validate: newValidator(time.Now),
		now:      time.Now,
	}
}

// Register creates an active account. The email is trimmed but otherwise
// stored exactly as given.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		if fe := passwordLengthError(err); fe != nil {
			return types.User{}, fe
		}
		return types.User{}, validationError(err)
	}
	if len(in.Password) > maxPasswordBytes {
		return types.User{}, invalid("password must be at most 72 bytes")
	}
	if !in.Role.Valid() {
		return types.User{}, invalid(fmt.Sprintf("unknown role %q", in.Role))
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Email:          in.Email,
		PasswordHash:   hash,
		Role:           in.Role,
		OrganizationID: in.OrganizationID,
		IsActive:       true,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrDuplicateEmail
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login exchanges email and password for a token pair. Unknown emails,
// wrong passwords and inactive accounts all return ErrInvalidCredentials,
// and each path performs one bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.User, auth.TokenPair, error) {
	email = strings.TrimSpace(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.hasher.CompareDummy(password)
			return types.User{}, auth.TokenPair{}, ErrInvalidCredentials
		}
		return types.User{}, auth.TokenPair{}, fmt.Errorf("load user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return types.User{}, auth.TokenPair{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return types.User{}, auth.TokenPair{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return types.User{}, auth.TokenPair{}, fmt.Errorf("stamp last login: %w", err)
	}
	user.LastLoginAt = &now

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return types.User{}, auth.TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh trades a refresh token for a new pair. Access tokens are
// rejected, as are tokens for missing or inactive users.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.tokens.Verify(strings.TrimSpace(refreshToken), auth.KindRefresh)
	if err != nil {
		return auth.TokenPair{}, auth.ErrUnauthenticated
	}
	userID, err := claims.UserID()
	if err != nil {
		return auth.TokenPair{}, auth.ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.TokenPair{}, auth.ErrUnauthenticated
		}
		return auth.TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return auth.TokenPair{}, auth.ErrUnauthenticated
	}
	return s.tokens.Issue(user)
}

func passwordLengthError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	for _, fe := range errs {
		if fe.Field() != "password" {
			continue
		}
		switch fe.Tag() {
		case "required", "min":
			return invalid("password must be at least 8 characters")
		}
	}
	return nil
}
