package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/talenthub/apiserver/internal/auth"
	"github.com/talenthub/apiserver/internal/store"
	"github.com/talenthub/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthService(t *testing.T, users UserRepository) (*AuthService, *auth.Hasher) {
	t.Helper()
	hasher, err := auth.NewHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	tokens, err := auth.NewTokenService("test-secret", 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return NewAuthService(users, hasher, tokens), hasher
}

func TestRegister(t *testing.T) {
	existing := "taken@example.com"
	repo := &mockUserRepository{
		GetByEmailFunc: func(_ context.Context, email string) (types.User, error) {
			if email == existing {
				return types.User{ID: uuid.New(), Email: email}, nil
			}
			return types.User{}, store.ErrNotFound
		},
		CreateFunc: func(_ context.Context, u types.User) (types.User, error) {
			u.ID = uuid.New()
			return u, nil
		},
	}
	svc, hasher := newTestAuthService(t, repo)

	tests := []struct {
		name      string
		in        RegisterInput
		wantErr   error
		wantValid bool
	}{
		{name: "ok", in: RegisterInput{Email: " new@example.com ", Password: "s3cretpass", Role: types.RoleJobSeeker}},
		{name: "duplicate", in: RegisterInput{Email: existing, Password: "s3cretpass", Role: types.RoleEmployer}, wantErr: ErrDuplicateEmail},
		{name: "short password", in: RegisterInput{Email: "a@example.com", Password: "short", Role: types.RoleJobSeeker}, wantValid: true},
		{name: "long password", in: RegisterInput{Email: "a@example.com", Password: strings.Repeat("x", 73), Role: types.RoleJobSeeker}, wantValid: true},
		{name: "unknown role", in: RegisterInput{Email: "a@example.com", Password: "s3cretpass", Role: "superuser"}, wantValid: true},
		{name: "missing email", in: RegisterInput{Password: "s3cretpass", Role: types.RoleJobSeeker}, wantValid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Register(context.Background(), tt.in)
			if tt.wantValid {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("Register() error = %v, want ValidationError", err)
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Register() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if user.Email != "new@example.com" {
				t.Errorf("Email = %q, want trimmed", user.Email)
			}
			if !user.IsActive {
				t.Error("new user should be active")
			}
			if err := hasher.Compare(user.PasswordHash, tt.in.Password); err != nil {
				t.Errorf("stored hash does not match password: %v", err)
			}
		})
	}
}

func TestRegister_ConcurrentDuplicate(t *testing.T) {
	repo := &mockUserRepository{
		GetByEmailFunc: func(context.Context, string) (types.User, error) {
			return types.User{}, store.ErrNotFound
		},
		CreateFunc: func(context.Context, types.User) (types.User, error) {
			return types.User{}, store.ErrDuplicate
		},
	}
	svc, _ := newTestAuthService(t, repo)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "race@example.com", Password: "s3cretpass", Role: types.RoleJobSeeker})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("error = %v, want ErrDuplicateEmail", err)
	}
}

func TestLogin(t *testing.T) {
	hasher, err := auth.NewHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	hash, err := hasher.Hash("s3cretpass")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	active := types.User{ID: uuid.New(), Email: "active@example.com", PasswordHash: hash, Role: types.RoleJobSeeker, IsActive: true}
	disabled := types.User{ID: uuid.New(), Email: "disabled@example.com", PasswordHash: hash, Role: types.RoleJobSeeker}
	var touched uuid.UUID

	repo := &mockUserRepository{
		GetByEmailFunc: func(_ context.Context, email string) (types.User, error) {
			switch email {
			case active.Email:
				return active, nil
			case disabled.Email:
				return disabled, nil
			}
			return types.User{}, store.ErrNotFound
		},
		TouchLastLoginFunc: func(_ context.Context, id uuid.UUID, _ time.Time) error {
			touched = id
			return nil
		},
	}
	svc, _ := newTestAuthService(t, repo)

	user, pair, err := svc.Login(context.Background(), active.Email, "s3cretpass")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.TokenType != auth.TokenTypeBearer {
		t.Errorf("unexpected pair %+v", pair)
	}
	if user.LastLoginAt == nil || touched != active.ID {
		t.Error("Login() should stamp last_login_at")
	}

	for name, tc := range map[string]struct{ email, password string }{
		"wrong password": {active.Email, "nope-nope"},
		"unknown email":  {"ghost@example.com", "s3cretpass"},
		"inactive":       {disabled.Email, "s3cretpass"},
		"email case":     {strings.ToUpper(active.Email), "s3cretpass"},
	} {
		t.Run(name, func(t *testing.T) {
			if _, _, err := svc.Login(context.Background(), tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	user := types.User{ID: uuid.New(), Role: types.RoleEmployer, IsActive: true}
	repo := &mockUserRepository{
		GetByIDFunc: func(_ context.Context, id uuid.UUID) (types.User, error) {
			if id == user.ID {
				return user, nil
			}
			return types.User{}, store.ErrNotFound
		},
	}
	svc, _ := newTestAuthService(t, repo)

	pair, err := svc.tokens.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	next, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if next.AccessToken == "" {
		t.Error("Refresh() returned empty access token")
	}

	if _, err := svc.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("Refresh(access token) error = %v, want ErrUnauthenticated", err)
	}
	if _, err := svc.Refresh(context.Background(), "garbage"); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("Refresh(garbage) error = %v, want ErrUnauthenticated", err)
	}

	ghost, err := svc.tokens.Issue(types.User{ID: uuid.New(), Role: types.RoleEmployer})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := svc.Refresh(context.Background(), ghost.RefreshToken); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("Refresh(unknown user) error = %v, want ErrUnauthenticated", err)
	}
}
