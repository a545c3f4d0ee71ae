package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/talenthub/apiserver/internal/store"
	"github.com/talenthub/apiserver/types"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// UserLookup loads the account named by a token subject.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
}

// Gate resolves the caller behind an Authorization header.
type Gate struct {
	tokens *TokenService
	users  UserLookup
}

func NewGate(tokens *TokenService, users UserLookup) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Authenticate verifies a bearer access token and loads its active user.
// Every failure is reported as ErrUnauthenticated so callers cannot tell a
// missing account from a bad token. Lookup errors other than a missing
// user are returned wrapped so they can be logged.
func (g *Gate) Authenticate(ctx context.Context, header string) (types.User, error) {
	token, err := BearerToken(header)
	if err != nil {
		return types.User{}, ErrUnauthenticated
	}

	claims, err := g.tokens.Verify(token, KindAccess)
	if err != nil {
		return types.User{}, ErrUnauthenticated
	}
	userID, err := claims.UserID()
	if err != nil {
		return types.User{}, ErrUnauthenticated
	}

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthenticated
		}
		return types.User{}, errors.Join(ErrUnauthenticated, err)
	}
	if !user.IsActive {
		return types.User{}, ErrUnauthenticated
	}
	return user, nil
}

// CheckAccess allows user when its role is in allowed. An empty allowed set
// admits any authenticated user.
func CheckAccess(user types.User, allowed ...types.Role) error {
	if len(allowed) == 0 {
		return nil
	}
	for _, role := range allowed {
		if user.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
