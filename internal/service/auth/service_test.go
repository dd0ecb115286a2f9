package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository/memory"
	jwtpkg "github.com/splax/taskhub/pkg/jwt"
)

const secret = "test-secret"

func newService(t *testing.T) (Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Secret: secret, TokenTTL: time.Hour}), store
}

func register(t *testing.T, svc Service) *domain.User {
	t.Helper()
	user, session, err := svc.Register(context.Background(), RegisterInput{Email: " Alice@Example.com ", Password: "secret1", FirstName: "Alice", LastName: "Liddell"})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	return user
}

func TestRegisterCreatesActiveMember(t *testing.T) {
	svc, _ := newService(t)
	user := register(t, svc)

	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, domain.GlobalRoleMember, user.Role)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, []byte("secret1"), user.PasswordHash)

	_, _, err := svc.Register(context.Background(), RegisterInput{Email: "ALICE@example.com", Password: "another", FirstName: "A", LastName: "B"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRegisterValidates(t *testing.T) {
	svc, _ := newService(t)
	_, _, err := svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "123"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "password")
	assert.Contains(t, verr.Fields, "firstName")
}

func TestLoginAndAuthorize(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	user := register(t, svc)

	_, _, err := svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, _, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, session, err := svc.Login(ctx, "ALICE@example.com", "secret1")
	require.NoError(t, err)

	p, err := svc.Authorize(ctx, "  "+session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, "Alice Liddell", p.DisplayName())

	user.IsActive = false
	require.NoError(t, store.UpdateUser(ctx, user))
	_, err = svc.Authorize(ctx, session.Token)
	assert.ErrorIs(t, err, ErrAccountInactive)
	_, _, err = svc.Login(ctx, "alice@example.com", "secret1")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestAuthorizeDistinguishesTokenFailures(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	user := register(t, svc)

	past := time.Now().Add(-2 * time.Hour)
	expired, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtpkg.Claims{
		UserID: user.ID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			IssuedAt:  jwtlib.NewNumericDate(past),
			ExpiresAt: jwtlib.NewNumericDate(past.Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = svc.Authorize(ctx, expired)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = svc.Authorize(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	assert.NotErrorIs(t, err, domain.ErrTokenExpired)

	ghost, err := jwtpkg.GenerateToken("ghost", "member", secret, time.Hour)
	require.NoError(t, err)
	_, err = svc.Authorize(ctx, ghost)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = svc.Authorize(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	user := register(t, svc)
	p := domain.PrincipalFor(*user)

	err := svc.ChangePassword(ctx, p, "wrong", "newsecret")
	assert.ErrorIs(t, err, domain.ErrValidation)
	err = svc.ChangePassword(ctx, p, "secret1", "short")
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, svc.ChangePassword(ctx, p, "secret1", "newsecret"))
	_, _, err = svc.Login(ctx, "alice@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "alice@example.com", "newsecret")
	assert.NoError(t, err)
}
