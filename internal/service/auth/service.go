package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
	"github.com/splax/taskhub/pkg/crypto"
	jwtpkg "github.com/splax/taskhub/pkg/jwt"
)

// MinPasswordLength applies to registration and password changes.
const MinPasswordLength = 6

var (
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", domain.ErrUnauthenticated)
	ErrAccountInactive    = fmt.Errorf("account is deactivated: %w", domain.ErrUnauthenticated)
	ErrEmailTaken         = fmt.Errorf("email already registered: %w", domain.ErrConflict)
	errTokenRequired      = fmt.Errorf("token required: %w", domain.ErrUnauthenticated)
)

// Config carries the token settings.
type Config struct {
	Secret   string
	TokenTTL time.Duration
}

// Service handles authentication workflows.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg Config) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	return Service{users: users, logger: logger, cfg: cfg, now: time.Now}
}

// Session is an issued access token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RegisterInput holds signup fields.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// ValidEmail reports whether email is a bare address.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func validatePassword(verr *domain.ValidationError, field, password string) {
	if len(password) < MinPasswordLength {
		verr.Add(field, fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
}

// Register creates an active member account and signs it in.
func (s Service) Register(ctx context.Context, input RegisterInput) (*domain.User, Session, error) {
	email := domain.NormalizeEmail(input.Email)
	verr := &domain.ValidationError{}
	if !ValidEmail(email) {
		verr.Add("email", "valid email is required")
	}
	validatePassword(verr, "password", input.Password)
	if strings.TrimSpace(input.FirstName) == "" {
		verr.Add("firstName", "first name is required")
	}
	if strings.TrimSpace(input.LastName) == "" {
		verr.Add("lastName", "last name is required")
	}
	if err := verr.Err(); err != nil {
		return nil, Session{}, err
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, Session{}, err
	}
	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         domain.GlobalRoleMember,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, Session{}, ErrEmailTaken
		}
		return nil, Session{}, err
	}
	session, err := s.issue(*user)
	if err != nil {
		return nil, Session{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, session, nil
}

// Login authenticates a user and returns a session.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, Session, error) {
	user, err := s.users.GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, Session{}, ErrInvalidCredentials
		}
		return nil, Session{}, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, Session{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, Session{}, ErrAccountInactive
	}
	session, err := s.issue(*user)
	if err != nil {
		return nil, Session{}, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, session, nil
}

// Authorize validates a bearer token and resolves it to the principal of an
// active user. Expired and malformed tokens are reported separately.
func (s Service) Authorize(ctx context.Context, token string) (domain.Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return domain.Principal{}, errTokenRequired
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.Secret)
	if err != nil {
		if errors.Is(err, jwtpkg.ErrExpired) {
			return domain.Principal{}, domain.ErrTokenExpired
		}
		return domain.Principal{}, domain.ErrTokenInvalid
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, fmt.Errorf("user no longer exists: %w", domain.ErrUnauthenticated)
		}
		return domain.Principal{}, err
	}
	if !user.IsActive {
		return domain.Principal{}, ErrAccountInactive
	}
	return domain.PrincipalFor(*user), nil
}

// Me returns the principal's own account.
func (s Service) Me(ctx context.Context, p domain.Principal) (*domain.User, error) {
	if p.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.users.GetUserByID(ctx, p.UserID)
}

// ChangePassword replaces p's password after verifying the current one.
func (s Service) ChangePassword(ctx context.Context, p domain.Principal, current, next string) error {
	verr := &domain.ValidationError{}
	if current == "" {
		verr.Add("currentPassword", "current password is required")
	}
	validatePassword(verr, "newPassword", next)
	if err := verr.Err(); err != nil {
		return err
	}
	user, err := s.Me(ctx, p)
	if err != nil {
		return err
	}
	if err := crypto.ComparePassword(user.PasswordHash, current); err != nil {
		return domain.NewValidationError("currentPassword", "current password is incorrect")
	}
	hash, err := crypto.HashPassword(next)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now().UTC()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return err
	}
	s.logger.Info("password changed", "user_id", user.ID)
	return nil
}

func (s Service) issue(user domain.User) (Session, error) {
	token, err := jwtpkg.GenerateToken(user.ID, string(user.Role), s.cfg.Secret, s.cfg.TokenTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: s.now().UTC().Add(s.cfg.TokenTTL)}, nil
}
