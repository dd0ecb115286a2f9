// Package user manages accounts: listing, search, profile edits,
// deactivation and invitations.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
	"github.com/splax/taskhub/internal/service/access"
	"github.com/splax/taskhub/internal/service/auth"
	"github.com/splax/taskhub/pkg/crypto"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	tempPasswordLength = 10
)

var sortable = []string{"createdAt", "email", "firstName", "lastName", "role"}

var (
	ErrUserNotFound    = fmt.Errorf("user %w", domain.ErrNotFound)
	ErrEmailTaken      = fmt.Errorf("user with this email already exists: %w", domain.ErrConflict)
	errSelfDeactivate  = domain.NewValidationError("id", "cannot deactivate your own account")
	errNotSelfOrAdmin  = fmt.Errorf("only the user or an admin may do this: %w", domain.ErrForbidden)
	errQueryIsRequired = domain.NewValidationError("q", "search query is required")
)

// Store is the persistence surface of the service.
type Store interface {
	access.Reader
	repository.UserRepository
	TaskStatusCounts(ctx context.Context, query repository.TaskQuery) (map[domain.TaskStatus]int, error)
}

// Profile is a user with their assigned task counts per status.
type Profile struct {
	domain.User
	TaskStats map[domain.TaskStatus]int `json:"taskStats"`
}

// UpdateInput is a partial update. Role and IsActive are honoured for global
// admins only.
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Role      *domain.GlobalRole
	IsActive  *bool
}

// InviteInput describes an invited account.
type InviteInput struct {
	Email     string
	FirstName string
	LastName  string
	Role      domain.GlobalRole
}

// Invitation is the created account and its one-time temporary password.
type Invitation struct {
	User              domain.User `json:"user"`
	TemporaryPassword string      `json:"temporaryPassword"`
}

// Service handles account workflows.
type Service struct {
	repo   Store
	access access.Evaluator
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service.
func New(repo Store, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{repo: repo, access: access.New(repo), logger: logger, now: time.Now}
}

func selfOrAdmin(p domain.Principal, userID string) error {
	if p.UserID == "" {
		return domain.ErrUnauthenticated
	}
	if p.UserID != userID && !p.IsAdmin() {
		return errNotSelfOrAdmin
	}
	return nil
}

func (s Service) load(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// List returns a page of users. Global admins only.
func (s Service) List(ctx context.Context, p domain.Principal, filter repository.UserFilter, opts repository.ListOptions) (domain.Page[domain.User], error) {
	if err := access.RequireGlobalRole(p, domain.GlobalRoleAdmin); err != nil {
		return domain.Page[domain.User]{}, err
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return domain.Page[domain.User]{}, domain.NewValidationError("role", "unknown role")
	}
	opts, err := opts.Normalize(sortable, "createdAt", repository.DefaultLimit)
	if err != nil {
		return domain.Page[domain.User]{}, err
	}
	items, total, err := s.repo.ListUsers(ctx, filter, opts)
	if err != nil {
		return domain.Page[domain.User]{}, err
	}
	return domain.Page[domain.User]{Items: items, Pagination: domain.NewPagination(total, opts.Page, opts.Limit)}, nil
}

// Search finds active users by name or email. With projectID, which must be
// visible to p, current members of that project are left out.
func (s Service) Search(ctx context.Context, p domain.Principal, query, projectID string, limit int) ([]domain.UserSummary, error) {
	if p.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errQueryIsRequired
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)
	if projectID != "" {
		if _, _, err := s.access.AuthorizeProjectRead(ctx, p, projectID); err != nil {
			return nil, err
		}
	}
	users, err := s.repo.SearchUsers(ctx, query, projectID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out, nil
}

// Get returns a profile to the user themself or a global admin.
func (s Service) Get(ctx context.Context, p domain.Principal, userID string) (Profile, error) {
	if err := selfOrAdmin(p, userID); err != nil {
		return Profile{}, err
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	counts, err := s.repo.TaskStatusCounts(ctx, repository.TaskQuery{Scope: repository.Unrestricted(), AssigneeID: userID})
	if err != nil {
		return Profile{}, err
	}
	stats := make(map[domain.TaskStatus]int, len(domain.TaskStatuses))
	for _, status := range domain.TaskStatuses {
		stats[status] = counts[status]
	}
	return Profile{User: *user, TaskStats: stats}, nil
}

// Update edits a profile. Non-admins may only change their own names.
func (s Service) Update(ctx context.Context, p domain.Principal, userID string, input UpdateInput) (*domain.User, error) {
	if err := selfOrAdmin(p, userID); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	verr := &domain.ValidationError{}
	if input.FirstName != nil {
		if user.FirstName = strings.TrimSpace(*input.FirstName); user.FirstName == "" {
			verr.Add("firstName", "first name cannot be empty")
		}
	}
	if input.LastName != nil {
		if user.LastName = strings.TrimSpace(*input.LastName); user.LastName == "" {
			verr.Add("lastName", "last name cannot be empty")
		}
	}
	if p.IsAdmin() {
		if input.Role != nil {
			if !input.Role.Valid() {
				verr.Add("role", "unknown role")
			}
			user.Role = *input.Role
		}
		if input.IsActive != nil {
			if !*input.IsActive && userID == p.UserID {
				verr.Add("isActive", "cannot deactivate your own account")
			}
			user.IsActive = *input.IsActive
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	user.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user updated", "user_id", user.ID, "actor", p.UserID)
	return user, nil
}

// Deactivate soft-deletes a user. Global admins only, never themselves.
func (s Service) Deactivate(ctx context.Context, p domain.Principal, userID string) error {
	if err := access.RequireGlobalRole(p, domain.GlobalRoleAdmin); err != nil {
		return err
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if user.ID == p.UserID {
		return errSelfDeactivate
	}
	user.IsActive = false
	user.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return err
	}
	s.logger.Info("user deactivated", "user_id", user.ID, "actor", p.UserID)
	return nil
}

// Invite creates an active account with a random temporary password, which
// is returned once and stored only as a bcrypt hash.
func (s Service) Invite(ctx context.Context, p domain.Principal, input InviteInput) (Invitation, error) {
	if err := access.RequireGlobalRole(p, domain.GlobalRoleAdmin); err != nil {
		return Invitation{}, err
	}
	email := domain.NormalizeEmail(input.Email)
	verr := &domain.ValidationError{}
	if !auth.ValidEmail(email) {
		verr.Add("email", "valid email is required")
	}
	if strings.TrimSpace(input.FirstName) == "" {
		verr.Add("firstName", "first name is required")
	}
	if strings.TrimSpace(input.LastName) == "" {
		verr.Add("lastName", "last name is required")
	}
	if !input.Role.Valid() {
		verr.Add("role", "unknown role")
	}
	if err := verr.Err(); err != nil {
		return Invitation{}, err
	}

	password, err := crypto.TemporaryPassword(tempPasswordLength)
	if err != nil {
		return Invitation{}, err
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return Invitation{}, err
	}
	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         input.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return Invitation{}, ErrEmailTaken
		}
		return Invitation{}, err
	}
	s.logger.Info("user invited", "user_id", user.ID, "role", user.Role, "actor", p.UserID)
	return Invitation{User: user, TemporaryPassword: password}, nil
}
