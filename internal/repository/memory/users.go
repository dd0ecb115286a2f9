package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

// CreateUser inserts a user; emails are unique case-insensitively.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	return s.write(ctx, "CreateUser", func(st *state) error {
		if _, ok := st.users[user.ID]; ok {
			return repository.ErrConflict
		}
		for _, existing := range st.users {
			if domain.NormalizeEmail(existing.Email) == domain.NormalizeEmail(user.Email) {
				return repository.ErrConflict
			}
		}
		st.users[user.ID] = *user
		return nil
	})
}

// GetUserByEmail fetches a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := s.read(ctx, "GetUserByEmail", func(st *state) error {
		for _, u := range st.users {
			if domain.NormalizeEmail(u.Email) == domain.NormalizeEmail(email) {
				out = &u
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

// GetUserByID fetches a user by identifier.
func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := s.read(ctx, "GetUserByID", func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

// UpdateUser replaces a user's mutable fields.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	return s.write(ctx, "UpdateUser", func(st *state) error {
		if _, ok := st.users[user.ID]; !ok {
			return repository.ErrNotFound
		}
		for id, existing := range st.users {
			if id != user.ID && domain.NormalizeEmail(existing.Email) == domain.NormalizeEmail(user.Email) {
				return repository.ErrConflict
			}
		}
		st.users[user.ID] = *user
		return nil
	})
}

// ListUsers returns a filtered page of users and the filtered total.
func (s *Store) ListUsers(ctx context.Context, filter repository.UserFilter, opts repository.ListOptions) ([]domain.User, int, error) {
	var (
		page  []domain.User
		total int
	)
	err := s.read(ctx, "ListUsers", func(st *state) error {
		matched := make([]domain.User, 0, len(st.users))
		for _, u := range st.users {
			if filter.Role != "" && u.Role != filter.Role {
				continue
			}
			if filter.IsActive != nil && u.IsActive != *filter.IsActive {
				continue
			}
			if filter.Search != "" && !userMatches(u, filter.Search) {
				continue
			}
			matched = append(matched, u)
		}
		slices.SortFunc(matched, func(a, b domain.User) int {
			var c int
			switch opts.SortBy {
			case "email":
				c = cmp.Compare(a.Email, b.Email)
			case "firstName":
				c = cmp.Compare(a.FirstName, b.FirstName)
			case "lastName":
				c = cmp.Compare(a.LastName, b.LastName)
			case "role":
				c = cmp.Compare(a.Role, b.Role)
			default:
				c = a.CreatedAt.Compare(b.CreatedAt)
			}
			if c == 0 {
				c = cmp.Compare(a.ID, b.ID)
			}
			return ordered(c, opts.SortOrder)
		})
		total = len(matched)
		page = paginate(matched, opts)
		return nil
	})
	return page, total, err
}

// SearchUsers returns active users matching query by name or email,
// excluding current members of excludeProjectID when set.
func (s *Store) SearchUsers(ctx context.Context, query, excludeProjectID string, limit int) ([]domain.User, error) {
	var out []domain.User
	err := s.read(ctx, "SearchUsers", func(st *state) error {
		out = make([]domain.User, 0)
		for _, u := range st.users {
			if !u.IsActive || !userMatches(u, query) {
				continue
			}
			if excludeProjectID != "" && st.isMember(excludeProjectID, u.ID) {
				continue
			}
			out = append(out, u)
		}
		slices.SortFunc(out, func(a, b domain.User) int {
			if c := cmp.Compare(a.FirstName, b.FirstName); c != 0 {
				return c
			}
			if c := cmp.Compare(a.LastName, b.LastName); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func userMatches(u domain.User, q string) bool {
	return containsFold(u.FirstName, q) || containsFold(u.LastName, q) || containsFold(u.Email, q)
}
