package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

const userColumns = `u.id, u.email, u.password_hash, u.first_name, u.last_name, u.role, u.is_active, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser inserts a user. The email is stored lower-cased.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	return r.run(ctx, func(q querier) error {
		_, err := q.Exec(ctx, query, user.ID, domain.NormalizeEmail(user.Email), user.PasswordHash,
			user.FirstName, user.LastName, user.Role, user.IsActive, user.CreatedAt, user.UpdatedAt)
		return err
	})
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users u WHERE lower(u.email) = $1`
	var u domain.User
	err := r.run(ctx, func(q querier) error {
		var err error
		u, err = scanUser(q.QueryRow(ctx, query, domain.NormalizeEmail(email)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	var u domain.User
	err := r.run(ctx, func(q querier) error {
		var err error
		u, err = scanUser(q.QueryRow(ctx, query, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser persists a user's mutable fields.
func (r *Repository) UpdateUser(ctx context.Context, user *domain.User) error {
	const query = `UPDATE users
		SET email = $2, password_hash = $3, first_name = $4, last_name = $5, role = $6, is_active = $7, updated_at = $8
		WHERE id = $1`
	return r.run(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, query, user.ID, domain.NormalizeEmail(user.Email), user.PasswordHash,
			user.FirstName, user.LastName, user.Role, user.IsActive, user.UpdatedAt)
		if err != nil {
			return err
		}
		return expectOne(tag)
	})
}

// ListUsers returns a filtered page of users and the filtered total.
func (r *Repository) ListUsers(ctx context.Context, filter repository.UserFilter, opts repository.ListOptions) ([]domain.User, int, error) {
	var args queryArgs
	var conds []string
	if filter.Role != "" {
		conds = append(conds, "u.role = "+args.add(filter.Role))
	}
	if filter.IsActive != nil {
		conds = append(conds, "u.is_active = "+args.add(*filter.IsActive))
	}
	if strings.TrimSpace(filter.Search) != "" {
		p := args.add(likePattern(filter.Search))
		conds = append(conds, "(u.first_name ILIKE "+p+" OR u.last_name ILIKE "+p+" OR u.email ILIKE "+p+")")
	}
	order, err := orderBy(userSortColumns, opts, "u.id")
	if err != nil {
		return nil, 0, err
	}
	countQuery := `SELECT COUNT(1) FROM users u` + where(conds)
	countArgs := append([]any(nil), args...)
	listQuery := `SELECT ` + userColumns + ` FROM users u` + where(conds) + order + limitOffset(opts, &args)

	var (
		users []domain.User
		total int
	)
	err = r.run(ctx, func(q querier) error {
		if err := q.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
			return err
		}
		rows, err := q.Query(ctx, listQuery, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		users = make([]domain.User, 0)
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			users = append(users, u)
		}
		return rows.Err()
	})
	return users, total, err
}

// SearchUsers returns active users matching query, excluding current members
// of excludeProjectID when set.
func (r *Repository) SearchUsers(ctx context.Context, query, excludeProjectID string, limit int) ([]domain.User, error) {
	var args queryArgs
	conds := []string{"u.is_active"}
	p := args.add(likePattern(query))
	conds = append(conds, "(u.first_name ILIKE "+p+" OR u.last_name ILIKE "+p+" OR u.email ILIKE "+p+")")
	if excludeProjectID != "" {
		conds = append(conds, "NOT EXISTS (SELECT 1 FROM project_members pm WHERE pm.user_id = u.id AND pm.project_id = "+args.add(excludeProjectID)+")")
	}
	sql := `SELECT ` + userColumns + ` FROM users u` + where(conds) + ` ORDER BY u.first_name, u.last_name, u.id`
	if limit > 0 {
		sql += " LIMIT " + args.add(limit)
	}
	var users []domain.User
	err := r.run(ctx, func(q querier) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		users = make([]domain.User, 0)
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			users = append(users, u)
		}
		return rows.Err()
	})
	return users, err
}
