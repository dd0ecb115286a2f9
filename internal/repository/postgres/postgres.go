package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/taskhub/internal/repository"
)

// DefaultAcquireTimeout bounds how long a call waits for a pooled connection.
const DefaultAcquireTimeout = 3 * time.Second

// querier is satisfied by both pooled connections and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool           *pgxpool.Pool
	tx             pgx.Tx
	acquireTimeout time.Duration
}

// New constructs a Repository. A non-positive acquireTimeout uses
// DefaultAcquireTimeout.
func New(pool *pgxpool.Pool, acquireTimeout time.Duration) *Repository {
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}
	return &Repository{pool: pool, acquireTimeout: acquireTimeout}
}

var _ repository.Store = (*Repository)(nil)

// WithinTx runs fn inside one database transaction. The transaction rolls back
// when fn fails or ctx is cancelled before commit.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	if r.tx != nil {
		return fn(r)
	}
	conn, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return translate(err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Repository{pool: r.pool, tx: tx, acquireTimeout: r.acquireTimeout}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return translate(err)
	}
	return nil
}

func (r *Repository) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancel()
	conn, err := r.pool.Acquire(acquireCtx)
	if err != nil {
		if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err)) {
			return nil, fmt.Errorf("acquire connection: %w", repository.ErrUnavailable)
		}
		return nil, translate(err)
	}
	return conn, nil
}

// run executes fn on the current transaction, or on a pooled connection
// acquired within the acquire timeout.
func (r *Repository) run(ctx context.Context, fn func(q querier) error) error {
	if r.tx != nil {
		return translate(fn(r.tx))
	}
	conn, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return translate(fn(conn))
}

// translate maps driver errors onto repository errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, repository.ErrConflict)
		case "23503":
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, repository.ErrNotFound)
		case "23514", "22P02":
			return fmt.Errorf("%s: %w", pgErr.Message, repository.ErrInvalidArgument)
		case "57014", "55P03", "53300":
			return fmt.Errorf("%s: %w", pgErr.Message, repository.ErrUnavailable)
		}
	}
	if pgconn.Timeout(err) {
		return fmt.Errorf("%v: %w", err, repository.ErrUnavailable)
	}
	return err
}

func expectOne(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func nilIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
