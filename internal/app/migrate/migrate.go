// Package migrate applies the SQL schema under db/migrations with goose.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const commandTimeout = time.Minute

// Runner applies and inspects schema migrations.
type Runner struct {
	db       *sql.DB
	provider *goose.Provider
	dir      string
	log      *slog.Logger
}

// Migration is one row of Status output.
type Migration struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

// New opens dsn through the pgx stdlib driver and loads migrations from dir.
func New(dsn, dir string, log *slog.Logger) (*Runner, error) {
	if dsn == "" {
		return nil, errors.New("empty database dsn")
	}
	if dir == "" {
		return nil, errors.New("empty migrations directory")
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("locate migrations dir: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sql connection: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("configure goose: %w", err)
	}
	return &Runner{db: db, provider: provider, dir: dir, log: log}, nil
}

// Up applies every pending migration.
func (r *Runner) Up(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	r.log.Info("applying migrations", "dir", r.dir)
	results, err := r.provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, res := range results {
		r.log.Info("migration applied", "version", res.Source.Version, "duration_ms", res.Duration.Milliseconds())
	}
	version, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	r.log.Info("schema up to date", "version", version, "applied", len(results))
	return nil
}

// Down rolls back the latest migration, or every migration above target when
// target is positive.
func (r *Runner) Down(ctx context.Context, target int64) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if target > 0 {
		results, err := r.provider.DownTo(ctx, target)
		if err != nil {
			return fmt.Errorf("rollback to version %d: %w", target, err)
		}
		r.log.Info("rollback complete", "target", target, "reverted", len(results))
		return nil
	}
	res, err := r.provider.Down(ctx)
	if err != nil {
		return fmt.Errorf("rollback latest migration: %w", err)
	}
	r.log.Info("rollback complete", "version", res.Source.Version)
	return nil
}

// Status lists known migrations in version order.
func (r *Runner) Status(ctx context.Context) ([]Migration, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status: %w", err)
	}
	out := make([]Migration, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, Migration{
			Version:   st.Source.Version,
			Path:      st.Source.Path,
			Applied:   st.State == goose.StateApplied,
			AppliedAt: st.AppliedAt,
		})
	}
	return out, nil
}

// Close releases the underlying connection.
func (r *Runner) Close() error {
	return r.db.Close()
}
