package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// Runner applies goose migrations from fsys. The SQL uses Postgres enums and
// partial indexes; sqlite schemas come from SchemaModels instead.
type Runner struct {
	provider *goose.Provider
}

// NewRunner builds a runner over db. A nil fsys means the embedded migrations.
func NewRunner(db *sql.DB, fsys fs.FS) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if fsys == nil {
		fsys = Embedded()
	}
	if err := ValidateFS(fsys); err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

// Up applies every pending migration and returns how many ran.
func (r *Runner) Up(ctx context.Context) (int, error) {
	results, err := r.provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("goose up: %w", err)
	}
	return len(results), nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) error {
	if _, err := r.provider.Down(ctx); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// To migrates up or down until the database sits at version
// (YYYYMMDDHHMMSS).
func (r *Runner) To(ctx context.Context, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", version, err)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current < target:
		_, err = r.provider.UpTo(ctx, target)
	case current > target:
		_, err = r.provider.DownTo(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("goose to %d: %w", target, err)
	}
	return nil
}

// Status writes one line per known migration.
func (r *Runner) Status(ctx context.Context, w io.Writer) error {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	for _, st := range statuses {
		applied := "pending"
		if st.State == goose.StateApplied {
			applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%-19s %s\n", applied, st.Source.Path)
	}
	return nil
}
