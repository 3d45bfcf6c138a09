package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// MigrationStatus represents the status of a migration (applied or pending).
type MigrationStatus struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// Migrator applies the SQL migrations embedded in the binary.
type Migrator struct {
	pool *pgxpool.Pool
	fsys fs.FS
}

// NewMigrator creates a Migrator over the embedded migrations directory.
func NewMigrator(pool *pgxpool.Pool) (*Migrator, error) {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return &Migrator{pool: pool, fsys: sub}, nil
}

// Sources lists the migration file names in version order.
func (m *Migrator) Sources() ([]string, error) {
	names, err := fs.Glob(m.fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	return names, nil
}

func (m *Migrator) provider() (*goose.Provider, func() error, error) {
	sqlDB := stdlib.OpenDBFromPool(m.pool)
	p, err := goose.NewProvider(goose.DialectPostgres, sqlDB, m.fsys)
	if err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("create migration provider: %w", err)
	}
	return p, sqlDB.Close, nil
}

// Up applies all pending migrations. Each migration runs in its own
// transaction. Returns the count of applied migrations.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	p, closeFn, err := m.provider()
	if err != nil {
		return 0, err
	}
	defer closeFn() //nolint:errcheck

	results, err := p.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("apply migrations: %w", err)
	}
	return len(results), nil
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) (string, error) {
	p, closeFn, err := m.provider()
	if err != nil {
		return "", err
	}
	defer closeFn() //nolint:errcheck

	res, err := p.Down(ctx)
	if err != nil {
		return "", fmt.Errorf("roll back migration: %w", err)
	}
	if res == nil || res.Source == nil {
		return "", nil
	}
	return res.Source.Path, nil
}

// Status returns the status of all known migrations, applied and pending.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	p, closeFn, err := m.provider()
	if err != nil {
		return nil, err
	}
	defer closeFn() //nolint:errcheck

	list, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status: %w", err)
	}

	statuses := make([]MigrationStatus, 0, len(list))
	for _, s := range list {
		st := MigrationStatus{
			Version: s.Source.Version,
			Name:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		}
		if st.Applied {
			at := s.AppliedAt
			st.AppliedAt = &at
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
