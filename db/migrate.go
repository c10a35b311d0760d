package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/tern/v2/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	versionTable = "public.schema_version"

	// Advisory lock id: "brkt" in ASCII hex
	migrationLockID             = 0x62726b74
	migrationLockReleaseTimeout = 5 * time.Second
)

// ApplySchema brings the database to the latest migration. It uses its own
// short-lived pgx connection; the service pool stays on lib/pq.
func ApplySchema(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect for migrations: %w", err)
	}
	defer conn.Close(context.Background())

	unlock, err := migrationLock(ctx, conn)
	if err != nil {
		return err
	}
	defer unlock()

	return runMigrations(ctx, conn)
}

func runMigrations(ctx context.Context, conn *pgx.Conn) error {
	migrationFS, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	migrator, err := migrate.NewMigrator(ctx, conn, versionTable)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := migrator.LoadMigrations(migrationFS); err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	current, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		slog.Debug("could not get current schema version", slog.Any("error", err))
	} else {
		slog.Info("current schema version", slog.Int("version", int(current)), slog.Int("latest", len(migrator.Migrations)))
	}

	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func migrationLock(ctx context.Context, conn *pgx.Conn) (func(), error) {
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), migrationLockReleaseTimeout)
		defer cancel()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			slog.Error("failed to release migration lock", slog.Any("error", err))
		}
	}, nil
}

// Truncate empties every table and resets identities. Used by integration tests.
func Truncate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `TRUNCATE votes, pairings, brackets_items, users_brackets, users, brackets RESTART IDENTITY CASCADE`)
	if err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}
