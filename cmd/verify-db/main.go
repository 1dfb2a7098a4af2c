// verify-db applies pending SQL migrations from ./migrations in filename order.
// Each file is applied once in its own transaction and recorded with its checksum;
// an applied file whose contents later change stops the run.
//
// Usage: go run ./cmd/verify-db
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tablet-tracker/internal/config"
	"tablet-tracker/internal/db"
	"tablet-tracker/internal/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// migratorLockID is distinct from the aggregation lock so a migration never waits on a recalculation.
const migratorLockID = 7462839

const migrationsDir = "migrations"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logging.New(cfg.LogLevel)

	connCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	pool, err := db.NewPool(connCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("[CONNECT] %v", err)
	}
	defer pool.Close()

	if err := run(context.Background(), pool, migrationsDir, log); err != nil {
		log.Fatal(err)
	}
	log.Info("[DONE] all migrations processed")
}

func run(ctx context.Context, pool *pgxpool.Pool, dir string, log logrus.FieldLogger) error {
	conn, err := acquireLock(ctx, pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	if err := setupSchemaMigrations(ctx, pool); err != nil {
		return err
	}

	files, err := discoverMigrations(dir)
	if err != nil {
		return err
	}
	for _, m := range files {
		applied, err := applyMigration(ctx, pool, dir, m)
		if err != nil {
			return err
		}
		entry := log.WithFields(logrus.Fields{"version": m.Version, "file": m.Filename})
		if applied {
			entry.Info("[APPLY]")
		} else {
			entry.Debug("[SKIP]")
		}
	}
	return nil
}

// acquireLock takes a session-level advisory lock on a dedicated connection.
// The lock is released when the connection is returned to the pool and closed.
func acquireLock(ctx context.Context, pool *pgxpool.Pool) (*pgxpool.Conn, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("[LOCK] acquire connection: %w", err)
	}
	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", migratorLockID).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("[LOCK] query advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, errors.New("[LOCK] another migrator is currently running")
	}
	return conn, nil
}

func setupSchemaMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

type migration struct {
	Version  string
	Filename string
	Checksum string
	SQL      string
}

// discoverMigrations reads every NNN_description.sql file in dir, sorted by name.
func discoverMigrations(dir string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("[DISCOVER] read %s: %w", dir, err)
	}

	var out []migration
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		name := entry.Name()
		version, err := extractVersion(name)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("[DISCOVER] duplicate version %s: %s and %s", version, prev, name)
		}
		seen[version] = name

		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("[DISCOVER] read %s: %w", name, err)
		}
		sum := sha256.Sum256(body)
		out = append(out, migration{Version: version, Filename: name, Checksum: hex.EncodeToString(sum[:]), SQL: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

func extractVersion(filename string) (string, error) {
	parts := strings.SplitN(filename, "_", 2)
	if len(parts) < 2 || parts[0] == "" {
		return "", fmt.Errorf("[DISCOVER] invalid migration filename %s: expected NNN_description.sql", filename)
	}
	return parts[0], nil
}

// applyMigration runs m unless its version is already recorded. It reports whether
// the file was applied on this run.
func applyMigration(ctx context.Context, pool *pgxpool.Pool, dir string, m migration) (bool, error) {
	var existing string
	err := pool.QueryRow(ctx, "SELECT checksum FROM schema_migrations WHERE version = $1", m.Version).Scan(&existing)
	switch {
	case err == nil:
		if existing != m.Checksum {
			return false, fmt.Errorf("checksum mismatch for %s: recorded %s, file %s", m.Filename, existing, m.Checksum)
		}
		return false, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return false, fmt.Errorf("query schema_migrations for %s: %w", m.Filename, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin %s: %w", m.Filename, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return false, fmt.Errorf("execute %s/%s: %w", dir, m.Filename, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, filename, checksum) VALUES ($1, $2, $3)",
		m.Version, m.Filename, m.Checksum); err != nil {
		return false, fmt.Errorf("record %s: %w", m.Filename, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit %s: %w", m.Filename, err)
	}
	return true, nil
}
