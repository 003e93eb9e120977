package database

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
)

// MigrationsFS is set by the migrations package to the embedded SQL files.
// Files are named NNNN_description.up.sql; NNNN is the schema version.
var MigrationsFS fs.FS

// Migration is one forward schema step.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

// SchemaVersion returns the schema version recorded in PRAGMA user_version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// Migrate applies every migration newer than the stored schema version.
// Each step and its user_version bump commit together.
func (db *DB) Migrate(ctx context.Context) error {
	migrations, err := loadMigrations(MigrationsFS)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %04d (%s): %w", m.Version, m.Name, err)
		}
		current = m.Version
	}
	return nil
}

func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	// PRAGMA does not take bound parameters; Version is an int.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return tx.Commit()
}

// loadMigrations reads every *.up.sql file from fsys in version order.
// Duplicate versions are an error.
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}
		upSQL, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{Version: version, Name: name, UpSQL: string(upSQL)})
	}

	slices.SortFunc(migrations, func(a, b Migration) int { return a.Version - b.Version })
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %04d", migrations[i].Version)
		}
	}
	return migrations, nil
}

// parseMigrationFilename splits "0001_settings.up.sql" into 1 and "settings".
func parseMigrationFilename(filename string) (version int, name string, ok bool) {
	base, found := strings.CutSuffix(filename, ".up.sql")
	if !found {
		return 0, "", false
	}
	num, name, found := strings.Cut(base, "_")
	if !found || name == "" {
		return 0, "", false
	}
	v, err := strconv.Atoi(num)
	if err != nil || v <= 0 {
		return 0, "", false
	}
	return v, name, true
}
