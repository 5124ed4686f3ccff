package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/noospace/noospace/pkg/models"
)

// SchemaVersion is the layout the current code expects.
const SchemaVersion = 2

// MigrationStep transforms the stored layout from the previous version to
// Version. Steps must be idempotent-safe: there is no applied-step ledger
// beyond the version number itself, so a step interrupted mid-way may be
// re-run in full on the next start.
type MigrationStep struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, tx *sql.Tx) error
}

// migrations returns all steps in ascending version order.
func migrations() []MigrationStep {
	return []MigrationStep{
		{
			Version: 1,
			Name:    "base tables",
			Apply:   migrateV1,
		},
		{
			Version: 2,
			Name:    "split views into space_view_state and app_settings",
			Apply:   migrateV2,
		},
	}
}

// migrateV1 creates the original layout: spaces, nodes, edges and views,
// with views keyed directly by space id.
func migrateV1(ctx context.Context, tx *sql.Tx) error {
	schema := `
		CREATE TABLE IF NOT EXISTS spaces (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			space_id TEXT NOT NULL,
			data TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_nodes_space ON nodes(space_id);

		CREATE TABLE IF NOT EXISTS edges (
			id TEXT PRIMARY KEY,
			space_id TEXT NOT NULL,
			data TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_edges_space ON edges(space_id);

		CREATE TABLE IF NOT EXISTS views (
			space_id TEXT PRIMARY KEY,
			data TEXT NOT NULL
		);
	`
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create v1 schema: %w", err)
	}
	return nil
}

// migrateV2 renames views to space_view_state (copying every record
// verbatim) and introduces the app_settings singleton with the last-opened
// space unset. The presence checks keep a partial earlier run harmless.
func migrateV2(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS space_view_state (
			space_id TEXT PRIMARY KEY,
			data TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create space_view_state: %w", err)
	}

	var hasViews bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'views')
	`).Scan(&hasViews)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if hasViews {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO space_view_state (space_id, data)
			SELECT space_id, data FROM views
		`); err != nil {
			return fmt.Errorf("failed to copy views: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DROP TABLE views`); err != nil {
			return fmt.Errorf("failed to drop views: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			data TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create app_settings: %w", err)
	}

	settings, err := json.Marshal(models.AppSettings{SchemaVersion: 2})
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO app_settings (key, data) VALUES (?, ?)
	`, models.SettingsKey, string(settings)); err != nil {
		return fmt.Errorf("failed to seed app_settings: %w", err)
	}
	return nil
}

// Version returns the highest applied schema version, 0 for a fresh file.
func (s *SQLiteStore) Version(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version(ctx)
}

func (s *SQLiteStore) version(ctx context.Context) (int, error) {
	if err := s.ensureVersionTable(ctx); err != nil {
		return 0, err
	}
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}

func (s *SQLiteStore) ensureVersionTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}
	return nil
}

// Migrate applies every step above the recorded version, ascending, inside
// one transaction per upgrade pass. If any step fails the pass rolls back
// and the recorded version is unchanged.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.version(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	var pending []MigrationStep
	for _, step := range migrations() {
		if step.Version > current {
			pending = append(pending, step)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	defer tx.Rollback()

	for _, step := range pending {
		if err := step.Apply(ctx, tx); err != nil {
			return fmt.Errorf("%w: step %d (%s): %v", ErrMigrationFailed, step.Version, step.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, step.Version); err != nil {
			return fmt.Errorf("%w: step %d: %v", ErrMigrationFailed, step.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	return nil
}
