package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial snapshot schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS snapshots (
					id TEXT PRIMARY KEY,
					strategy TEXT NOT NULL,
					sentinel REAL NOT NULL,
					item_count INTEGER NOT NULL,
					cluster_count INTEGER NOT NULL,
					trip_count INTEGER NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_snapshots_created_at ON snapshots(created_at)`,

				`CREATE TABLE IF NOT EXISTS timegaps (
					snapshot_id TEXT NOT NULL,
					item_a TEXT NOT NULL,
					item_b TEXT NOT NULL,
					distance REAL NOT NULL,
					PRIMARY KEY (snapshot_id, item_a, item_b),
					FOREIGN KEY (snapshot_id) REFERENCES snapshots(id)
				)`,

				`CREATE TABLE IF NOT EXISTS clusters (
					snapshot_id TEXT NOT NULL,
					item TEXT NOT NULL,
					cluster_id INTEGER NOT NULL,
					position INTEGER NOT NULL,
					PRIMARY KEY (snapshot_id, item),
					FOREIGN KEY (snapshot_id) REFERENCES snapshots(id)
				)`,
				`CREATE INDEX idx_clusters_cluster ON clusters(snapshot_id, cluster_id)`,

				`CREATE TABLE IF NOT EXISTS cluster_distances (
					snapshot_id TEXT NOT NULL,
					cluster_a INTEGER NOT NULL,
					cluster_b INTEGER NOT NULL,
					distance REAL NOT NULL,
					PRIMARY KEY (snapshot_id, cluster_a, cluster_b),
					FOREIGN KEY (snapshot_id) REFERENCES snapshots(id)
				)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add sort timings",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS sort_timings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					customer_number INTEGER NOT NULL,
					item_count INTEGER NOT NULL,
					duration_ns INTEGER NOT NULL,
					recorded_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_sort_timings_recorded_at ON sort_timings(recorded_at)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add cluster cohesion",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS cluster_cohesion (
				snapshot_id TEXT NOT NULL,
				cluster_id INTEGER NOT NULL,
				mean_distance REAL NOT NULL,
				PRIMARY KEY (snapshot_id, cluster_id),
				FOREIGN KEY (snapshot_id) REFERENCES snapshots(id)
			)`)
			if err != nil {
				return fmt.Errorf("failed to create cluster_cohesion table: %w", err)
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
