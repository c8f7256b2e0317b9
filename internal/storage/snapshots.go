package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/pickpath/internal/common"
	"github.com/Veraticus/pickpath/internal/model"
)

// SaveSnapshot stores a compiled snapshot and all of its tables.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSnapshot(snap); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveSnapshotTx(ctx, tx, snap); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveSnapshotTx(ctx context.Context, tx *sql.Tx, snap *model.Snapshot) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, strategy, sentinel, item_count, cluster_count, trip_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.Strategy, snap.Timegaps.Sentinel(), len(snap.Items), snap.ClusterCount, snap.TripCount, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	gapStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO timegaps (snapshot_id, item_a, item_b, distance) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare timegap statement: %w", err)
	}
	defer func() { _ = gapStmt.Close() }()

	for _, p := range snap.Timegaps.Pairs() {
		d, _ := snap.Timegaps.Get(p.A, p.B)
		if _, err := gapStmt.ExecContext(ctx, snap.ID, p.A, p.B, d); err != nil {
			return fmt.Errorf("failed to insert timegap %s: %w", p, err)
		}
	}

	position := make(map[string]int, len(snap.Items))
	for i, item := range snap.Items {
		position[item] = i
	}

	clusterStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO clusters (snapshot_id, item, cluster_id, position) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cluster statement: %w", err)
	}
	defer func() { _ = clusterStmt.Close() }()

	for _, id := range snap.Assignment.IDs() {
		for _, item := range snap.Assignment[id] {
			if _, err := clusterStmt.ExecContext(ctx, snap.ID, item, id, position[item]); err != nil {
				return fmt.Errorf("failed to insert cluster member %q: %w", item, err)
			}
		}
	}

	for _, p := range snap.ClusterDistances.Pairs() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cluster_distances (snapshot_id, cluster_a, cluster_b, distance) VALUES (?, ?, ?, ?)
		`, snap.ID, p.A, p.B, snap.ClusterDistances[p])
		if err != nil {
			return fmt.Errorf("failed to insert cluster distance: %w", err)
		}
	}

	for id, d := range snap.Cohesion {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cluster_cohesion (snapshot_id, cluster_id, mean_distance) VALUES (?, ?, ?)
		`, snap.ID, id, d)
		if err != nil {
			return fmt.Errorf("failed to insert cluster cohesion: %w", err)
		}
	}

	return nil
}

// LatestSnapshot loads the most recently created snapshot.
func (s *SQLiteStorage) LatestSnapshot(ctx context.Context) (*model.Snapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT 1
	`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest snapshot: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest snapshot: %w", err)
	}

	return s.getSnapshot(ctx, s.db, id)
}

// GetSnapshot loads a snapshot by ID.
func (s *SQLiteStorage) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getSnapshot(ctx, s.db, id)
}

func (s *SQLiteStorage) getSnapshot(ctx context.Context, q queryable, id string) (*model.Snapshot, error) {
	var (
		snap      model.Snapshot
		sentinel  float64
		itemCount int
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, strategy, sentinel, item_count, cluster_count, trip_count, created_at
		FROM snapshots
		WHERE id = ?
	`, id).Scan(
		&snap.ID,
		&snap.Strategy,
		&sentinel,
		&itemCount,
		&snap.ClusterCount,
		&snap.TripCount,
		&snap.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if snap.Timegaps, err = s.loadTimegaps(ctx, q, id, sentinel); err != nil {
		return nil, err
	}
	if err := s.loadClusters(ctx, q, &snap, itemCount); err != nil {
		return nil, err
	}
	if snap.ClusterDistances, err = s.loadClusterDistances(ctx, q, id); err != nil {
		return nil, err
	}
	if snap.Cohesion, err = s.loadCohesion(ctx, q, id); err != nil {
		return nil, err
	}

	return &snap, nil
}

func (s *SQLiteStorage) loadTimegaps(ctx context.Context, q queryable, id string, sentinel float64) (*model.TimegapTable, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT item_a, item_b, distance FROM timegaps WHERE snapshot_id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query timegaps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	table := model.NewTimegapTable(sentinel)
	for rows.Next() {
		var a, b string
		var d float64
		if err := rows.Scan(&a, &b, &d); err != nil {
			return nil, fmt.Errorf("failed to scan timegap: %w", err)
		}
		table.Set(a, b, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timegaps: %w", err)
	}
	return table, nil
}

func (s *SQLiteStorage) loadClusters(ctx context.Context, q queryable, snap *model.Snapshot, itemCount int) error {
	rows, err := q.QueryContext(ctx, `
		SELECT item, cluster_id FROM clusters WHERE snapshot_id = ? ORDER BY position
	`, snap.ID)
	if err != nil {
		return fmt.Errorf("failed to query clusters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snap.Items = make([]string, 0, itemCount)
	snap.Assignment = make(model.ClusterAssignment)
	for rows.Next() {
		var item string
		var id int
		if err := rows.Scan(&item, &id); err != nil {
			return fmt.Errorf("failed to scan cluster member: %w", err)
		}
		snap.Items = append(snap.Items, item)
		snap.Assignment[id] = append(snap.Assignment[id], item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating clusters: %w", err)
	}

	snap.Index = model.NewClusterIndex(snap.Assignment)
	return nil
}

func (s *SQLiteStorage) loadClusterDistances(ctx context.Context, q queryable, id string) (model.ClusterDistanceTable, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT cluster_a, cluster_b, distance FROM cluster_distances WHERE snapshot_id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster distances: %w", err)
	}
	defer func() { _ = rows.Close() }()

	table := make(model.ClusterDistanceTable)
	for rows.Next() {
		var a, b int
		var d float64
		if err := rows.Scan(&a, &b, &d); err != nil {
			return nil, fmt.Errorf("failed to scan cluster distance: %w", err)
		}
		table[model.NewClusterPair(a, b)] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cluster distances: %w", err)
	}
	return table, nil
}

func (s *SQLiteStorage) loadCohesion(ctx context.Context, q queryable, id string) (model.ClusterCohesion, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT cluster_id, mean_distance FROM cluster_cohesion WHERE snapshot_id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster cohesion: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(model.ClusterCohesion)
	for rows.Next() {
		var cluster int
		var d float64
		if err := rows.Scan(&cluster, &d); err != nil {
			return nil, fmt.Errorf("failed to scan cluster cohesion: %w", err)
		}
		out[cluster] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cluster cohesion: %w", err)
	}
	return out, nil
}

// ListSnapshots returns snapshot summaries, newest first. limit <= 0 returns all.
func (s *SQLiteStorage) ListSnapshots(ctx context.Context, limit int) ([]model.SnapshotSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, item_count, cluster_count, trip_count, created_at
		FROM snapshots
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []model.SnapshotSummary
	for rows.Next() {
		var sum model.SnapshotSummary
		if err := rows.Scan(&sum.ID, &sum.Strategy, &sum.ItemCount, &sum.ClusterCount, &sum.TripCount, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return summaries, nil
}

// DeleteSnapshot removes a snapshot and its tables.
func (s *SQLiteStorage) DeleteSnapshot(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"timegaps", "clusters", "cluster_distances", "cluster_cohesion"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE snapshot_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("snapshot %s: %w", id, common.ErrNotFound)
	}

	return tx.Commit()
}
