package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/pickpath/internal/model"
)

// RecordSortTiming appends one sort timing. The generated ID is written back.
func (s *SQLiteStorage) RecordSortTiming(ctx context.Context, timing *model.SortTiming) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSortTiming(timing); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO sort_timings (customer_number, item_count, duration_ns, recorded_at)
		VALUES (?, ?, ?, ?)
	`, timing.CustomerNumber, timing.ItemCount, int64(timing.Duration), timing.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record sort timing: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get sort timing ID: %w", err)
	}
	timing.ID = id
	return nil
}

// GetSortTimings returns recorded timings, newest first. limit <= 0 returns all.
func (s *SQLiteStorage) GetSortTimings(ctx context.Context, limit int) ([]model.SortTiming, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_number, item_count, duration_ns, recorded_at
		FROM sort_timings
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sort timings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var timings []model.SortTiming
	for rows.Next() {
		var t model.SortTiming
		var ns int64
		if err := rows.Scan(&t.ID, &t.CustomerNumber, &t.ItemCount, &ns, &t.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sort timing: %w", err)
		}
		t.Duration = time.Duration(ns)
		timings = append(timings, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sort timings: %w", err)
	}
	return timings, nil
}
