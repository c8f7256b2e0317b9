// Package service defines the interfaces shared between the application layers.
package service

import (
	"context"

	"github.com/Veraticus/pickpath/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Snapshot operations
	SaveSnapshot(ctx context.Context, snapshot *model.Snapshot) error
	LatestSnapshot(ctx context.Context) (*model.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]model.SnapshotSummary, error)
	DeleteSnapshot(ctx context.Context, id string) error

	// Sort timing operations
	RecordSortTiming(ctx context.Context, timing *model.SortTiming) error
	GetSortTimings(ctx context.Context, limit int) ([]model.SortTiming, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}
