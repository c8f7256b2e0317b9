// Package engine compiles trip logs into proximity snapshots and serves
// list-sequencing requests against the currently published snapshot.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Veraticus/pickpath/internal/cluster"
	"github.com/Veraticus/pickpath/internal/common"
	"github.com/Veraticus/pickpath/internal/distance"
	"github.com/Veraticus/pickpath/internal/model"
	"github.com/Veraticus/pickpath/internal/sequence"
	"github.com/Veraticus/pickpath/internal/service"
	"github.com/Veraticus/pickpath/internal/timegap"
	"github.com/google/uuid"
)

var (
	// ErrNoData indicates there is nothing to compile, or nothing compiled yet.
	ErrNoData = errors.New("no data")
	// ErrUnknownStage indicates a sort stage other than start, mid or end.
	ErrUnknownStage = errors.New("unknown sort stage")
	// ErrMissingAnchor indicates a mid-stage sort without an anchor item.
	ErrMissingAnchor = errors.New("mid stage requires an anchor item")
)

// Stage is the point of a shopping trip a sort request is made at.
type Stage string

// Sort stages.
const (
	StageStart Stage = "start"
	StageMid   Stage = "mid"
	StageEnd   Stage = "end"
)

// ParseStage normalizes a stage name.
func ParseStage(s string) (Stage, error) {
	switch st := Stage(strings.ToLower(strings.TrimSpace(s))); st {
	case StageStart, StageMid, StageEnd:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, s)
	}
}

// Config holds the tuning used for every compile.
type Config struct {
	Clustering cluster.Params
	Estimator  timegap.Options
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Clustering: cluster.DefaultParams(),
		Estimator:  timegap.DefaultOptions(),
	}
}

// Engine owns the published snapshot. Compiles are serialized; sorts read
// whichever snapshot was published when they started.
type Engine struct {
	store   service.Storage
	current atomic.Pointer[model.Snapshot]
	now     func() time.Time
	config  Config
	mu      sync.Mutex
}

// New creates an engine. store may be nil, in which case snapshots live in
// memory only.
func New(store service.Storage, config Config) *Engine {
	return &Engine{
		store:  store,
		config: config,
		now:    time.Now,
	}
}

// Load publishes the most recent stored snapshot, if there is one.
func (e *Engine) Load(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	snap, err := e.store.LatestSnapshot(ctx)
	if errors.Is(err, common.ErrNotFound) {
		slog.Debug("No stored snapshot to load")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	e.current.Store(snap)
	slog.Info("Loaded snapshot",
		"id", snap.ID,
		"strategy", snap.Strategy,
		"items", len(snap.Items),
		"clusters", snap.ClusterCount)
	return nil
}

// Snapshot returns the published snapshot, or nil before the first compile.
func (e *Engine) Snapshot() *model.Snapshot {
	return e.current.Load()
}

// Config returns the engine's compile configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Compile learns timegaps from records, clusters them with the named strategy
// and publishes the result. A batch without valid rows returns ErrNoData and
// leaves the published snapshot untouched.
func (e *Engine) Compile(ctx context.Context, records []model.TripRecord, strategy string) (*model.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := cluster.New(strategy, e.config.Clustering)
	if err != nil {
		return nil, err
	}

	started := e.now()
	estimate, err := timegap.Estimate(records, e.config.Estimator)
	if errors.Is(err, timegap.ErrNoValidRecords) {
		return nil, fmt.Errorf("%w: %d rows, none valid", ErrNoData, len(records))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to estimate timegaps: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := distance.Build(estimate.Items, estimate.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to build distance matrix: %w", err)
	}
	result, err := s.Fit(m)
	if err != nil {
		return nil, fmt.Errorf("failed to cluster with %s: %w", s.Name(), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := &model.Snapshot{
		CreatedAt:        e.now(),
		Timegaps:         estimate.Table,
		Assignment:       result.Assignment,
		Index:            result.Index,
		ClusterDistances: result.Distances,
		Cohesion:         result.Cohesion,
		ID:               uuid.NewString(),
		Strategy:         s.Name(),
		Items:            estimate.Items,
		ClusterCount:     result.Count,
		TripCount:        estimate.Trips,
	}

	if e.store != nil {
		if err := e.store.SaveSnapshot(ctx, snap); err != nil {
			return nil, fmt.Errorf("failed to save snapshot: %w", err)
		}
	}
	e.current.Store(snap)

	common.LogInfo("Compiled snapshot", common.Fields{
		"id":       snap.ID,
		"strategy": snap.Strategy,
		"items":    len(snap.Items),
		"trips":    snap.TripCount,
		"clusters": snap.ClusterCount,
		"observed": snap.Timegaps.Observed(),
		"elapsed":  e.now().Sub(started).String(),
	})
	return snap, nil
}

// Sort orders items for the given stage. start anchors on the first item, mid
// anchors on the item just picked and leaves it out of the reply, end returns
// items unchanged.
func (e *Engine) Sort(_ context.Context, stage Stage, anchor string, items []string) ([]string, error) {
	if stage == StageEnd {
		return append([]string(nil), items...), nil
	}

	snap := e.current.Load()
	if snap == nil {
		return nil, ErrNoData
	}
	tables := Tables(snap)

	switch stage {
	case StageStart:
		return sequence.Sequence("", items, tables)
	case StageMid:
		if anchor == "" {
			return nil, ErrMissingAnchor
		}
		list := items
		if !contains(items, anchor) {
			list = make([]string, 0, len(items)+1)
			list = append(list, anchor)
			list = append(list, items...)
		}
		return sequence.Sequence(anchor, list, tables)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
}

// RecordSortTiming stores how long an initial sort took. Without a store it
// only logs.
func (e *Engine) RecordSortTiming(ctx context.Context, customer, itemCount int, elapsed time.Duration) error {
	slog.Debug("Sort timing", "customer", customer, "items", itemCount, "duration", elapsed)
	if e.store == nil {
		return nil
	}
	timing := &model.SortTiming{
		RecordedAt:     e.now(),
		CustomerNumber: customer,
		ItemCount:      itemCount,
		Duration:       elapsed,
	}
	if err := e.store.RecordSortTiming(ctx, timing); err != nil {
		return fmt.Errorf("failed to record sort timing: %w", err)
	}
	return nil
}

// Tables exposes a snapshot's lookup structures to the sequencer.
func Tables(snap *model.Snapshot) sequence.Tables {
	return sequence.Tables{
		Index:    snap.Index,
		Clusters: snap.ClusterDistances,
		Timegaps: snap.Timegaps,
	}
}

func contains(items []string, item string) bool {
	for _, v := range items {
		if v == item {
			return true
		}
	}
	return false
}
