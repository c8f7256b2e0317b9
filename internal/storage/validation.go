package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/pickpath/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	ErrInvalidTiming   = errors.New("invalid sort timing")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateSnapshot checks that a snapshot is complete enough to store.
func validateSnapshot(snap *model.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: snapshot", ErrNilParameter)
	}
	if snap.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidSnapshot)
	}
	if snap.Strategy == "" {
		return fmt.Errorf("%w: missing strategy", ErrInvalidSnapshot)
	}
	if snap.Timegaps == nil {
		return fmt.Errorf("%w: missing timegap table", ErrInvalidSnapshot)
	}
	if len(snap.Items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidSnapshot)
	}
	if snap.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing creation time", ErrInvalidSnapshot)
	}
	for id, members := range snap.Assignment {
		for _, item := range members {
			if strings.TrimSpace(item) == "" {
				return fmt.Errorf("%w: empty item in cluster %d", ErrInvalidSnapshot, id)
			}
		}
	}
	return nil
}

// validateSortTiming checks a timing row.
func validateSortTiming(timing *model.SortTiming) error {
	if timing == nil {
		return fmt.Errorf("%w: timing", ErrNilParameter)
	}
	if timing.Duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidTiming)
	}
	if timing.ItemCount < 0 {
		return fmt.Errorf("%w: negative item count", ErrInvalidTiming)
	}
	if timing.RecordedAt.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidTiming)
	}
	return nil
}
