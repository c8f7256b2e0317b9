package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/pickpath/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestValidateSnapshot(t *testing.T) {
	valid := func() *model.Snapshot { return createTestSnapshot("v", time.Now()) }

	tests := []struct {
		name    string
		mutate  func(*model.Snapshot) *model.Snapshot
		wantErr error
	}{
		{"valid", func(s *model.Snapshot) *model.Snapshot { return s }, nil},
		{"nil", func(*model.Snapshot) *model.Snapshot { return nil }, ErrNilParameter},
		{"missing id", func(s *model.Snapshot) *model.Snapshot { s.ID = ""; return s }, ErrInvalidSnapshot},
		{"missing strategy", func(s *model.Snapshot) *model.Snapshot { s.Strategy = ""; return s }, ErrInvalidSnapshot},
		{"missing timegaps", func(s *model.Snapshot) *model.Snapshot { s.Timegaps = nil; return s }, ErrInvalidSnapshot},
		{"no items", func(s *model.Snapshot) *model.Snapshot { s.Items = nil; return s }, ErrInvalidSnapshot},
		{"zero time", func(s *model.Snapshot) *model.Snapshot { s.CreatedAt = time.Time{}; return s }, ErrInvalidSnapshot},
		{"blank member", func(s *model.Snapshot) *model.Snapshot {
			s.Assignment[0] = append(s.Assignment[0], " ")
			return s
		}, ErrInvalidSnapshot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSnapshot(tt.mutate(valid()))
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSortTiming(t *testing.T) {
	assert.ErrorIs(t, validateSortTiming(nil), ErrNilParameter)
	assert.ErrorIs(t, validateSortTiming(&model.SortTiming{RecordedAt: time.Now(), Duration: -1}), ErrInvalidTiming)
	assert.ErrorIs(t, validateSortTiming(&model.SortTiming{}), ErrInvalidTiming)
	assert.NoError(t, validateSortTiming(&model.SortTiming{RecordedAt: time.Now(), ItemCount: 2}))
}

func TestStorage_ValidatesInputs(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	//nolint:staticcheck // nil context is the case under test
	assert.ErrorIs(t, store.SaveSnapshot(nil, createTestSnapshot("x", time.Now())), ErrNilContext)
	_, err := store.GetSnapshot(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyString)
	assert.ErrorIs(t, store.DeleteSnapshot(context.Background(), ""), ErrEmptyString)

	_, err = NewSQLiteStorage("")
	assert.ErrorIs(t, err, ErrEmptyString)
}
