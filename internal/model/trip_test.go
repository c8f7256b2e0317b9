package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"1", true},
		{"200", true},
		{"3.5", true},
		{"-1", true},
		{"Good", true},
		{"good", true},
		{" GOOD ", true},
		{"", false},
		{"bad", false},
		{"NaN", false},
		{"Inf", false},
		{"1a", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidStatus(tt.status))
		})
	}
}

func TestTripRecord_StartsTrip(t *testing.T) {
	assert.True(t, TripRecord{Item: "milk", Offset: 0, Status: "1"}.StartsTrip())
	assert.False(t, TripRecord{Item: "milk", Offset: 4, Status: "1"}.StartsTrip())
}
