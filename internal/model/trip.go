// Package model defines the core domain models used throughout the application.
package model

import (
	"math"
	"strconv"
	"strings"
)

// GoodStatus is the literal status marker some scanners write instead of a numeric code.
const GoodStatus = "good"

// TripRecord is one scan event inside a shopping trip.
type TripRecord struct {
	Item   string
	Status string
	Offset float64 // Seconds since the first scan of the trip
}

// Valid reports whether the row's status marks it as usable data.
func (r TripRecord) Valid() bool {
	return IsValidStatus(r.Status)
}

// StartsTrip reports whether the record is the first scan of a new trip.
func (r TripRecord) StartsTrip() bool {
	return r.Offset == 0
}

// IsValidStatus accepts finite numbers, digit strings and the "good" marker.
func IsValidStatus(status string) bool {
	s := strings.TrimSpace(status)
	if s == "" {
		return false
	}
	if strings.EqualFold(s, GoodStatus) {
		return true
	}
	if isDigits(s) {
		return true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
