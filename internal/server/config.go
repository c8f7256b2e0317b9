package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/pickpath/internal/cluster"
	"github.com/Veraticus/pickpath/internal/recordings"
)

// Config holds the listener and request-handling settings.
type Config struct {
	Addr        string
	DataDir     string
	Strategy    string
	Pattern     string
	ReadTimeout time.Duration
	AcceptRate  float64
	AcceptBurst int
	Workers     int
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        "localhost:8080",
		DataDir:     ".",
		Strategy:    cluster.StrategyHierarchical,
		Pattern:     recordings.DefaultPattern,
		ReadTimeout: 30 * time.Second,
		AcceptRate:  50,
		AcceptBurst: 10,
		Workers:     10,
	}
}

// Validate checks the configuration for obviously unusable values.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("server address is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("server workers must be positive, got %d", c.Workers)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive, got %s", c.ReadTimeout)
	}
	if c.AcceptRate < 0 || c.AcceptBurst < 0 {
		return errors.New("server accept rate and burst must not be negative")
	}
	return nil
}
