package refresh

import (
	"fmt"
	"time"
)

// Config holds the configuration for one refresh coordinator.
type Config struct {
	// Name labels logs and metrics, e.g. "map" or "dashboard".
	Name string

	// Interval is the time between ticks.
	Interval time.Duration

	// Timeout bounds a single run and must not exceed Interval.
	Timeout time.Duration

	// ShutdownTimeout is how long Stop waits for an in-flight run.
	ShutdownTimeout time.Duration
}

// MapConfig returns the live map cadence (30 seconds).
func MapConfig() Config {
	return Config{
		Name:            "map",
		Interval:        30 * time.Second,
		Timeout:         30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// DashboardConfig returns the dashboard cadence (5 seconds).
func DashboardConfig() Config {
	return Config{
		Name:            "dashboard",
		Interval:        5 * time.Second,
		Timeout:         5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.Timeout > c.Interval {
		return fmt.Errorf("timeout %v exceeds interval %v", c.Timeout, c.Interval)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %v", c.ShutdownTimeout)
	}
	return nil
}
