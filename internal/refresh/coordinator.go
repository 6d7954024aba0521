// Package refresh runs periodic tasks on fixed cadences: the dashboard
// analysis (5s) and the live map (30s).
//
// A Coordinator never overlaps runs of its task. A tick that fires while a
// run is still in flight is skipped and counted.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DukeRupert/tsfwatch/internal/metrics"
)

// ErrAlreadyStarted is returned by Start on a coordinator that has been
// started before.
var ErrAlreadyStarted = errors.New("coordinator already started")

// Task is one refresh run. Errors are logged and counted; they never stop
// the coordinator.
type Task func(ctx context.Context) error

// Coordinator invokes a Task every Config.Interval.
type Coordinator struct {
	config Config
	task   Task
	logger *slog.Logger

	inFlight atomic.Bool
	runs     atomic.Int64
	skipped  atomic.Int64

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a Coordinator. It does nothing until Start is called.
func New(config Config, task Task, logger *slog.Logger) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if task == nil {
		return nil, errors.New("task is required")
	}

	return &Coordinator{
		config: config,
		task:   task,
		logger: logger.With("coordinator", config.Name),
		stopCh: make(chan struct{}),
	}, nil
}

// Name returns the configured coordinator name.
func (c *Coordinator) Name() string {
	return c.config.Name
}

// Start launches the tick loop. The first run happens one Interval after
// Start. The loop exits when Stop is called or ctx is done.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	c.wg.Add(1)
	go c.loop(ctx)

	c.logger.Info("refresh coordinator started", "interval", c.config.Interval)
	return nil
}

// Stop ends the tick loop and waits up to ShutdownTimeout for an in-flight
// run. It is safe to call more than once and before Start.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			c.logger.Info("refresh coordinator stopped")
		case <-time.After(c.config.ShutdownTimeout):
			c.logger.Warn("refresh coordinator shutdown timeout exceeded, a run may still be in flight")
		}
	})
}

// RunOnce runs the task now unless a run is already in flight. It reports
// whether the task ran.
func (c *Coordinator) RunOnce(ctx context.Context) bool {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.skipped.Add(1)
		metrics.RefreshSkipped(c.config.Name)
		c.logger.Debug("refresh skipped, previous run still in flight")
		return false
	}
	defer c.inFlight.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	err := c.task(runCtx)
	elapsed := time.Since(start)
	c.runs.Add(1)

	if err != nil {
		metrics.RefreshFailed(c.config.Name, elapsed)
		c.logger.Error("refresh failed", "error", err, "duration", elapsed)
		return true
	}

	metrics.RefreshCompleted(c.config.Name, elapsed)
	c.logger.Debug("refresh completed", "duration", elapsed)
	return true
}

// Runs returns the number of completed or failed runs.
func (c *Coordinator) Runs() int64 {
	return c.runs.Load()
}

// Skipped returns the number of ticks dropped because a run was in flight.
func (c *Coordinator) Skipped() int64 {
	return c.skipped.Load()
}

func (c *Coordinator) loop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Runs happen off the loop goroutine so a slow task surfaces as
			// skipped ticks instead of a drifting ticker.
			if c.inFlight.Load() {
				c.skipped.Add(1)
				metrics.RefreshSkipped(c.config.Name)
				continue
			}
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.RunOnce(ctx)
			}()
		}
	}
}
