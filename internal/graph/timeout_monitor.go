package graph

import (
	"log/slog"
	"time"
)

// TimeoutMonitor logs how close long-running transactions come to their
// configured timeout
type TimeoutMonitor struct {
	logger       *slog.Logger
	warningRatio float64 // warn when a run uses this share of its timeout
}

// NewTimeoutMonitor creates a monitor that warns at 80% of the timeout
func NewTimeoutMonitor() *TimeoutMonitor {
	return &TimeoutMonitor{
		logger:       slog.Default().With("component", "timeout_monitor"),
		warningRatio: 0.8,
	}
}

// Observe runs fn and logs its duration against the transaction timeout
// of operation. fn's error is returned unchanged.
func (tm *TimeoutMonitor) Observe(operation string, fn func() error) error {
	timeout := GetConfigForOperation(operation).Timeout
	start := time.Now()
	err := fn()
	duration := time.Since(start)

	switch {
	case err != nil && timeout > 0 && duration >= timeout:
		tm.logger.Error("transaction timed out",
			"operation", operation,
			"duration_seconds", duration.Seconds(),
			"timeout_seconds", timeout.Seconds(),
			"error", err)
	case err != nil:
		tm.logger.Warn("transaction failed",
			"operation", operation,
			"duration_seconds", duration.Seconds(),
			"error", err)
	case timeout > 0 && duration >= time.Duration(float64(timeout)*tm.warningRatio):
		tm.logger.Warn("transaction approaching timeout",
			"operation", operation,
			"duration_seconds", duration.Seconds(),
			"timeout_seconds", timeout.Seconds(),
			"percent_used", duration.Seconds()/timeout.Seconds()*100)
	default:
		tm.logger.Debug("transaction completed",
			"operation", operation,
			"duration_seconds", duration.Seconds())
	}
	return err
}
