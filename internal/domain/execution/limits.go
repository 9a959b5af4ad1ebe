package execution

import "time"

const (
	DefaultTimeout      = 180 * time.Second
	DefaultPollInterval = time.Second
	DefaultSlowInstall  = 60 * time.Second
)

// RunLimits bounds the supervision of a single test container.
//
// A zero field falls back to the matching default.
type RunLimits struct {
	// Timeout is the wall-clock budget before the container is force-stopped.
	Timeout time.Duration
	// PollInterval is the delay between liveness checks.
	PollInterval time.Duration
	// SlowInstall marks otherwise healthy cases that took at least this long.
	SlowInstall time.Duration
}

// DefaultLimits returns the stock limits.
func DefaultLimits() RunLimits {
	return RunLimits{
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
		SlowInstall:  DefaultSlowInstall,
	}
}

// Normalize replaces non-positive fields with defaults.
func (l RunLimits) Normalize() RunLimits {
	if l.Timeout <= 0 {
		l.Timeout = DefaultTimeout
	}
	if l.PollInterval <= 0 {
		l.PollInterval = DefaultPollInterval
	}
	if l.SlowInstall <= 0 {
		l.SlowInstall = DefaultSlowInstall
	}
	return l
}
