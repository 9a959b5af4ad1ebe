package docker

import (
	"log/slog"
	"time"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
)

const (
	// DefaultMountTarget is where the worker scratch directory appears in the container.
	DefaultMountTarget = "/io"
	// PackageListEnv carries the installer package list into the container.
	PackageListEnv = "PACKAGE_LIST"

	defaultStopGrace    = 10 * time.Second
	defaultCleanupLimit = 30 * time.Second
)

// Config describes how the Runner launches and supervises containers.
type Config struct {
	Limits      execution.RunLimits
	MountTarget string
	// StopGrace is how long the daemon waits for SIGTERM before SIGKILL
	// when a timed out container is stopped.
	StopGrace time.Duration
	Logger    *slog.Logger
}

func (c Config) normalize() Config {
	c.Limits = c.Limits.Normalize()
	if c.MountTarget == "" {
		c.MountTarget = DefaultMountTarget
	}
	if c.StopGrace <= 0 {
		c.StopGrace = defaultStopGrace
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
