package docker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/ports"
)

// Runner executes test cases in detached Docker containers.
type Runner struct {
	cli    dockerClient
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// ensure Runner implements ports.CaseRunner.
var _ ports.CaseRunner = (*Runner)(nil)

// New creates a Runner talking to the daemon configured in the environment.
func New(cfg Config) (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return newRunnerWithClient(cli, cfg), nil
}

func newRunnerWithClient(cli dockerClient, cfg Config) *Runner {
	cfg = cfg.normalize()
	return &Runner{
		cli:    cli,
		cfg:    cfg,
		logger: cfg.Logger,
		now:    time.Now,
	}
}

// Ping checks that the Docker daemon is reachable.
func (r *Runner) Ping(ctx context.Context) error {
	if _, err := r.cli.Ping(ctx); err != nil {
		return fmt.Errorf("ping docker daemon: %w", err)
	}
	return nil
}

// Close releases the underlying Docker client resources.
func (r *Runner) Close() error {
	if r.cli == nil {
		return nil
	}
	return r.cli.Close()
}

// Run launches tc in a fresh container, supervises it until it exits or the
// timeout expires, and removes the container on every path. Cancelling ctx
// stops the container and yields an interrupted report.
func (r *Runner) Run(ctx context.Context, scratch ports.Scratch, tc execution.TestCase) execution.RunReport {
	logger := r.logger.With("installer", tc.Installer, "package", tc.Package, "test", tc.TestName)

	if ctx.Err() != nil {
		return execution.Interrupted(tc, false)
	}

	if err := scratch.WriteTestScript(tc.Script); err != nil {
		logger.Error("failed to prepare test script", "err", err)
		return execution.LaunchFailure(tc, err)
	}

	containerID, err := r.createContainer(ctx, scratch, tc)
	if err != nil {
		if ctx.Err() != nil {
			return execution.Interrupted(tc, false)
		}
		logger.Error("failed to create container", "err", err)
		return execution.LaunchFailure(tc, err)
	}
	defer r.removeContainer(containerID, logger)

	start := r.now()
	if err := r.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		if ctx.Err() != nil {
			return execution.Interrupted(tc, false)
		}
		logger.Error("failed to start container", "err", err)
		return execution.LaunchFailure(tc, fmt.Errorf("start container: %w", err))
	}

	state := r.supervise(ctx, containerID, start, logger)
	if state == stateInterrupted {
		logger.Warn("case interrupted, not recorded")
		return execution.Interrupted(tc, true)
	}
	timedOut := state == stateTimedOut

	exitCode := r.exitCode(containerID, logger)
	output, err := r.fetchLogs(containerID)
	if err != nil {
		logger.Warn("failed to fetch container logs", "err", err)
		output += fmt.Sprintf("\n[wheel-tester] fetch logs: %v\n", err)
	}
	elapsed := r.now().Sub(start)

	result := execution.Classify(execution.Observation{
		ExitCode: exitCode,
		Elapsed:  elapsed,
		Output:   output,
		TimedOut: timedOut,
	}, tc.Package, r.cfg.Limits)

	logger.Info("case finished",
		"outcome", result.Outcome(),
		"exit_code", exitCode,
		"elapsed", elapsed.Round(time.Millisecond),
	)

	return execution.RunReport{
		Case:     tc,
		Result:   result,
		ExitCode: exitCode,
		Duration: elapsed,
		Launched: true,
	}
}

func (r *Runner) createContainer(ctx context.Context, scratch ports.Scratch, tc execution.TestCase) (string, error) {
	resp, err := r.cli.ContainerCreate(
		ctx,
		&container.Config{
			Image: tc.Image,
			Env:   []string{PackageListEnv + "=" + tc.Identifier},
			Cmd:   []string{"bash", path.Join(r.cfg.MountTarget, tc.HelperScript)},
		},
		&container.HostConfig{
			Mounts: []mount.Mount{
				{
					Type:   mount.TypeBind,
					Source: scratch.MountSource(),
					Target: r.cfg.MountTarget,
				},
			},
		},
		nil,
		nil,
		"",
	)
	if err != nil {
		return "", fmt.Errorf("create container from %s: %w", tc.Image, err)
	}
	return resp.ID, nil
}

type caseState int

const (
	stateExited caseState = iota
	stateTimedOut
	stateInterrupted
)

// supervise polls the container until it stops, the timeout expires or ctx
// ends. Timed out and interrupted containers are stopped before returning.
func (r *Runner) supervise(ctx context.Context, containerID string, start time.Time, logger *slog.Logger) caseState {
	ticker := time.NewTicker(r.cfg.Limits.PollInterval)
	defer ticker.Stop()

	for {
		running, err := r.isRunning(ctx, containerID)
		switch {
		case ctx.Err() != nil:
			r.stopContainer(containerID, logger)
			return stateInterrupted
		case err != nil:
			// Treated as still running; the timeout check below still applies.
			logger.Debug("inspect failed, retrying", "err", err)
		case !running:
			return stateExited
		}

		if r.now().Sub(start) > r.cfg.Limits.Timeout {
			logger.Warn("case timed out, stopping container", "timeout", r.cfg.Limits.Timeout)
			r.stopContainer(containerID, logger)
			return stateTimedOut
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			r.stopContainer(containerID, logger)
			return stateInterrupted
		}
	}
}

func (r *Runner) isRunning(ctx context.Context, containerID string) (bool, error) {
	info, err := r.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return false, err
	}
	if info.ContainerJSONBase == nil || info.State == nil {
		return false, fmt.Errorf("inspect %s: missing state", containerID)
	}
	return info.State.Running, nil
}

func (r *Runner) stopContainer(containerID string, logger *slog.Logger) {
	grace := int(r.cfg.StopGrace / time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StopGrace+defaultCleanupLimit)
	defer cancel()

	if err := r.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &grace}); err != nil && !client.IsErrNotFound(err) {
		logger.Warn("failed to stop container", "container", containerID, "err", err)
	}
}

// exitCode reads the container exit status. Anything unobtainable is
// reported as -1 so the case fails.
func (r *Runner) exitCode(containerID string, logger *slog.Logger) int64 {
	ctx, cancel := context.WithTimeout(context.Background(), defaultCleanupLimit)
	defer cancel()

	info, err := r.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		logger.Warn("failed to read exit status", "err", err)
		return -1
	}
	if info.ContainerJSONBase == nil || info.State == nil || info.State.Running {
		return -1
	}
	return int64(info.State.ExitCode)
}

func (r *Runner) fetchLogs(containerID string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultCleanupLimit)
	defer cancel()

	logs, err := r.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", err
	}
	defer logs.Close()

	var combined bytes.Buffer
	if _, err := stdcopy.StdCopy(&combined, &combined, logs); err != nil {
		return combined.String(), err
	}
	return combined.String(), nil
}

func (r *Runner) removeContainer(containerID string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultCleanupLimit)
	defer cancel()

	if err := r.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		logger.Warn("failed to remove container", "container", containerID, "err", err)
	}
}
