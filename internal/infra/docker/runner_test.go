package docker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/mount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
)

func newTestRunner(cli *fakeDockerClient, limits execution.RunLimits) *Runner {
	return newRunnerWithClient(cli, Config{
		Limits: limits,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func fastLimits() execution.RunLimits {
	return execution.RunLimits{
		Timeout:      40 * time.Millisecond,
		PollInterval: 2 * time.Millisecond,
		SlowInstall:  time.Minute,
	}
}

func numpyCase() execution.TestCase {
	return execution.TestCase{
		Package:      "numpy",
		Installer:    execution.InstallerPip,
		Identifier:   "numpy",
		Target:       "focal",
		Image:        "wheel-tester/focal",
		HelperScript: "container-script.sh",
		Script:       "import numpy\n",
		TestName:     "focal",
	}
}

func TestRunCompletedCase(t *testing.T) {
	t.Parallel()

	cli := newFakeDockerClient()
	cli.onCreate(func(id string) *fakeContainer {
		return &fakeContainer{
			runningPolls: 2,
			exitCode:     0,
			logs:         multiplexedLogs("Successfully installed numpy\n", "WARNING: pip is old\n"),
		}
	})
	scratch := &fakeScratch{}
	runner := newTestRunner(cli, fastLimits())

	report := runner.Run(context.Background(), scratch, numpyCase())

	assert.Equal(t, execution.Result{
		Passed: true,
		Output: "Successfully installed numpy\nWARNING: pip is old\n",
	}, report.Result)
	assert.Equal(t, int64(0), report.ExitCode)
	assert.True(t, report.Launched)
	assert.False(t, report.Interrupted)
	assert.Equal(t, []string{"import numpy\n"}, scratch.scripts)

	require.Len(t, cli.createCalls, 1)
	call := cli.createCalls[0]
	assert.Equal(t, "wheel-tester/focal", call.config.Image)
	assert.Equal(t, []string{"PACKAGE_LIST=numpy"}, call.config.Env)
	assert.Equal(t, []string{"bash", "/io/container-script.sh"}, []string(call.config.Cmd))
	require.Len(t, call.hostConfig.Mounts, 1)
	assert.Equal(t, mount.Mount{Type: mount.TypeBind, Source: "/host/work/work_pid_1_0", Target: "/io"}, call.hostConfig.Mounts[0])

	assert.Empty(t, cli.stopCalls)
	assert.Equal(t, []string{call.id}, cli.removeCalls)
}

func TestRunTimeoutOverridesLaterExitStatus(t *testing.T) {
	t.Parallel()

	cli := newFakeDockerClient()
	cli.onCreate(func(id string) *fakeContainer {
		return &fakeContainer{
			runningPolls: -1,
			stopExitCode: 0,
			logs:         multiplexedLogs("Collecting numpy\n", ""),
		}
	})
	runner := newTestRunner(cli, fastLimits())

	report := runner.Run(context.Background(), &fakeScratch{}, numpyCase())

	assert.True(t, report.Result.TimedOut)
	assert.False(t, report.Result.Passed)
	assert.Equal(t, int64(0), report.ExitCode)
	assert.Equal(t, "Collecting numpy\n", report.Result.Output)
	assert.Len(t, cli.stopCalls, 1)
	assert.Len(t, cli.removeCalls, 1)
	assert.Greater(t, report.Duration, fastLimits().Timeout)
}

func TestRunBuildRequired(t *testing.T) {
	t.Parallel()

	cli := newFakeDockerClient()
	cli.onCreate(func(id string) *fakeContainer {
		return &fakeContainer{logs: multiplexedLogs("Building wheel for numpy (setup.py)\n", "")}
	})
	runner := newTestRunner(cli, fastLimits())

	report := runner.Run(context.Background(), &fakeScratch{}, numpyCase())

	assert.True(t, report.Result.Passed)
	assert.True(t, report.Result.BuildRequired)
}

func TestRunSlowInstall(t *testing.T) {
	t.Parallel()

	cli := newFakeDockerClient()
	cli.onCreate(func(id string) *fakeContainer { return &fakeContainer{} })
	runner := newTestRunner(cli, fastLimits())

	base := time.Now()
	var mu sync.Mutex
	calls := 0
	runner.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(65 * time.Second)
	}

	report := runner.Run(context.Background(), &fakeScratch{}, numpyCase())

	assert.True(t, report.Result.Passed)
	assert.True(t, report.Result.SlowInstall)
	assert.Equal(t, 65*time.Second, report.Duration)
}

func TestRunNonZeroExit(t *testing.T) {
	t.Parallel()

	cli := newFakeDockerClient()
	cli.onCreate(func(id string) *fakeContainer {
		return &fakeContainer{runningPolls: 1, exitCode: 1}
	})
	runner := newTestRunner(cli, fastLimits())

	report := runner.Run(context.Background(), &fakeScratch{}, numpyCase())

	assert.False(t, report.Result.Passed)
	assert.False(t, report.Result.TimedOut)
	assert.Equal(t, int64(1), report.ExitCode)
}

func TestRunRetriesTransientInspectErrors(t *testing.T) {
	t.Parallel()

	cli := newFakeDockerClient()
	cli.onCreate(func(id string) *fakeContainer {
		return &fakeContainer{inspectErrs: 3, runningPolls: 1}
	})
	runner := newTestRunner(cli, fastLimits())

	report := runner.Run(context.Background(), &fakeScratch{}, numpyCase())

	assert.True(t, report.Result.Passed)
	assert.False(t, report.Result.TimedOut)
}

func TestRunUnobtainableExitStatusFails(t *testing.T) {
	t.Parallel()

	cli := newFakeDockerClient()
	cli.onCreate(func(id string) *fakeContainer {
		return &fakeContainer{runningPolls: -1, ignoreStop: true}
	})
	runner := newTestRunner(cli, fastLimits())

	report := runner.Run(context.Background(), &fakeScratch{}, numpyCase())

	assert.True(t, report.Result.TimedOut)
	assert.False(t, report.Result.Passed)
	assert.Equal(t, int64(-1), report.ExitCode)
	assert.True(t, report.Launched)
	assert.Len(t, cli.removeCalls, 1)
}

func TestRunCreateFailure(t *testing.T) {
	t.Parallel()

	cli := newFakeDockerClient()
	cli.createErr = errors.New("No such image: wheel-tester/focal")
	runner := newTestRunner(cli, fastLimits())

	report := runner.Run(context.Background(), &fakeScratch{}, numpyCase())

	assert.False(t, report.Result.Passed)
	assert.Contains(t, report.Result.Output, "No such image")
	assert.Equal(t, int64(-1), report.ExitCode)
	assert.False(t, report.Launched)
	assert.False(t, report.Interrupted)
	assert.Empty(t, cli.removeCalls)
}

func TestRunStartFailureStillRemovesContainer(t *testing.T) {
	t.Parallel()

	cli := newFakeDockerClient()
	cli.startErr = errors.New("mount denied")
	runner := newTestRunner(cli, fastLimits())

	report := runner.Run(context.Background(), &fakeScratch{}, numpyCase())

	assert.False(t, report.Result.Passed)
	assert.Contains(t, report.Result.Output, "mount denied")
	assert.Len(t, cli.removeCalls, 1)
}

func TestRunScratchFailureSkipsContainer(t *testing.T) {
	t.Parallel()

	cli := newFakeDockerClient()
	runner := newTestRunner(cli, fastLimits())

	report := runner.Run(context.Background(), &fakeScratch{writeErr: errors.New("disk full")}, numpyCase())

	assert.False(t, report.Result.Passed)
	assert.Contains(t, report.Result.Output, "disk full")
	assert.Empty(t, cli.createCalls)
}

func TestRunRemoveFailureDoesNotAffectResult(t *testing.T) {
	t.Parallel()

	cli := newFakeDockerClient()
	cli.removeErr = errors.New("removal in progress")
	runner := newTestRunner(cli, fastLimits())

	report := runner.Run(context.Background(), &fakeScratch{}, numpyCase())

	assert.True(t, report.Result.Passed)
	assert.Len(t, cli.removeCalls, 1)
}

func TestRunCancelledContextStopsContainer(t *testing.T) {
	t.Parallel()

	cli := newFakeDockerClient()
	cli.onCreate(func(id string) *fakeContainer {
		return &fakeContainer{runningPolls: -1, stopExitCode: 143}
	})
	runner := newTestRunner(cli, execution.RunLimits{Timeout: time.Hour, PollInterval: 2 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	report := runner.Run(ctx, &fakeScratch{}, numpyCase())

	assert.True(t, report.Interrupted)
	assert.True(t, report.Launched)
	assert.Equal(t, execution.Result{}, report.Result)
	assert.Len(t, cli.stopCalls, 1)
	assert.Len(t, cli.removeCalls, 1)
}

func TestRunCancelledBeforeLaunchCreatesNothing(t *testing.T) {
	t.Parallel()

	cli := newFakeDockerClient()
	runner := newTestRunner(cli, fastLimits())
	scratch := &fakeScratch{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := runner.Run(ctx, scratch, numpyCase())

	assert.True(t, report.Interrupted)
	assert.False(t, report.Launched)
	assert.Empty(t, report.Result.Output)
	assert.Empty(t, scratch.scripts)
	assert.Empty(t, cli.createCalls)
}

func TestRunCancelledDuringStartIsInterrupted(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cli := newFakeDockerClient()
	cli.onCreate(func(id string) *fakeContainer {
		cancel()
		return &fakeContainer{}
	})
	runner := newTestRunner(cli, fastLimits())

	report := runner.Run(ctx, &fakeScratch{}, numpyCase())

	assert.True(t, report.Interrupted)
	assert.False(t, report.Launched)
	assert.NotContains(t, report.Result.Output, context.Canceled.Error())
	assert.Len(t, cli.startCalls, 1)
	assert.Len(t, cli.removeCalls, 1)
}

func TestPingAndClose(t *testing.T) {
	t.Parallel()

	cli := newFakeDockerClient()
	runner := newTestRunner(cli, fastLimits())

	require.NoError(t, runner.Ping(context.Background()))
	require.NoError(t, runner.Close())
	assert.True(t, cli.closed)
}
