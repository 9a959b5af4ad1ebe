package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// fakeContainer scripts the lifecycle of one container.
type fakeContainer struct {
	// runningPolls is how many inspections report the container running.
	// A negative value keeps it running until stopped.
	runningPolls int
	exitCode     int
	// stopExitCode is the exit code recorded when ContainerStop succeeds.
	stopExitCode int
	// ignoreStop keeps the container running after ContainerStop.
	ignoreStop  bool
	inspectErrs int
	logs        []byte

	stopped bool
	exited  bool
}

type fakeDockerClient struct {
	mu          sync.Mutex
	nextID      int
	containers  map[string]*fakeContainer
	createCalls []containerCreateCall
	startCalls  []string
	stopCalls   []string
	removeCalls []string
	createErr   error
	startErr    error
	removeErr   error
	createHooks []func(string) *fakeContainer
	closed      bool
}

type containerCreateCall struct {
	id         string
	config     *container.Config
	hostConfig *container.HostConfig
}

func newFakeDockerClient() *fakeDockerClient {
	return &fakeDockerClient{
		containers: make(map[string]*fakeContainer),
	}
}

func (f *fakeDockerClient) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeDockerClient) Ping(ctx context.Context) (types.Ping, error) {
	return types.Ping{APIVersion: "1.47"}, nil
}

func (f *fakeDockerClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return container.CreateResponse{}, err
	}
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}

	id := fmt.Sprintf("container-%d", f.nextID)
	f.nextID++
	f.createCalls = append(f.createCalls, containerCreateCall{id: id, config: config, hostConfig: hostConfig})

	state := &fakeContainer{}
	if len(f.createHooks) > 0 {
		hook := f.createHooks[0]
		f.createHooks = f.createHooks[1:]
		state = hook(id)
	}
	f.containers[id] = state

	return container.CreateResponse{ID: id}, nil
}

func (f *fakeDockerClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls = append(f.startCalls, containerID)
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.startErr
}

func (f *fakeDockerClient) ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.containers[containerID]
	if !ok {
		return types.ContainerJSON{}, fmt.Errorf("no such container %s", containerID)
	}
	if c.inspectErrs > 0 {
		c.inspectErrs--
		return types.ContainerJSON{}, fmt.Errorf("daemon busy")
	}

	running := false
	switch {
	case c.exited:
	case c.stopped && !c.ignoreStop:
		c.exited = true
		c.exitCode = c.stopExitCode
	case c.runningPolls < 0, c.stopped:
		running = true
	case c.runningPolls > 0:
		c.runningPolls--
		running = true
	default:
		c.exited = true
	}

	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID: containerID,
			State: &types.ContainerState{
				Running:  running,
				ExitCode: c.exitCode,
			},
		},
	}, nil
}

func (f *fakeDockerClient) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls = append(f.stopCalls, containerID)
	if c, ok := f.containers[containerID]; ok {
		c.stopped = true
	}
	return nil
}

func (f *fakeDockerClient) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var data []byte
	if c, ok := f.containers[containerID]; ok {
		data = c.logs
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeDockerClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls = append(f.removeCalls, containerID)
	return f.removeErr
}

func (f *fakeDockerClient) onCreate(hook func(id string) *fakeContainer) {
	f.mu.Lock()
	f.createHooks = append(f.createHooks, hook)
	f.mu.Unlock()
}

func multiplexedLogs(stdout, stderr string) []byte {
	var buf bytes.Buffer
	if stdout != "" {
		w := stdcopy.NewStdWriter(&buf, stdcopy.Stdout)
		_, _ = w.Write([]byte(stdout))
	}
	if stderr != "" {
		w := stdcopy.NewStdWriter(&buf, stdcopy.Stderr)
		_, _ = w.Write([]byte(stderr))
	}
	return buf.Bytes()
}

type fakeScratch struct {
	mu       sync.Mutex
	scripts  []string
	writeErr error
}

func (s *fakeScratch) WriteTestScript(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.scripts = append(s.scripts, source)
	return nil
}

func (s *fakeScratch) MountSource() string { return "/host/work/work_pid_1_0" }
func (s *fakeScratch) Close() error        { return nil }
