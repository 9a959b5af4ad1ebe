package executor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/ports"
)

type stubRunner struct {
	runFn   func(ctx context.Context, scratch ports.Scratch, tc execution.TestCase) execution.RunReport
	closeFn func() error
}

func (s *stubRunner) Run(ctx context.Context, scratch ports.Scratch, tc execution.TestCase) execution.RunReport {
	if s.runFn != nil {
		return s.runFn(ctx, scratch, tc)
	}
	return execution.RunReport{Case: tc, Result: execution.Result{Passed: true}}
}

func (s *stubRunner) Close() error {
	if s.closeFn != nil {
		return s.closeFn()
	}
	return nil
}

type stubScratch struct {
	workerID int
	mu       sync.Mutex
	inUse    bool
	closed   bool
}

func (s *stubScratch) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inUse {
		return fmt.Errorf("scratch of worker %d used concurrently", s.workerID)
	}
	s.inUse = true
	return nil
}

func (s *stubScratch) release() {
	s.mu.Lock()
	s.inUse = false
	s.mu.Unlock()
}

func (s *stubScratch) WriteTestScript(string) error { return nil }
func (s *stubScratch) MountSource() string          { return fmt.Sprintf("/work/%d", s.workerID) }

func (s *stubScratch) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type stubScratchProvider struct {
	mu      sync.Mutex
	created []*stubScratch
	err     error
}

func (p *stubScratchProvider) NewScratch(workerID int) (ports.Scratch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	s := &stubScratch{workerID: workerID}
	p.created = append(p.created, s)
	return s, nil
}

type concurrencyTracker struct {
	mu        sync.Mutex
	active    int
	maxActive int
}

func (c *concurrencyTracker) enter() func() {
	c.mu.Lock()
	c.active++
	if c.active > c.maxActive {
		c.maxActive = c.active
	}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		c.active--
		c.mu.Unlock()
	}
}

func makeCases(n int) []execution.TestCase {
	cases := make([]execution.TestCase, 0, n)
	for i := range n {
		cases = append(cases, execution.TestCase{
			Package:   fmt.Sprintf("pkg%d", i),
			Installer: execution.InstallerPip,
			Target:    "focal",
			TestName:  "focal",
		})
	}
	return cases
}

var errStub = errors.New("stub failure")

func seqOf(cases []execution.TestCase) iter.Seq[execution.TestCase] {
	return slices.Values(cases)
}
