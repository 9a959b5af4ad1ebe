package executor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/ports"
)

// Option customises a Service.
type Option func(*Service)

// WithWorkers sets the number of concurrent workers. Non-positive values
// keep the default of one worker per CPU.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReportHook registers fn to observe every aggregated report. Hooks run
// on the aggregating goroutine, one report at a time.
func WithReportHook(fn func(execution.RunReport)) Option {
	return func(s *Service) {
		if fn != nil {
			s.hooks = append(s.hooks, fn)
		}
	}
}

// Service runs test cases on a fixed pool of workers.
type Service struct {
	runner  ports.CaseRunner
	scratch ports.ScratchProvider
	workers int
	logger  *slog.Logger
	hooks   []func(execution.RunReport)
}

// NewService constructs a Service with the provided runtime dependencies.
func NewService(runner ports.CaseRunner, scratch ports.ScratchProvider, opts ...Option) *Service {
	s := &Service{
		runner:  runner,
		scratch: scratch,
		workers: runtime.NumCPU(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Workers returns the size of the worker pool.
func (s *Service) Workers() int {
	return s.workers
}

// Run executes every case yielded by cases and returns the aggregated
// results.
//
// Individual case failures are recorded in the table. The returned error is
// non-nil only when two cases report under the same key or when ctx ends
// before every case was scheduled; in both situations the table holds what
// was collected. Cases cut short by cancellation are left out of the table.
func (s *Service) Run(ctx context.Context, cases iter.Seq[execution.TestCase]) (execution.ResultTable, error) {
	queue := make(chan execution.TestCase)
	reports := make(chan execution.RunReport, s.workers)

	go s.feed(ctx, cases, queue)

	var wg conc.WaitGroup
	for id := range s.workers {
		wg.Go(func() {
			s.work(ctx, id, queue, reports)
		})
	}
	go func() {
		wg.Wait()
		close(reports)
	}()

	table, err := NewAggregator(s.hooks...).Consume(reports)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Join(err, fmt.Errorf("run interrupted: %w", ctxErr))
	}
	return table, err
}

func (s *Service) feed(ctx context.Context, cases iter.Seq[execution.TestCase], queue chan<- execution.TestCase) {
	defer close(queue)

	for tc := range cases {
		if ctx.Err() != nil {
			s.logger.Warn("run cancelled, remaining cases not scheduled", "err", ctx.Err())
			return
		}
		select {
		case queue <- tc:
		case <-ctx.Done():
			s.logger.Warn("run cancelled, remaining cases not scheduled", "err", ctx.Err())
			return
		}
	}
}

func (s *Service) work(ctx context.Context, id int, queue <-chan execution.TestCase, reports chan<- execution.RunReport) {
	var scratch ports.Scratch
	defer func() {
		if scratch == nil {
			return
		}
		if err := scratch.Close(); err != nil {
			s.logger.Warn("failed to remove scratch directory", "worker", id, "err", err)
		}
	}()

	for tc := range queue {
		// A send can win the feeder's select after cancellation.
		if ctx.Err() != nil {
			continue
		}
		if scratch == nil {
			var err error
			scratch, err = s.scratch.NewScratch(id)
			if err != nil {
				s.logger.Error("failed to create scratch directory", "worker", id, "err", err)
				reports <- execution.LaunchFailure(tc, fmt.Errorf("worker %d scratch: %w", id, err))
				continue
			}
		}

		report := s.runCase(ctx, scratch, tc)
		if report.Interrupted {
			s.logger.Info("case interrupted, not recorded", "package", tc.Package, "test", tc.TestName)
			continue
		}
		reports <- report
	}
}

func (s *Service) runCase(ctx context.Context, scratch ports.Scratch, tc execution.TestCase) execution.RunReport {
	var report execution.RunReport
	var pc panics.Catcher
	pc.Try(func() {
		report = s.runner.Run(ctx, scratch, tc)
	})
	if recovered := pc.Recovered(); recovered != nil {
		s.logger.Error("case panicked", "package", tc.Package, "test", tc.TestName, "panic", recovered.Value)
		return execution.LaunchFailure(tc, fmt.Errorf("panic: %v", recovered.Value))
	}
	return report
}

// Close releases any resources owned by the underlying runner.
func (s *Service) Close() error {
	return s.runner.Close()
}
