package executor

import (
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
)

// Aggregator folds run reports into a ResultTable. It is not safe for
// concurrent use; a single goroutine owns it.
type Aggregator struct {
	table execution.ResultTable
	hooks []func(execution.RunReport)
}

// NewAggregator returns an empty Aggregator. Each hook sees every report
// that is accepted into the table.
func NewAggregator(hooks ...func(execution.RunReport)) *Aggregator {
	return &Aggregator{
		table: make(execution.ResultTable),
		hooks: hooks,
	}
}

// Add inserts report. A key collision yields execution.ErrDuplicateResult
// and leaves the existing entry untouched.
func (a *Aggregator) Add(report execution.RunReport) error {
	if err := a.table.Insert(report.Case.Key(), report.Result); err != nil {
		return err
	}
	for _, hook := range a.hooks {
		hook(report)
	}
	return nil
}

// Consume drains reports until the channel is closed. After a collision it
// keeps draining so producers never block, and returns the first error.
func (a *Aggregator) Consume(reports <-chan execution.RunReport) (execution.ResultTable, error) {
	var firstErr error
	for report := range reports {
		if err := a.Add(report); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return a.table, firstErr
}

// Table returns the table built so far.
func (a *Aggregator) Table() execution.ResultTable {
	return a.table
}
