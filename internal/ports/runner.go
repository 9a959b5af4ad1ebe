package ports

import (
	"context"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
)

// CaseRunner executes a single test case in an isolated environment.
//
// Run never returns an error: every failure mode is recorded in the report.
type CaseRunner interface {
	Run(ctx context.Context, scratch Scratch, tc execution.TestCase) execution.RunReport
	Close() error
}
