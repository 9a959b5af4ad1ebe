package execution

import "time"

// Result captures the classified outcome of a single test case.
type Result struct {
	Passed        bool   `json:"test-passed"`
	BuildRequired bool   `json:"build-required"`
	BinaryWheel   bool   `json:"binary-wheel"`
	SlowInstall   bool   `json:"slow-install"`
	TimedOut      bool   `json:"timeout"`
	Output        string `json:"output"`
}

// Outcome returns a short human readable verdict.
func (r Result) Outcome() string {
	switch {
	case r.TimedOut:
		return "timed out"
	case r.Passed:
		return "passed"
	default:
		return "failed"
	}
}

// RunReport pairs a Result with the case that produced it.
type RunReport struct {
	Case     TestCase
	Result   Result
	ExitCode int64
	Duration time.Duration
	// Launched is set once the case container has started.
	Launched bool
	// Interrupted marks a case cut short by cancellation of the run. Such a
	// report carries no outcome and is not recorded.
	Interrupted bool
}

// LaunchFailure builds the report for a case whose container never ran.
func LaunchFailure(tc TestCase, err error) RunReport {
	return RunReport{
		Case:     tc,
		ExitCode: -1,
		Result: Result{
			Output: err.Error(),
		},
	}
}

// Interrupted builds the report for a case abandoned because the run was
// cancelled.
func Interrupted(tc TestCase, launched bool) RunReport {
	return RunReport{
		Case:        tc,
		ExitCode:    -1,
		Launched:    launched,
		Interrupted: true,
	}
}
