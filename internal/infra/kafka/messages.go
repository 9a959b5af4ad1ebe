package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
)

type resultEnvelope struct {
	RunID         string    `json:"run_id"`
	Package       string    `json:"package"`
	TestName      string    `json:"test_name"`
	Installer     string    `json:"installer"`
	Target        string    `json:"target"`
	Image         string    `json:"image,omitempty"`
	ExitCode      int64     `json:"exit_code"`
	DurationMs    int64     `json:"duration_ms"`
	TestPassed    bool      `json:"test-passed"`
	BuildRequired bool      `json:"build-required"`
	BinaryWheel   bool      `json:"binary-wheel"`
	SlowInstall   bool      `json:"slow-install"`
	Timeout       bool      `json:"timeout"`
	Output        string    `json:"output,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func encodeRunReport(runID string, report execution.RunReport, now time.Time) ([]byte, error) {
	payload, err := json.Marshal(makeResultEnvelope(runID, report, now))
	if err != nil {
		return nil, fmt.Errorf("encode run report: %w", err)
	}
	return payload, nil
}

func makeResultEnvelope(runID string, report execution.RunReport, now time.Time) resultEnvelope {
	tc := report.Case
	result := report.Result

	return resultEnvelope{
		RunID:         runID,
		Package:       tc.Package,
		TestName:      tc.TestName,
		Installer:     string(tc.Installer),
		Target:        tc.Target,
		Image:         tc.Image,
		ExitCode:      report.ExitCode,
		DurationMs:    report.Duration.Milliseconds(),
		TestPassed:    result.Passed,
		BuildRequired: result.BuildRequired,
		BinaryWheel:   result.BinaryWheel,
		SlowInstall:   result.SlowInstall,
		Timeout:       result.TimedOut,
		Output:        result.Output,
		Timestamp:     now.UTC(),
	}
}

func messageKey(report execution.RunReport) []byte {
	return []byte(report.Case.Key().String())
}
