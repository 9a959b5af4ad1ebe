package execution

import (
	"regexp"
	"strings"
	"time"
)

const buildSignature = "Building wheel for"

// Observation is the raw data gathered from a finished container.
type Observation struct {
	ExitCode int64
	Elapsed  time.Duration
	Output   string
	TimedOut bool
}

// Classify derives a Result from an observation. A timeout always fails the
// case, whatever exit code was read after the forced stop.
func Classify(obs Observation, mainName string, limits RunLimits) Result {
	limits = limits.Normalize()
	return Result{
		Passed:        obs.ExitCode == 0 && !obs.TimedOut,
		BuildRequired: strings.Contains(obs.Output, buildSignature),
		BinaryWheel:   binaryWheelPattern(mainName).MatchString(obs.Output),
		SlowInstall:   obs.Elapsed >= limits.SlowInstall,
		TimedOut:      obs.TimedOut,
		Output:        obs.Output,
	}
}

func binaryWheelPattern(mainName string) *regexp.Regexp {
	return regexp.MustCompile(`Downloading ` + regexp.QuoteMeta(mainName) + `[^\n]*aarch64[^\n]*whl`)
}
