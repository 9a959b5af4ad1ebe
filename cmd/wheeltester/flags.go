package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/app/matrix"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
)

const EnvVarPrefix = "WHEEL_TESTER"

func prefixEnvVar(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	CatalogFlag = &cli.StringFlag{
		Name:    "catalog",
		Value:   "packages.yaml",
		EnvVars: prefixEnvVar("CATALOG"),
		Usage:   "Path to the package catalog",
	}
	ContainerFlag = &cli.StringSliceFlag{
		Name:    "container",
		EnvVars: prefixEnvVar("CONTAINERS"),
		Usage:   "Only test the named containers; can be used more than once",
	}
	WorkersFlag = &cli.IntFlag{
		Name:    "workers",
		Value:   0,
		EnvVars: prefixEnvVar("WORKERS"),
		Usage:   "Number of containers run in parallel (0 means one per CPU)",
	}
	TimeoutFlag = &cli.DurationFlag{
		Name:    "timeout",
		Value:   execution.DefaultTimeout,
		EnvVars: prefixEnvVar("TIMEOUT"),
		Usage:   "Wall time after which a test container is stopped and the case fails",
	}
	PollIntervalFlag = &cli.DurationFlag{
		Name:    "poll-interval",
		Value:   execution.DefaultPollInterval,
		EnvVars: prefixEnvVar("POLL_INTERVAL"),
		Usage:   "How often a running container is inspected",
	}
	SlowInstallFlag = &cli.DurationFlag{
		Name:    "slow-install",
		Value:   execution.DefaultSlowInstall,
		EnvVars: prefixEnvVar("SLOW_INSTALL"),
		Usage:   "Elapsed time at which a case is flagged as a slow install",
	}
	ImagePrefixFlag = &cli.StringFlag{
		Name:    "image-prefix",
		Value:   matrix.DefaultImagePrefix,
		EnvVars: prefixEnvVar("IMAGE_PREFIX"),
		Usage:   "Prefix joined with a container name to form the image reference",
	}
	WorkDirFlag = &cli.StringFlag{
		Name:    "work-dir",
		Value:   ".",
		EnvVars: prefixEnvVar("WORK_DIR"),
		Usage:   "Directory holding the per-worker scratch directories",
	}
	KeepWorkFlag = &cli.BoolFlag{
		Name:    "keep-work",
		EnvVars: prefixEnvVar("KEEP_WORK"),
		Usage:   "Leave scratch directories behind after the run",
	}
	OutputDirFlag = &cli.StringFlag{
		Name:    "output-dir",
		Value:   ".",
		EnvVars: prefixEnvVar("OUTPUT_DIR"),
		Usage:   "Directory where results files are written and looked up",
	}
	CompressFlag = &cli.BoolFlag{
		Name:    "compress",
		Value:   true,
		EnvVars: prefixEnvVar("COMPRESS"),
		Usage:   "Compress the results file with xz",
	}
	KafkaBrokersFlag = &cli.StringFlag{
		Name:    "kafka-brokers",
		EnvVars: prefixEnvVar("KAFKA_BROKERS"),
		Usage:   "Comma separated Kafka brokers; per-case results are published when set",
	}
	KafkaTopicFlag = &cli.StringFlag{
		Name:    "kafka-topic",
		Value:   defaultKafkaTopic,
		EnvVars: prefixEnvVar("KAFKA_TOPIC"),
		Usage:   "Kafka topic receiving per-case results",
	}
	MetricsAddrFlag = &cli.StringFlag{
		Name:    "metrics-addr",
		EnvVars: prefixEnvVar("METRICS_ADDR"),
		Usage:   "Serve Prometheus metrics on this address during the run (eg. ':7300')",
	}
	IgnoreFlag = &cli.StringSliceFlag{
		Name:    "ignore",
		EnvVars: prefixEnvVar("IGNORE"),
		Usage:   "Ignore tests with the specified name; can be used more than once",
	}
	LogLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVar("LOG_LEVEL"),
		Usage:   "Log level: debug, info, warn or error",
	}
	LogFormatFlag = &cli.StringFlag{
		Name:    "log-format",
		Value:   "text",
		EnvVars: prefixEnvVar("LOG_FORMAT"),
		Usage:   "Log format: text or json",
	}
)

var globalFlags = []cli.Flag{
	LogLevelFlag,
	LogFormatFlag,
}

var runFlags = []cli.Flag{
	CatalogFlag,
	ContainerFlag,
	WorkersFlag,
	TimeoutFlag,
	PollIntervalFlag,
	SlowInstallFlag,
	ImagePrefixFlag,
	WorkDirFlag,
	KeepWorkFlag,
	OutputDirFlag,
	CompressFlag,
	KafkaBrokersFlag,
	KafkaTopicFlag,
	MetricsAddrFlag,
	IgnoreFlag,
}

var summarizeFlags = []cli.Flag{
	OutputDirFlag,
	IgnoreFlag,
}
