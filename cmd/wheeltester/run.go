package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/app/executor"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/app/matrix"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/infra/catalog"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/infra/docker"
	kafkainfra "github.com/geoffreyblake/arm64-python-wheel-tester/internal/infra/kafka"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/infra/results"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/infra/workspace"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/installer"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/metrics"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/ports"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/report"
)

const (
	publishTimeout         = 10 * time.Second
	metricsShutdownTimeout = 5 * time.Second
)

func runAction(c *cli.Context) error {
	logger, err := loggerFromContext(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	generator, err := buildGenerator(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	total := len(generator.Collect())
	logger.Info("test matrix expanded", "cases", total)

	workRoot, err := filepath.Abs(c.String(WorkDirFlag.Name))
	if err != nil {
		return cli.Exit(fmt.Sprintf("resolve work dir: %v", err), 1)
	}
	workspaces, err := workspace.NewManager(workspace.Config{
		Root:     workRoot,
		HostRoot: hostWorkRoot(workRoot),
		Logger:   logger,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to initialize workspaces: %v", err), 1)
	}

	runner, err := docker.New(docker.Config{
		Limits: execution.RunLimits{
			Timeout:      c.Duration(TimeoutFlag.Name),
			PollInterval: c.Duration(PollIntervalFlag.Name),
			SlowInstall:  c.Duration(SlowInstallFlag.Name),
		},
		Logger: logger,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to initialize docker runner: %v", err), 1)
	}
	if err := runner.Ping(c.Context); err != nil {
		_ = runner.Close()
		return cli.Exit(err.Error(), 1)
	}

	recorder := metrics.NewRecorder()
	opts := []executor.Option{
		executor.WithWorkers(c.Int(WorkersFlag.Name)),
		executor.WithLogger(logger),
		executor.WithReportHook(recorder.Observe),
		executor.WithReportHook(progressHook(logger, total)),
	}

	if addr := c.String(MetricsAddrFlag.Name); addr != "" {
		stopMetrics := serveMetrics(addr, recorder.Handler(), logger)
		defer stopMetrics()
	}

	if brokers := parseBrokerList(c.String(KafkaBrokersFlag.Name)); len(brokers) > 0 {
		publisher, err := kafkainfra.NewPublisher(kafkainfra.PublisherConfig{
			Brokers: brokers,
			Topic:   c.String(KafkaTopicFlag.Name),
			Async:   true,
			Logger:  logger,
		})
		if err != nil {
			_ = runner.Close()
			return cli.Exit(fmt.Sprintf("failed to initialize kafka publisher: %v", err), 1)
		}
		defer func() {
			if cerr := publisher.Close(); cerr != nil {
				logger.Warn("failed to close kafka publisher", "err", cerr)
			}
		}()
		logger.Info("publishing results to kafka", "topic", c.String(KafkaTopicFlag.Name), "run_id", publisher.RunID())
		opts = append(opts, executor.WithReportHook(publishHook(publisher, logger)))
	}

	service := executor.NewService(runner, workspaces, opts...)
	defer func() {
		if cerr := service.Close(); cerr != nil {
			logger.Warn("failed to close runner", "err", cerr)
		}
	}()

	logger.Info("starting run", "workers", service.Workers())
	table, runErr := service.Run(c.Context, generator.Cases())

	if !c.Bool(KeepWorkFlag.Name) {
		if err := workspaces.Cleanup(); err != nil {
			logger.Warn("failed to clean up work directories", "err", err)
		}
	}

	if errors.Is(runErr, execution.ErrDuplicateResult) {
		return cli.Exit(fmt.Sprintf("run aborted: %v", runErr), 1)
	}

	store, err := results.NewStore(c.String(OutputDirFlag.Name), c.Bool(CompressFlag.Name))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	path, err := store.Write(table, time.Now())
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to write results: %v", err), 1)
	}
	logger.Info("results written", "path", path, "results", table.Len())

	summary := report.Summarize([]report.Source{{Name: filepath.Base(path), Table: table}}, c.StringSlice(IgnoreFlag.Name))
	fmt.Fprint(c.App.Writer, report.Format(summary))

	if runErr != nil {
		return cli.Exit(runErr.Error(), 1)
	}
	return nil
}

func buildGenerator(c *cli.Context) (*matrix.Generator, error) {
	cat, err := catalog.Load(c.String(CatalogFlag.Name))
	if err != nil {
		return nil, err
	}
	targets := cat.Targets
	if targets == nil {
		targets = execution.DefaultTargets()
	}

	registry, err := installer.NewRegistry(installer.Defaults()...)
	if err != nil {
		return nil, err
	}

	generator, err := matrix.NewGenerator(cat.Packages, registry, targets,
		matrix.WithImagePrefix(c.String(ImagePrefixFlag.Name)),
		matrix.WithTargetFilter(c.StringSlice(ContainerFlag.Name)...),
	)
	if err != nil {
		return nil, fmt.Errorf("build test matrix: %w", err)
	}
	return generator, nil
}

func progressHook(logger *slog.Logger, total int) func(execution.RunReport) {
	done := 0
	return func(r execution.RunReport) {
		done++
		logger.Info(fmt.Sprintf("%s: Package %s on %s %s", r.Case.Installer, r.Case.Package, r.Case.TestName, r.Result.Outcome()),
			"done", done,
			"total", total,
		)
	}
}

func publishHook(publisher ports.RunReportPublisher, logger *slog.Logger) func(execution.RunReport) {
	return func(r execution.RunReport) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := publisher.PublishRunReport(ctx, r); err != nil {
			logger.Warn("failed to publish result", "key", r.Case.Key().String(), "err", err)
		}
	}
}

func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
