package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cyber-Gym/enigma-plus/pkg/attempt"
	"github.com/Cyber-Gym/enigma-plus/pkg/challenge"
	"github.com/Cyber-Gym/enigma-plus/pkg/compose"
	"github.com/Cyber-Gym/enigma-plus/pkg/config"
	"github.com/Cyber-Gym/enigma-plus/pkg/dockerenv"
	"github.com/Cyber-Gym/enigma-plus/pkg/dockerx"
	"github.com/Cyber-Gym/enigma-plus/pkg/emergency"
	"github.com/Cyber-Gym/enigma-plus/pkg/janitor"
	"github.com/Cyber-Gym/enigma-plus/pkg/launcher"
	"github.com/Cyber-Gym/enigma-plus/pkg/metrics"
	"github.com/Cyber-Gym/enigma-plus/pkg/portalloc"
	"github.com/Cyber-Gym/enigma-plus/pkg/predictions"
	"github.com/Cyber-Gym/enigma-plus/pkg/reporting"
	"github.com/Cyber-Gym/enigma-plus/pkg/scheduler"
	"github.com/Cyber-Gym/enigma-plus/pkg/supervisor"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the configured benchmark to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchmark()
		},
	}
}

// runBenchmark wires every component (C1-C10) together for a single run:
// load config, bring up the docker/janitor/adapter stack, dispatch the
// scheduler across every (challenge, try_number) pair, then collate
// predictions and write a run report. The cancellation backbone is the
// emergency controller: SIGINT/SIGTERM or an operator-dropped stop file both
// funnel into the same context cancellation the scheduler already respects.
func runBenchmark() error {
	if cfgFile == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logLevel := reporting.LogLevel(cfg.Reporting.Level)
	logFormat := reporting.LogFormat(cfg.Reporting.Format)
	loggerCfg := reporting.LoggerConfig{Level: logLevel, Format: logFormat, Output: os.Stdout}
	reporting.InitGlobalLogger(loggerCfg)

	executionID := attempt.NewExecutionID(time.Now())
	logger := reporting.NewLogger(loggerCfg).WithField("execution_id", executionID)
	logger.Info("starting run", "dataset", cfg.Dataset.Name)

	challenges, writeups, err := challenge.Load(cfg.Dataset.ChallengesPath, cfg.Dataset.Start, cfg.Dataset.End, cfg.Dataset.WriteupPath)
	if err != nil {
		return fmt.Errorf("loading challenges: %w", err)
	}
	logger.Info("loaded challenges", "count", len(challenges))

	docker, err := dockerx.New()
	if err != nil {
		return fmt.Errorf("connecting to docker: %w", err)
	}
	defer docker.Close()

	allocator := portalloc.New(cfg.Docker.PortRangeStart, cfg.Docker.PortRangeEnd)
	rewriter := compose.New(allocator)
	j := janitor.New(docker, janitor.Config{
		LongLivedImageRef: cfg.Environment.ImageName,
		ContainerPoolSize: cfg.Docker.ContainerPoolSize,
		NetworkPoolSize:   cfg.Docker.NetworkPoolSize,
	})
	adapter := dockerenv.New(docker, rewriter, j)
	sup := supervisor.New(supervisor.Config{
		Janitor:        j,
		CleanupEnabled: cfg.Execution.PerTaskCleanup,
	})
	reg := metrics.New(metrics.Config{ListenAddr: cfg.Metrics.ListenAddr})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controller := emergency.New(emergency.Config{
		StopFile:             cfg.Emergency.StopFile,
		EnableSignalHandlers: cfg.Emergency.EnableSignalHandlers,
	})
	controller.OnStop(func() {
		logger.Warn("emergency stop triggered, cancelling run")
		cancel()
	})
	controller.Start(ctx)
	defer func() { _ = controller.RemoveStopFile() }()

	reg.Start(ctx)

	logger.Info("running initial docker sweep")
	j.InitialSweep(ctx)

	logsDir := cfg.Reporting.LogsDir
	trajectoryDir := filepath.Join(cfg.Environment.TrajectoryRoot, cfg.Dataset.Name)

	sched := scheduler.New(scheduler.Config{
		Challenges:  challenges,
		DataPath:    cfg.Dataset.ChallengesPath,
		ExecutionID: executionID,
		LogsDir:     logsDir,

		Adapter:    adapter,
		Supervisor: sup,
		Janitor:    j,
		Metrics:    reg,

		SolverCommand: cfg.SWEAgent.Command,
		LauncherOpts: launcher.Options{
			ModelName:            cfg.Model.Name,
			HostURL:              cfg.Model.HostURL,
			PerInstanceStepLimit: cfg.Execution.PerInstanceStepLimit,
			Temperature:          cfg.Model.Temperature,
			TopP:                 cfg.Model.TopP,
			AllowDirtyRepo:       cfg.Execution.AllowDirtyRepo,
			ImageName:            cfg.Environment.ImageName,
			TrajectoryDir:        trajectoryDir,
			ConfigFile:           cfg.SWEAgent.ConfigFile,
		},
		Writeups:     writeups,
		Env:          launcher.EnvFor(cfg.Model),
		DynamicPorts: cfg.Docker.DynamicPorts,

		StartTry:                cfg.Execution.StartTry,
		TryTimes:                cfg.Execution.TryTimes,
		ParallelTasks:           cfg.Execution.ParallelTasks,
		DelayBetweenSubmissions: secondsToDuration(cfg.Execution.DelayBetweenSubmissions),
		MaxWaitTime:             secondsToDuration(cfg.Execution.MaxWaitTime),
	})

	startTime := time.Now()
	outcomes, runErr := sched.Run(ctx)
	endTime := time.Now()
	if runErr != nil {
		logger.Warn("run interrupted before completion", "error", runErr.Error())
	}

	logger.Info("running final docker sweep")
	cleanupSummary := j.FinalSweep(context.Background(), executionID)

	benchmarkTotal, _ := cfg.BenchmarkTotal(cfg.Dataset.Name)
	attempts, collateErrs := collateAttempts(trajectoryDir, outcomes)

	report := reporting.BuildReport(reporting.RunInputs{
		ExecutionID:    executionID,
		Benchmark:      cfg.Dataset.Name,
		BenchmarkTotal: benchmarkTotal,
		StartTime:      startTime,
		EndTime:        endTime,
		Attempts:       attempts,
		Cleanup: reporting.CleanupSummary{
			TotalActions: cleanupSummary.TotalActions,
			Succeeded:    cleanupSummary.Succeeded,
			Failed:       cleanupSummary.Failed,
		},
		CleanupLog: convertAuditLog(j.AuditLog()),
		Errors:     collateErrs,
	})

	if storage, err := reporting.NewStorage(filepath.Join(logsDir, "reports"), 20, logger); err != nil {
		logger.Warn("failed to initialize report storage", "error", err.Error())
	} else if path, err := storage.SaveReport(report); err != nil {
		logger.Warn("failed to save report", "error", err.Error())
	} else {
		logger.Info("report saved", "path", path)
	}

	formatter := reporting.NewFormatter(logger)
	reportFormat := reporting.ReportFormat(cfg.Reporting.Format)
	reportPath := reporting.GetReportPath(report, reportFormat, logsDir)
	if err := formatter.GenerateReport(report, reportFormat, reportPath); err != nil {
		logger.Warn("failed to generate formatted report", "error", err.Error())
	}

	progress := reporting.NewProgressReporter(reporting.OutputFormat(cfg.Reporting.Format), logger)
	progress.ReportRunCompleted(report)

	if runErr != nil && ctx.Err() != nil {
		return fmt.Errorf("run stopped early: %w", runErr)
	}
	return nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// collateAttempts cross-references every terminal Outcome with the
// prediction record its try_number's run directory holds, producing the
// per-attempt summaries a RunReport embeds. An outcome with no matching
// prediction record (the solver child never wrote one) is reported
// uncaptured rather than dropped.
func collateAttempts(trajectoryDir string, outcomes []scheduler.Outcome) ([]reporting.AttemptSummary, []string) {
	tryNumbers := map[int]bool{}
	for _, o := range outcomes {
		tryNumbers[o.Attempt.TryNumber] = true
	}

	// records is keyed by the run directory's own try_number (known from the
	// directory we just read, not from the record itself: the prediction
	// record's canonical shape carries no try_number field, so the opaque
	// solver child never writes one).
	records := map[int]map[string]predictions.InstanceOutcome{}
	var errs []string
	for tryNumber := range tryNumbers {
		runDir := filepath.Join(trajectoryDir, fmt.Sprintf("try%d", tryNumber))
		summary, err := predictions.Collate(runDir)
		if err != nil {
			errs = append(errs, fmt.Sprintf("try%d: %v", tryNumber, err))
			continue
		}
		byInstance := make(map[string]predictions.InstanceOutcome, len(summary.Outcomes))
		for _, out := range summary.Outcomes {
			byInstance[out.Record.InstanceID] = out
		}
		records[tryNumber] = byInstance
		for _, missing := range summary.MissingTrajectory {
			errs = append(errs, fmt.Sprintf("try%d: %s captured with no trajectory file", tryNumber, missing))
		}
	}

	attempts := make([]reporting.AttemptSummary, 0, len(outcomes))
	for _, o := range outcomes {
		summary := reporting.AttemptSummary{
			InstanceID:        o.Attempt.Challenge.ChallengeID,
			ChallengeID:       o.Attempt.Challenge.ChallengeID,
			ChallengeCategory: o.Attempt.Challenge.Category,
			TryNumber:         o.Attempt.TryNumber,
			State:             o.State.String(),
		}
		if out, ok := records[o.Attempt.TryNumber][o.Attempt.Challenge.ChallengeID]; ok {
			summary.Captured = out.Record.Captured()
			summary.TrajectoryFound = out.TrajectoryFound
		}
		attempts = append(attempts, summary)
	}
	return attempts, errs
}

func convertAuditLog(entries []janitor.AuditEntry) []reporting.AuditEntry {
	out := make([]reporting.AuditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, reporting.AuditEntry{
			Timestamp: e.Timestamp,
			Action:    e.Action,
			Target:    e.Target,
			Success:   e.Success,
			Error:     e.Error,
		})
	}
	return out
}
