package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/pipeline"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline now and then every schedule.every until interrupted",
	Run: func(cmd *cobra.Command, _ []string) {
		schedule(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().Bool("no-notify", false, "do not send digests")
	scheduleCmd.Flags().StringSlice("sources", nil, "comma separated sources overriding sources.enabled")
}

func schedule(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	defer logger.Sync()

	config := mustConfig(logger)
	applySourcesFlag(cmd, config)

	logger.Info("starting the ml-job-radar scheduler",
		zap.String("version", version),
		zap.Duration("every", config.Schedule.Every),
	)

	opts := pipelineOptions(config)
	opts.SkipNotify, _ = cmd.Flags().GetBool("no-notify")

	radar, err := newRadar(ctx, config, opts, logger)
	if err != nil {
		logger.Fatal("preparing the runs", zap.Error(err))
	}
	defer radar.Close()

	scheduler, err := pipeline.NewScheduler(radar.orchestrator, config.Schedule.Every, logger)
	if err != nil {
		logger.Fatal("creating the scheduler", zap.Error(err))
	}
	scheduler.AfterRun = func(report *pipeline.Report, err error) {
		writeMetrics(radar, config, logger)
		if err == nil {
			logger.Info("run finished",
				zap.String("run_id", report.RunID),
				zap.Int("persisted", report.Persisted),
				zap.Duration("duration", report.Duration),
			)
		}
	}

	if err := scheduler.Run(ctx); err != nil {
		logger.Fatal("scheduler failed", zap.Error(err))
	}
}
