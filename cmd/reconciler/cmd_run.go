package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/journey-reconciler/internal/models"
	"github.com/noah-isme/journey-reconciler/internal/service"
)

var (
	runBatchSize int
	runThreshold float64
	runStudents  []string
	runWorkers   int
	runMode      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile students and print the batch summary",
	Long: `Walks the student table in pages (or only the given --student ids), rebuilds
each journey and prints the batch summary as JSON.

When PUSHGATEWAY_URL is set the run's metrics are pushed once it completes.`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "students per page (default from RECON_BATCH_SIZE)")
	runCmd.Flags().Float64Var(&runThreshold, "threshold", 0, "journeys scoring below this are flagged for review")
	runCmd.Flags().StringArrayVar(&runStudents, "student", nil, "reconcile only this student id (repeatable)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "concurrent students per page")
	runCmd.Flags().StringVar(&runMode, "mode", "", "journey grouping: consolidated or per_period")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := service.BatchRequest{
		BatchSize:  runBatchSize,
		StudentIDs: runStudents,
		Workers:    runWorkers,
		Mode:       models.JourneyMode(runMode),
	}
	if cmd.Flags().Changed("threshold") {
		req.ConfidenceThreshold = &runThreshold
	}

	summary, runErr := a.batches.Run(ctx, req)
	if summary != nil {
		if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	}

	if a.cfg.Metrics.PushgatewayURL != "" {
		// Push on a fresh context so an interrupted run still reports.
		if err := a.metrics.Push(context.WithoutCancel(ctx), a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.JobName); err != nil {
			a.logger.Warn("push metrics", zap.Error(err))
		}
	}

	return runErr
}
