package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/journey-reconciler/internal/handler"
	"github.com/noah-isme/journey-reconciler/internal/service"
	"github.com/noah-isme/journey-reconciler/pkg/config"
	"github.com/noah-isme/journey-reconciler/pkg/jobs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reconciliation trigger, history lookup and decode endpoints",
	Long: `Starts the HTTP surface. When RECON_SCHEDULE holds a cron expression a full
batch also runs on that schedule; a tick is skipped while the previous run is
still going.`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	reconcile := handler.NewReconciliationHandler(ctx, a.batches, a.logger)
	r := handler.NewRouter(handler.RouterConfig{
		APIPrefix:      a.cfg.APIPrefix,
		AllowedOrigins: a.cfg.CORS.AllowedOrigins,
		Logger:         a.logger,
		Observer:       a.metrics,
		Reconciliation: reconcile,
		History:        handler.NewHistoryHandler(a.history),
		Decode:         handler.NewDecodeHandler(a.analyzer),
		Metrics:        handler.NewMetricsHandler(a.metrics, a.probes()),
	})

	scheduler := jobs.NewScheduler(a.logger)
	if spec := a.cfg.Reconciliation.Schedule; spec != "" {
		if err := scheduler.Add("reconcile", spec, func(ctx context.Context) {
			summary, err := a.batches.Run(ctx, service.BatchRequest{})
			if err != nil {
				a.logger.Error("scheduled reconciliation failed", zap.Error(err))
				return
			}
			a.logger.Info("scheduled reconciliation finished", zap.String("run_id", summary.RunID), zap.Int("processed", summary.StudentsProcessed))
		}); err != nil {
			return err
		}
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", a.cfg.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		_ = scheduler.Stop(context.Background())
		_ = reconcile.Wait(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduled run did not stop in time", zap.Error(err))
	}
	shutdownErr := srv.Shutdown(shutdownCtx)
	// Async runs still write journeys; the stores close only after they return.
	if err := reconcile.Wait(shutdownCtx); err != nil {
		a.logger.Warn("async reconciliation did not finish in time", zap.Error(err))
	}
	return shutdownErr
}
