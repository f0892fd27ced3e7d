package main

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"github.com/st3v3nmw/beacon-dns-lists/internal/dns"
	"github.com/st3v3nmw/beacon-dns-lists/internal/pipeline"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Rebuild the lists on a schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		v, err := openValidator(cfg)
		if err != nil {
			return err
		}
		defer v.Close()

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Daemon.Interval),
			gocron.NewTask(func() {
				res, err := pipeline.Run(ctx, cfg, v)
				if err != nil {
					slog.Error("Scheduled run failed", "error", err)
					return
				}
				slog.Info("Scheduled run done", "run", res.RunID, "block", res.Stats.Block, "allow", res.Stats.Allow)

				if cfg.Daemon.MetricsFile != "" {
					if err := dns.WriteMetrics(cfg.Daemon.MetricsFile); err != nil {
						slog.Error("Failed to write metrics", "path", cfg.Daemon.MetricsFile, "error", err)
					}
				}
			}),
			gocron.WithStartAt(gocron.WithStartImmediately()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 30, 0))),
			gocron.NewTask(func() {
				n, err := v.Cache().Prune(time.Now())
				if err != nil {
					slog.Error("Failed to prune validation cache", "error", err)
					return
				}
				slog.Info("Pruned validation cache", "deleted", n)
			}),
		)
		if err != nil {
			return err
		}

		slog.Info("Starting scheduler", "interval", cfg.Daemon.Interval)
		scheduler.Start()

		<-ctx.Done()
		slog.Info("Shutting down")
		return scheduler.Shutdown()
	},
}
