package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/sykell/link-health/internal/bootstrap"
	"github.com/sykell/link-health/internal/logger"
)

const scheduleShutdownTimeout = 30 * time.Second

func newScheduleCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run scheduled scans without the API server",
		Long: `Runs the scan queue and fills it on the configured cron schedule
until interrupted. With --once every user with links is queued immediately
and the command exits when the queue has drained.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			components, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			defer components.Close()

			if !once && components.Config.Schedule.Cron == "" {
				return errors.New("schedule.cron is not configured")
			}
			return runSchedule(cmd.Context(), components, log, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "queue every user once and exit")
	return cmd
}

func runSchedule(ctx context.Context, components *bootstrap.Components, log logger.Logger, once bool) error {
	bg, err := bootstrap.SetupBackground(components, log)
	if err != nil {
		return err
	}
	if err := bg.Queue.Start(); err != nil {
		return err
	}

	if once {
		users, err := components.Links.ListUserIDsWithLinks(ctx)
		if err != nil {
			_ = bg.Queue.Stop()
			return err
		}
		for _, id := range users {
			if err := bg.Queue.Enqueue(id); err != nil {
				log.Warn("Could not queue user", logger.Uint("user_id", id), logger.Error(err))
			}
		}
		log.Info("Queued users for scanning", logger.Int("users", len(users)))
		bg.Queue.Drain()
		return nil
	}

	bg.Scheduler.Start()
	log.Info("Scheduler running", logger.String("cron", components.Config.Schedule.Cron))
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), scheduleShutdownTimeout)
	defer cancel()
	bg.Scheduler.Stop(shutdownCtx)
	return bg.Queue.Stop()
}
