package bootstrap

import (
	"fmt"

	"github.com/sykell/link-health/internal/logger"
	"github.com/sykell/link-health/internal/schedule"
)

// Background is the scan queue plus its optional cron trigger.
type Background struct {
	Queue     *schedule.Service
	Scheduler *schedule.Scheduler
}

// SetupBackground creates the scan queue and, when a cron expression is
// configured, the scheduler feeding it. Nothing is started.
func SetupBackground(c *Components, log logger.Logger) (*Background, error) {
	cfg := c.Config
	queue := schedule.NewService(c.Scanner, &schedule.Config{
		Workers:     cfg.Schedule.Workers,
		QueueSize:   cfg.Schedule.QueueSize,
		ScanTimeout: cfg.Scanner.LockTTL,
	}, log)

	bg := &Background{Queue: queue}
	if cfg.Schedule.Cron == "" {
		return bg, nil
	}

	sched := schedule.NewScheduler(c.Links, queue, log, c.Metrics)
	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		return nil, fmt.Errorf("register scan schedule: %w", err)
	}
	bg.Scheduler = sched
	return bg, nil
}
