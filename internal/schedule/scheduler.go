package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/sykell/link-health/internal/logger"
	"github.com/sykell/link-health/internal/metrics"
)

// UserLister returns the users that have links worth scanning.
type UserLister interface {
	ListUserIDsWithLinks(ctx context.Context) ([]uint, error)
}

// Enqueuer accepts users for scanning.
type Enqueuer interface {
	Enqueue(userID uint) error
}

// Scheduler fills the scan queue on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	users   UserLister
	queue   Enqueuer
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewScheduler creates a Scheduler. Nothing runs until Start.
func NewScheduler(users UserLister, queue Enqueuer, log logger.Logger, m *metrics.Metrics) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		parser:  parser,
		users:   users,
		queue:   queue,
		log:     log,
		metrics: m,
	}
}

// Register adds spec (e.g. "@every 6h" or "0 */6 * * *") as a trigger.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.EnqueueAll(context.Background()); err != nil {
			s.log.Error("Scheduled enqueue failed", logger.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("register schedule %q: %w", spec, err)
	}
	s.log.Info("Scan schedule registered", logger.String("spec", spec))
	return nil
}

// EnqueueAll queues every user with scannable links and returns how many
// were accepted. A full queue stops the round; the rest wait for the next one.
func (s *Scheduler) EnqueueAll(ctx context.Context) (int, error) {
	ids, err := s.users.ListUserIDsWithLinks(ctx)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, id := range ids {
		if err := s.queue.Enqueue(id); err != nil {
			if errors.Is(err, ErrQueueFull) {
				s.log.Warn("Scan queue full, remaining users deferred",
					logger.Int("queued", queued),
					logger.Int("total", len(ids)),
				)
				break
			}
			s.metrics.UsersEnqueued(queued)
			return queued, err
		}
		queued++
	}
	s.metrics.UsersEnqueued(queued)
	return queued, nil
}

// Start runs the cron loop in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the cron loop and waits for a running trigger to return.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
