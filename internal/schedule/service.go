// Package schedule runs batch scans in the background: a worker queue of
// user ids and a cron trigger that fills it.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sykell/link-health/internal/logger"
	"github.com/sykell/link-health/internal/scanner"
)

// UserScanner runs one batch scan.
type UserScanner interface {
	ScanUser(ctx context.Context, userID uint) (*scanner.Summary, error)
}

// Service represents the background scan queue
type Service struct {
	scanner   UserScanner
	queue     chan uint
	workers   int
	timeout   time.Duration
	log       logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
}

// Config holds queue configuration
type Config struct {
	Workers     int
	QueueSize   int
	ScanTimeout time.Duration
}

// DefaultConfig returns default queue configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:     2,
		QueueSize:   100,
		ScanTimeout: 45 * time.Minute,
	}
}

// ErrQueueFull is returned by Enqueue when no slot is free.
var ErrQueueFull = errors.New("scan queue is full")

// NewService creates a new scan queue
func NewService(s UserScanner, config *Config, log logger.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		scanner: s,
		queue:   make(chan uint, config.QueueSize),
		workers: config.Workers,
		timeout: config.ScanTimeout,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scan queue is already running")
	}

	s.isRunning = true

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.log.Info("Scan queue started", logger.Int("workers", s.workers))
	return nil
}

// Stop cancels running scans and waits for the workers to exit
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.isRunning = false
	s.cancel()
	close(s.queue)

	s.wg.Wait()

	s.log.Info("Scan queue stopped")
	return nil
}

// Drain stops accepting users and waits until every queued scan has finished
func (s *Service) Drain() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	s.cancel()
	s.log.Info("Scan queue drained")
}

// Enqueue adds a user to the scan queue without blocking
func (s *Service) Enqueue(userID uint) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return fmt.Errorf("scan queue is not running")
	}

	select {
	case s.queue <- userID:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	log := s.log.With(logger.Int("worker", id))
	log.Debug("Worker started")

	for {
		select {
		case userID, ok := <-s.queue:
			if !ok {
				log.Debug("Worker shutting down")
				return
			}
			s.processUser(log, userID)
		case <-s.ctx.Done():
			log.Debug("Worker shutting down")
			return
		}
	}
}

func (s *Service) processUser(log logger.Logger, userID uint) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
	}

	summary, err := s.scanner.ScanUser(ctx, userID)
	switch {
	case errors.Is(err, scanner.ErrScanInProgress):
		log.Info("Scan already running for user, skipped", logger.Uint("user_id", userID))
	case err != nil:
		log.Error("Scheduled scan failed", logger.Uint("user_id", userID), logger.Error(err))
	default:
		log.Info("Scheduled scan finished",
			logger.Uint("user_id", userID),
			logger.Int("scanned", summary.Scanned),
			logger.Int("broken", summary.Broken),
		)
	}
}
