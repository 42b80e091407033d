// Package scanner runs link health scans: one user's links in sequence, or a
// single link on demand.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sykell/link-health/internal/alert"
	"github.com/sykell/link-health/internal/config"
	"github.com/sykell/link-health/internal/db"
	"github.com/sykell/link-health/internal/lock"
	"github.com/sykell/link-health/internal/logger"
	"github.com/sykell/link-health/internal/metrics"
	"github.com/sykell/link-health/internal/probe"
	"github.com/sykell/link-health/internal/service"
)

var (
	// ErrScanInProgress is returned when a scan for the user is already running.
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrLinkIgnored is returned for single-link scans of an ignored link.
	ErrLinkIgnored = errors.New("link is ignored")
	// ErrURLMismatch is returned when a single-link scan names a URL other
	// than the one stored for the link.
	ErrURLMismatch = errors.New("url does not match the stored link")
)

// LinkStore is the persistence the scanner needs.
type LinkStore interface {
	ListActiveLinksForUser(ctx context.Context, userID uint, limit int) ([]db.TrackedLink, error)
	GetLinkForUser(ctx context.Context, userID uint, linkID string) (*db.TrackedLink, error)
	GetLinkHistory(ctx context.Context, linkID string) (*service.LinkHistory, error)
	UpdateLinkResult(ctx context.Context, linkID string, res service.LinkResult) error
}

// Prober checks a single URL.
type Prober interface {
	Probe(ctx context.Context, rawURL string) probe.Result
}

// AlertEvaluator decides on and sends alerts for a probed link.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, c alert.Candidate, next probe.Classification) alert.Outcome
}

// Summary is the result of a batch scan.
type Summary struct {
	Scanned int      `json:"scanned"`
	Broken  int      `json:"broken"`
	Errors  []string `json:"errors"`
}

// LinkScan is the result of a single-link scan.
type LinkScan struct {
	Status       probe.Classification `json:"status"`
	HTTPCode     int                  `json:"httpCode"`
	ResponseTime int64                `json:"responseTime"`
	FinalURL     string               `json:"finalUrl"`
	AlertSent    bool                 `json:"alertSent"`
	AlertType    string               `json:"alertType,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// Scanner orchestrates probes, status updates and alerts.
type Scanner struct {
	store   LinkStore
	prober  Prober
	alerts  AlertEvaluator
	locker  lock.Locker
	cfg     config.ScannerConfig
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	log     logger.Logger
	metrics *metrics.Metrics
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithClock overrides the clock used for last_checked_at.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithSleeper overrides the pause between probes.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scanner) { s.sleep = sleep }
}

// WithMetrics records scan metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

// New creates a Scanner.
func New(store LinkStore, prober Prober, alerts AlertEvaluator, locker lock.Locker, cfg config.ScannerConfig, log logger.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		store:  store,
		prober: prober,
		alerts: alerts,
		locker: locker,
		cfg:    cfg,
		now:    time.Now,
		sleep:  sleepContext,
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanUser probes up to BatchLimit non-ignored links of userID one after
// another, pausing ProbeDelay between probes. A failure on one link is
// recorded in Summary.Errors and the batch continues. Failing to load the
// links aborts the scan.
func (s *Scanner) ScanUser(ctx context.Context, userID uint) (*Summary, error) {
	release, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	log := s.log.With(logger.Uint("user_id", userID))

	links, err := s.store.ListActiveLinksForUser(ctx, userID, s.cfg.BatchLimit)
	if err != nil {
		log.Error("Error fetching links", logger.Error(err))
		return nil, fmt.Errorf("failed to fetch links: %w", err)
	}

	summary := &Summary{Errors: []string{}}
	for i := range links {
		link := &links[i]
		summary.Scanned++

		scan, err := s.processLink(ctx, link, link.URL)
		if err != nil {
			log.Error("Error checking link", logger.String("link_id", link.ID), logger.Error(err))
			summary.Errors = append(summary.Errors, link.ID)
		} else if scan.Status == probe.Error {
			summary.Broken++
		}

		if i < len(links)-1 {
			if err := s.sleep(ctx, s.cfg.ProbeDelay); err != nil {
				log.Warn("Scan interrupted", logger.Int("scanned", summary.Scanned), logger.Error(err))
				return summary, err
			}
		}
	}

	s.metrics.ObserveScan("batch", time.Since(start))
	log.Info("Scan completed",
		logger.Int("scanned", summary.Scanned),
		logger.Int("broken", summary.Broken),
		logger.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

// ScanLink probes rawURL on demand. With an empty linkID nothing is
// persisted. Otherwise the link must belong to userID, must not be ignored
// and rawURL must be its stored URL; it is then processed like a batch member
// under the same per-user lock as ScanUser.
func (s *Scanner) ScanLink(ctx context.Context, userID uint, linkID, rawURL string) (*LinkScan, error) {
	defer func(start time.Time) { s.metrics.ObserveScan("single", time.Since(start)) }(time.Now())

	if linkID == "" {
		res := s.prober.Probe(ctx, rawURL)
		status := probe.Classify(res.HTTPCode)
		s.metrics.ObserveProbe(string(status), res.Method, res.Elapsed)
		return newLinkScan(res, status, alert.Outcome{}), nil
	}

	link, err := s.store.GetLinkForUser(ctx, userID, linkID)
	if err != nil {
		return nil, err
	}
	if link.Status == db.StatusIgnored {
		return nil, ErrLinkIgnored
	}
	if rawURL != "" && rawURL != link.URL {
		return nil, ErrURLMismatch
	}

	release, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.processLink(ctx, link, link.URL)
}

func (s *Scanner) lockUser(ctx context.Context, userID uint) (func(), error) {
	release, err := s.locker.Acquire(ctx, fmt.Sprintf("scan:user:%d", userID), s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			s.metrics.ScanRejected("in_progress")
			return nil, ErrScanInProgress
		}
		return nil, fmt.Errorf("acquire scan lock: %w", err)
	}
	return release, nil
}

// processLink probes target for link, evaluates alerts and stores the result.
// The store update is the only step whose failure is reported.
func (s *Scanner) processLink(ctx context.Context, link *db.TrackedLink, target string) (*LinkScan, error) {
	candidate := alert.Candidate{
		LinkID:       link.ID,
		Previous:     link.Status,
		MerchantName: link.MerchantName,
		URL:          target,
	}
	history, err := s.store.GetLinkHistory(ctx, link.ID)
	if err != nil {
		// Without history no transition can be established.
		s.log.Warn("Failed to load link history", logger.String("link_id", link.ID), logger.Error(err))
		candidate.Previous = ""
	} else {
		candidate.Previous = history.Status
		candidate.LastAlertSentAt = history.LastAlertSentAt
		candidate.RecipientEmail = history.OwnerEmail
		if history.MerchantName != nil {
			candidate.MerchantName = history.MerchantName
		}
	}

	res := s.prober.Probe(ctx, target)
	status := probe.Classify(res.HTTPCode)
	s.metrics.ObserveProbe(string(status), res.Method, res.Elapsed)

	candidate.HTTPCode = res.HTTPCode
	outcome := s.alerts.Evaluate(ctx, candidate, status)

	update := service.LinkResult{
		Status:        db.StatusActive,
		LastCheckedAt: s.now(),
	}
	if res.HTTPCode != 0 {
		code := res.HTTPCode
		update.HTTPStatusCode = &code
	}
	if status == probe.Error {
		update.Status = db.StatusBroken
		update.RecoverySuggestion = recoverySuggestion(link)
	}

	if err := s.store.UpdateLinkResult(ctx, link.ID, update); err != nil {
		return nil, fmt.Errorf("update link %s: %w", link.ID, err)
	}
	return newLinkScan(res, status, outcome), nil
}

func newLinkScan(res probe.Result, status probe.Classification, outcome alert.Outcome) *LinkScan {
	scan := &LinkScan{
		Status:       status,
		HTTPCode:     res.HTTPCode,
		ResponseTime: res.Elapsed.Milliseconds(),
		FinalURL:     res.FinalURL,
		AlertSent:    outcome.Sent,
		AlertType:    string(outcome.Type),
	}
	if res.Err != nil && res.TransportFailed() {
		scan.Error = res.Err.Error()
	}
	return scan
}

// recoverySuggestion returns nil when the merchant is unknown.
func recoverySuggestion(link *db.TrackedLink) *string {
	if link.MerchantName == nil || *link.MerchantName == "" {
		return nil
	}
	s := fmt.Sprintf("Search for updated %s affiliate link on %s", *link.MerchantName, link.Network.DisplayName())
	return &s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
