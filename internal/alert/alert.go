// Package alert decides when a link status change is worth an email and
// enforces the per-link cooldown.
package alert

import (
	"context"
	"time"

	"github.com/sykell/link-health/internal/db"
	"github.com/sykell/link-health/internal/logger"
	"github.com/sykell/link-health/internal/metrics"
	"github.com/sykell/link-health/internal/notify"
	"github.com/sykell/link-health/internal/probe"
)

// Status is the three-valued health used for transition decisions.
type Status string

const (
	StatusActive  Status = "active"
	StatusError   Status = "error"
	StatusUnknown Status = "unknown"
)

// Type names the alert to send.
type Type string

const (
	None          Type = ""
	LinkBroken    Type = Type(notify.TypeLinkBroken)
	LinkRecovered Type = Type(notify.TypeLinkRecovered)
)

// FromStored maps a persisted link status to a decision status.
// Recovered links were replaced by a working URL and count as active.
func FromStored(s db.LinkStatus) Status {
	switch s {
	case db.StatusActive, db.StatusRecovered:
		return StatusActive
	case db.StatusBroken:
		return StatusError
	default:
		return StatusUnknown
	}
}

// FromClassification maps a probe verdict to a decision status.
func FromClassification(c probe.Classification) Status {
	if c == probe.Active {
		return StatusActive
	}
	return StatusError
}

// Decide returns the alert to send for a transition, or None.
// The cooldown is checked first: an alert is only possible when no alert was
// ever sent or the last one is strictly older than cooldown.
func Decide(prev, next Status, lastAlertSentAt *time.Time, now time.Time, cooldown time.Duration) Type {
	if lastAlertSentAt != nil && now.Sub(*lastAlertSentAt) <= cooldown {
		return None
	}
	switch {
	case prev == StatusActive && next == StatusError:
		return LinkBroken
	case prev == StatusError && next == StatusActive:
		return LinkRecovered
	default:
		return None
	}
}

// Marker records successful alert deliveries.
type Marker interface {
	MarkAlertSent(ctx context.Context, linkID string, at time.Time) error
}

// Candidate is everything the engine needs to know about one probed link.
type Candidate struct {
	LinkID          string
	Previous        db.LinkStatus
	LastAlertSentAt *time.Time
	RecipientEmail  string
	MerchantName    *string
	URL             string
	HTTPCode        int
}

// Outcome reports what the engine did for one link.
type Outcome struct {
	Type Type
	Sent bool
}

// Engine evaluates transitions and delivers alerts through a Notifier.
type Engine struct {
	notifier notify.Notifier
	marker   Marker
	cooldown time.Duration
	now      func() time.Time
	log      logger.Logger
	metrics  *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records alert outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an Engine.
func NewEngine(notifier notify.Notifier, marker Marker, cooldown time.Duration, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		notifier: notifier,
		marker:   marker,
		cooldown: cooldown,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate decides whether c needs an alert given the new verdict and sends
// it. Delivery problems are logged and never returned: the caller's status
// update must go ahead regardless. The cooldown is only consumed when the
// notifier accepted the message.
func (e *Engine) Evaluate(ctx context.Context, c Candidate, next probe.Classification) Outcome {
	now := e.now()
	alertType := Decide(FromStored(c.Previous), FromClassification(next), c.LastAlertSentAt, now, e.cooldown)
	if alertType == None {
		return Outcome{}
	}

	log := e.log.With(
		logger.String("link_id", c.LinkID),
		logger.String("alert_type", string(alertType)),
	)

	if c.RecipientEmail == "" {
		log.Warn("No email on file for link owner, alert skipped")
		e.metrics.AlertFailed("no_recipient")
		return Outcome{Type: alertType}
	}

	msg := notify.Message{
		Type: notify.MessageType(alertType),
		To:   c.RecipientEmail,
		Data: notify.Data{
			HTTPCode: c.HTTPCode,
			URL:      c.URL,
		},
	}
	if c.MerchantName != nil {
		msg.Data.MerchantName = *c.MerchantName
	}

	if err := e.notifier.Send(ctx, msg); err != nil {
		log.Error("Failed to send alert", logger.Error(err))
		e.metrics.AlertFailed("delivery")
		return Outcome{Type: alertType}
	}

	if err := e.marker.MarkAlertSent(ctx, c.LinkID, now); err != nil {
		// Delivered but not recorded; the next scan may alert again.
		log.Error("Failed to record alert", logger.Error(err))
	}
	e.metrics.AlertSent(string(alertType))
	log.Info("Alert sent")
	return Outcome{Type: alertType, Sent: true}
}
