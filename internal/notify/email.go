package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/sykell/link-health/internal/config"
	"github.com/sykell/link-health/internal/logger"
)

// emailSender is the part of the Resend client used for delivery.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// EmailNotifier renders messages and delivers them through Resend.
type EmailNotifier struct {
	sender   emailSender
	renderer *Renderer
	from     string
	log      logger.Logger
}

// NewEmailNotifier creates an EmailNotifier backed by the Resend API.
func NewEmailNotifier(cfg config.EmailConfig, renderer *Renderer, log logger.Logger) *EmailNotifier {
	client := resend.NewClient(cfg.ResendAPIKey)
	return newEmailNotifier(client.Emails, renderer, cfg.From, log)
}

func newEmailNotifier(sender emailSender, renderer *Renderer, from string, log logger.Logger) *EmailNotifier {
	return &EmailNotifier{
		sender:   sender,
		renderer: renderer,
		from:     from,
		log:      log,
	}
}

// Send renders msg and hands it to Resend.
func (n *EmailNotifier) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	email, err := n.renderer.Render(msg)
	if err != nil {
		return err
	}

	resp, err := n.sender.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{msg.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	})
	if err != nil {
		return fmt.Errorf("send %s email: %w", msg.Type, err)
	}

	n.log.Info("Email sent",
		logger.String("type", string(msg.Type)),
		logger.String("id", resp.Id),
	)
	return nil
}

// LogNotifier logs messages instead of delivering them. Used when no email
// provider is configured.
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Send logs msg and reports success.
func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	n.log.Info("Email delivery disabled, message logged",
		logger.String("type", string(msg.Type)),
		logger.String("to", msg.To),
		logger.String("merchant", msg.Data.MerchantName),
		logger.Int("http_code", msg.Data.HTTPCode),
	)
	return nil
}

// New returns the notifier matching cfg: Resend when an API key is set,
// otherwise a LogNotifier.
func New(cfg config.EmailConfig, renderer *Renderer, log logger.Logger) Notifier {
	if cfg.ResendAPIKey == "" {
		log.Warn("RESEND_API_KEY not set, emails will only be logged")
		return NewLogNotifier(log)
	}
	return NewEmailNotifier(cfg, renderer, log)
}
