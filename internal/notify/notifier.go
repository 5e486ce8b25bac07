// Package notify sends the per-run e-mail alerts.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/david/estate-finder/internal/models"
)

// Sender delivers a single alert.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender records alerts in the log when no mail relay is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Warn("SMTP not configured, alert logged instead of sent", zap.String("subject", msg.Subject))
	s.logger.Info("alert", zap.String("type", string(msg.Type)), zap.String("body", msg.Body))
	return nil
}

// Notifier builds run alerts and hands them to a Sender.
type Notifier struct {
	Sender       Sender
	DashboardURL string
	logger       *zap.Logger
}

// New picks the SMTP sender when credentials are present and falls back
// to logging otherwise.
func New(cfg SMTPConfig, dashboardURL string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	var sender Sender
	if cfg.Configured() {
		sender = NewSMTPSender(cfg)
	} else {
		sender = NewLogSender(logger)
	}
	return &Notifier{Sender: sender, DashboardURL: dashboardURL, logger: logger}
}

func (n *Notifier) NotifyCompletion(ctx context.Context, run *models.RunSummary, props []models.PropertyRecord) error {
	msg := CompletionMessage(run, props, n.DashboardURL)
	if err := n.Sender.Send(ctx, msg); err != nil {
		return err
	}
	n.logger.Info("alert sent", zap.String("subject", msg.Subject))
	return nil
}

func (n *Notifier) NotifyFailure(ctx context.Context, cause error) error {
	msg := FailureMessage(cause)
	if err := n.Sender.Send(ctx, msg); err != nil {
		return err
	}
	n.logger.Info("alert sent", zap.String("subject", msg.Subject))
	return nil
}
