package mailer

import (
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/config"
)

// Sender delivers a plain-text message to a single recipient.
type Sender interface {
	Send(recipient, subject, body string) error
}

// SMTPMailer sends mail through a configured SMTP relay. Delivery failures
// are the caller's concern; this type only reports them.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// NewSMTPMailer constructs a mailer from SMTP configuration.
func NewSMTPMailer(cfg config.SMTPConfig, logger *zap.Logger) *SMTPMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// Send delivers a message. When SMTP is disabled the message is logged and
// dropped so development environments work without a relay.
func (m *SMTPMailer) Send(recipient, subject, body string) error {
	if recipient == "" {
		return fmt.Errorf("recipient required")
	}

	if !m.cfg.Enabled {
		m.logger.Info("smtp disabled, dropping notification",
			zap.String("recipient", recipient),
			zap.String("subject", subject),
		)
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.From, recipient, subject, body,
	)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	m.logger.Debug("notification sent", zap.String("recipient", recipient), zap.String("subject", subject))
	return nil
}
