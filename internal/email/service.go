package email

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/queue-api/internal/config"
	"github.com/jwalitptl/queue-api/pkg/logger"
)

// Attachment is an in-memory file sent along with a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Service interface {
	SendAccountActivated(ctx context.Context, to, name string) error
	SendWithAttachment(ctx context.Context, to, subject, body string, att Attachment) error
}

// Sender is satisfied by *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	from   string
	sender Sender
	logger *logger.Logger
}

func NewSMTPService(cfg config.SMTPConfig, log *logger.Logger) Service {
	return NewService(cfg.From, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), log)
}

func NewService(from string, sender Sender, log *logger.Logger) Service {
	if log == nil {
		log = logger.Nop()
	}
	return &smtpService{from: from, sender: sender, logger: log}
}

func (s *smtpService) SendAccountActivated(ctx context.Context, to, name string) error {
	m := s.message(to, "Your account has been activated")
	m.SetBody("text/plain", fmt.Sprintf(
		"Hello %s,\n\nYour account has been activated by an administrator. You can now sign in and manage your patient queue.\n", name))
	return s.send(ctx, m)
}

func (s *smtpService) SendWithAttachment(ctx context.Context, to, subject, body string, att Attachment) error {
	m := s.message(to, subject)
	m.SetBody("text/plain", body)

	settings := []gomail.FileSetting{
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(att.Data)
			return err
		}),
	}
	if att.ContentType != "" {
		settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {att.ContentType}}))
	}
	m.Attach(att.Name, settings...)
	return s.send(ctx, m)
}

func (s *smtpService) message(to, subject string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	return m
}

func (s *smtpService) send(ctx context.Context, m *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Debug("email sent", "to", m.GetHeader("To"), "subject", m.GetHeader("Subject"))
	return nil
}

// logService only logs. Used when SMTP is disabled.
type logService struct {
	logger *logger.Logger
}

func NewLogService(log *logger.Logger) Service {
	if log == nil {
		log = logger.Nop()
	}
	return &logService{logger: log}
}

func (s *logService) SendAccountActivated(_ context.Context, to, name string) error {
	s.logger.Info("email disabled: account activation not sent", "to", to, "name", name)
	return nil
}

func (s *logService) SendWithAttachment(_ context.Context, to, subject, _ string, att Attachment) error {
	s.logger.Info("email disabled: attachment not sent", "to", to, "subject", subject, "attachment", att.Name, "bytes", len(att.Data))
	return nil
}
