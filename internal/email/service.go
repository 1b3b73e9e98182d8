package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/vip-booking/pkg/logger"
)

type Message struct {
	To       string
	Subject  string
	Body     string
	HTMLBody string
}

type Service interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPService delivers mail through an SMTP relay, one connection per message.
type SMTPService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg SMTPConfig) *SMTPService {
	return &SMTPService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPService) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := buildMessage(s.from, msg)
	if err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}

func buildMessage(from string, msg Message) (*gomail.Message, error) {
	if msg.To == "" {
		return nil, fmt.Errorf("recipient is required")
	}
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}
	return m, nil
}

// LogService writes messages to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogService struct {
	log *logger.Logger
}

func NewLogService(log *logger.Logger) *LogService {
	return &LogService{log: log}
}

func (s *LogService) Send(ctx context.Context, msg Message) error {
	s.log.Info("email suppressed", "to", msg.To, "subject", msg.Subject)
	return nil
}

var (
	_ Service = (*SMTPService)(nil)
	_ Service = (*LogService)(nil)
)
